package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatHex(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		max  int
		want string
	}{
		{
			name: "empty",
			data: nil,
			max:  32,
			want: "",
		},
		{
			name: "short payload shown in full",
			data: []byte{0x02, 0x00, 0x0C, 0xFF},
			max:  32,
			want: "02 00 0c ff",
		},
		{
			name: "long payload truncated with total",
			data: []byte{0x01, 0x02, 0x03, 0x04, 0x05},
			max:  3,
			want: "01 02 03 ... (5 bytes total)",
		},
		{
			name: "exactly at limit",
			data: []byte{0x01, 0x02, 0x03},
			max:  3,
			want: "01 02 03",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatHex(tt.data, tt.max))
		})
	}
}

func TestClassifyFrameSize(t *testing.T) {
	tests := []struct {
		size int
		want string
	}{
		{160, "possible G.711/G.722 audio frame"},
		{320, "possible G.711/G.722 audio frame"},
		{480, "possible G.711/G.722 audio frame"},
		{960, "possible G.711/G.722 audio frame"},
		{20, "possible G.729 audio frame"},
		{33, "possible G.729 audio frame"},
		{8, ""},
		{172, ""},
		{0, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyFrameSize(tt.size), "size %d", tt.size)
	}
}
