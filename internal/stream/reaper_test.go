package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/forkstream-receiver/internal/protocol"
)

type flushCall struct {
	streamID  uint32
	direction uint8
	data      []byte
	info      *CallInfo
}

// recordingSink captures flush calls; failFor makes Flush fail for a
// specific stream_id.
type recordingSink struct {
	calls   []flushCall
	failFor uint32
}

func (s *recordingSink) Flush(streamID uint32, direction uint8, data []byte, info *CallInfo) (string, error) {
	if s.failFor != 0 && streamID == s.failFor {
		return "", errors.New("disk full")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.calls = append(s.calls, flushCall{streamID: streamID, direction: direction, data: cp, info: info})
	return fmt.Sprintf("recordings/stream_%d.raw", streamID), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReaperFlushesIdleStream(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reaper := NewReaper(sink, 30*time.Second, discardLogger())
	base := time.Now()

	// Two audio packets, then 31 seconds of silence.
	reg.Apply(audioPacket(3, protocol.DirectionRX, 1, []byte{0xAA, 0xBB}), base)
	reg.Apply(audioPacket(3, protocol.DirectionRX, 2, []byte{0xCC}), base)

	evicted := reaper.Sweep(reg, base.Add(31*time.Second))
	assert.Equal(t, []uint32{3}, evicted)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, uint32(3), sink.calls[0].streamID)
	assert.Equal(t, uint8(protocol.DirectionRX), sink.calls[0].direction)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, sink.calls[0].data)

	_, ok := reg.Get(3, protocol.DirectionRX)
	assert.False(t, ok, "flushed stream must be evicted")
	assert.Equal(t, uint64(1), reaper.Flushes())
}

func TestReaperRetainsStreamWithRecentDirection(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reaper := NewReaper(sink, 30*time.Second, discardLogger())
	base := time.Now()

	reg.Apply(audioPacket(4, protocol.DirectionRX, 1, []byte{0x01}), base)
	reg.Apply(audioPacket(4, protocol.DirectionTX, 1, []byte{0x02}), base.Add(20*time.Second))

	evicted := reaper.Sweep(reg, base.Add(35*time.Second))
	assert.Empty(t, evicted, "stream with one recent direction must be retained")
	assert.Empty(t, sink.calls)

	_, ok := reg.Get(4, protocol.DirectionRX)
	assert.True(t, ok)
}

func TestReaperSkipsEmptyDirections(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reaper := NewReaper(sink, 30*time.Second, discardLogger())
	base := time.Now()

	// RX has audio, TX only ever saw a heartbeat (empty accumulation).
	reg.Apply(audioPacket(7, protocol.DirectionRX, 1, []byte{0x01}), base)
	reg.Apply(audioPacket(7, protocol.DirectionTX, 1, nil), base)

	evicted := reaper.Sweep(reg, base.Add(31*time.Second))
	assert.Equal(t, []uint32{7}, evicted)

	require.Len(t, sink.calls, 1, "empty TX accumulation must not produce a file")
	assert.Equal(t, uint8(protocol.DirectionRX), sink.calls[0].direction)
}

func TestReaperHeartbeatOnlyStreamNoFile(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reaper := NewReaper(sink, 30*time.Second, discardLogger())
	base := time.Now()

	reg.Apply(audioPacket(7, protocol.DirectionTX, 1, nil), base)

	evicted := reaper.Sweep(reg, base.Add(31*time.Second))
	assert.Equal(t, []uint32{7}, evicted, "empty stream is still evicted")
	assert.Empty(t, sink.calls, "no flush file for an empty buffer")
}

func TestReaperFlushesBothDirectionsWithMetadata(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reaper := NewReaper(sink, 30*time.Second, discardLogger())
	base := time.Now()

	reg.Apply(signalingPacket(8, protocol.DirectionRX, "Alice", "Bob"), base)
	reg.Apply(audioPacket(8, protocol.DirectionRX, 1, []byte{0x01}), base)
	reg.Apply(audioPacket(8, protocol.DirectionTX, 1, []byte{0x02}), base)

	evicted := reaper.Sweep(reg, base.Add(31*time.Second))
	assert.Equal(t, []uint32{8}, evicted)
	require.Len(t, sink.calls, 2)

	byDir := map[uint8]flushCall{}
	for _, c := range sink.calls {
		byDir[c.direction] = c
	}
	require.NotNil(t, byDir[protocol.DirectionRX].info)
	assert.Equal(t, "Alice", byDir[protocol.DirectionRX].info.CallerID)
	assert.Nil(t, byDir[protocol.DirectionTX].info, "TX saw no signaling, metadata absent")
}

func TestReaperSinkFailureDoesNotPanic(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{failFor: 9}
	reaper := NewReaper(sink, 30*time.Second, discardLogger())
	base := time.Now()

	reg.Apply(audioPacket(9, protocol.DirectionRX, 1, []byte{0x01}), base)

	evicted := reaper.Sweep(reg, base.Add(31*time.Second))
	assert.Equal(t, []uint32{9}, evicted, "stream is evicted even when the flush fails")
	assert.Equal(t, uint64(1), reaper.FlushErrors())
	assert.Equal(t, uint64(0), reaper.Flushes())

	_, ok := reg.Get(9, protocol.DirectionRX)
	assert.False(t, ok, "buffer contents are dropped, no retry queue")
}

func TestReaperDrainFlushesEverythingRegardlessOfRecency(t *testing.T) {
	reg := NewRegistry()
	sink := &recordingSink{}
	reaper := NewReaper(sink, 30*time.Second, discardLogger())
	base := time.Now()

	reg.Apply(audioPacket(1, protocol.DirectionRX, 1, []byte{0x01}), base)
	reg.Apply(audioPacket(2, protocol.DirectionTX, 1, []byte{0x02}), base)
	reg.Apply(audioPacket(2, protocol.DirectionRX, 1, nil), base)

	reaper.Drain(reg)

	assert.Len(t, sink.calls, 2, "both non-empty buffers flushed, empty one skipped")
	assert.Equal(t, 0, reg.BufferCount())
}
