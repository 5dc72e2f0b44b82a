package server

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/forkstream-receiver/internal/config"
	"github.com/skypro1111/forkstream-receiver/internal/protocol"
	"github.com/skypro1111/forkstream-receiver/internal/stats"
	"github.com/skypro1111/forkstream-receiver/internal/stream"
)

type capturedFlush struct {
	streamID  uint32
	direction uint8
	data      []byte
	info      *stream.CallInfo
}

type recordingSink struct {
	flushes []capturedFlush
}

func (s *recordingSink) Flush(streamID uint32, direction uint8, data []byte, info *stream.CallInfo) (string, error) {
	s.flushes = append(s.flushes, capturedFlush{
		streamID:  streamID,
		direction: direction,
		data:      append([]byte(nil), data...),
		info:      info,
	})
	return "test.raw", nil
}

func newTestReceiver(t *testing.T, sink *recordingSink) *Receiver {
	t.Helper()

	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := stream.NewRegistry()
	reaper := stream.NewReaper(sink, cfg.Recording.GetStreamTimeoutDuration(), logger)

	return NewReceiver(cfg, logger, registry, reaper, stats.NewCollector(), nil)
}

func signalingDatagram(t *testing.T, streamID uint32, direction uint8) []byte {
	t.Helper()

	data, err := protocol.EncodeSignalingPacket(streamID, direction, &protocol.SignalingPayload{
		ChannelID: "SIP/100-00000001",
		Extension: "100",
		CallerID:  "Alice <100>",
		CalledID:  "Bob <200>",
		Timestamp: 1700000000,
	})
	require.NoError(t, err)
	return data
}

func audioDatagram(t *testing.T, streamID uint32, direction uint8, seq uint32, audio []byte) []byte {
	t.Helper()

	data, err := protocol.EncodeAudioPacket(streamID, direction, seq, audio)
	require.NoError(t, err)
	return data
}

func TestHandleDatagramTruncatedHeader(t *testing.T) {
	sink := &recordingSink{}
	r := newTestReceiver(t, sink)

	r.handleDatagram([]byte{0x02, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01}, nil, time.Now())

	s := r.stats.Snapshot()
	assert.Equal(t, uint64(1), s.Errors)
	assert.Equal(t, uint64(0), s.AudioRX)
	assert.Equal(t, 0, r.registry.BufferCount())
	assert.Empty(t, sink.flushes)
}

func TestHandleDatagramMalformedTouchesNothing(t *testing.T) {
	sink := &recordingSink{}
	r := newTestReceiver(t, sink)
	now := time.Now()

	r.handleDatagram(audioDatagram(t, 7, protocol.DirectionRX, 0, []byte{0x01}), nil, now)
	require.Equal(t, 1, r.registry.BufferCount())
	buf, ok := r.registry.Get(7, protocol.DirectionRX)
	require.True(t, ok)
	activity := buf.LastActivity

	// A corrupt datagram must not refresh stream activity.
	bad := audioDatagram(t, 7, protocol.DirectionRX, 1, []byte{0x02})
	bad[0] = 0x09
	r.handleDatagram(bad, nil, now.Add(10*time.Second))

	buf, ok = r.registry.Get(7, protocol.DirectionRX)
	require.True(t, ok)
	assert.Equal(t, activity, buf.LastActivity)
	assert.Equal(t, []byte{0x01}, buf.Data)
	assert.Equal(t, uint64(1), r.stats.Snapshot().Errors)
}

func TestHandleDatagramCounters(t *testing.T) {
	sink := &recordingSink{}
	r := newTestReceiver(t, sink)
	now := time.Now()

	r.handleDatagram(signalingDatagram(t, 1, protocol.DirectionRX), nil, now)
	r.handleDatagram(audioDatagram(t, 1, protocol.DirectionRX, 0, []byte{0xAA, 0xBB}), nil, now)
	r.handleDatagram(audioDatagram(t, 1, protocol.DirectionTX, 0, []byte{0xCC}), nil, now)

	s := r.stats.Snapshot()
	assert.Equal(t, uint64(1), s.SignalingRX)
	assert.Equal(t, uint64(1), s.AudioRX)
	assert.Equal(t, uint64(1), s.AudioTX)
	assert.Equal(t, uint64(3), s.TotalAudioBytes)
	assert.Equal(t, uint64(0), s.Errors)
	assert.Equal(t, 1, r.registry.StreamCount())
	assert.Equal(t, 2, r.registry.BufferCount())
}

func TestHandleDatagramSweepFlushesIdleStream(t *testing.T) {
	sink := &recordingSink{}
	r := newTestReceiver(t, sink)
	start := time.Now()

	r.handleDatagram(signalingDatagram(t, 42, protocol.DirectionRX), nil, start)
	r.handleDatagram(audioDatagram(t, 42, protocol.DirectionRX, 0, []byte{0xAA, 0xAA}), nil, start)
	r.handleDatagram(audioDatagram(t, 42, protocol.DirectionRX, 1, []byte{0xBB, 0xBB}), nil, start)
	require.Empty(t, sink.flushes)

	// Traffic on another stream past the timeout sweeps stream 42 out.
	r.handleDatagram(audioDatagram(t, 99, protocol.DirectionTX, 0, []byte{0x01}), nil, start.Add(31*time.Second))

	require.Len(t, sink.flushes, 1)
	f := sink.flushes[0]
	assert.Equal(t, uint32(42), f.streamID)
	assert.Equal(t, uint8(protocol.DirectionRX), f.direction)
	assert.Equal(t, []byte{0xAA, 0xAA, 0xBB, 0xBB}, f.data)
	require.NotNil(t, f.info)
	assert.Equal(t, "Alice <100>", f.info.CallerID)

	_, ok := r.registry.Get(42, protocol.DirectionRX)
	assert.False(t, ok)
	assert.Equal(t, 1, r.registry.StreamCount())
}

func TestHandleDatagramRecentDirectionKeepsStreamAlive(t *testing.T) {
	sink := &recordingSink{}
	r := newTestReceiver(t, sink)
	start := time.Now()

	r.handleDatagram(audioDatagram(t, 5, protocol.DirectionRX, 0, []byte{0x01}), nil, start)
	// TX activity 20s later keeps the whole stream alive even though RX
	// has now been quiet for more than the timeout.
	r.handleDatagram(audioDatagram(t, 5, protocol.DirectionTX, 0, []byte{0x02}), nil, start.Add(20*time.Second))
	r.handleDatagram(audioDatagram(t, 6, protocol.DirectionRX, 0, []byte{0x03}), nil, start.Add(35*time.Second))

	assert.Empty(t, sink.flushes)
	assert.Equal(t, 2, r.registry.StreamCount())
}

func TestGetStatistics(t *testing.T) {
	sink := &recordingSink{}
	r := newTestReceiver(t, sink)
	now := time.Now()

	r.handleDatagram(audioDatagram(t, 1, protocol.DirectionRX, 0, []byte{0x01}), nil, now)
	r.handleDatagram(audioDatagram(t, 2, protocol.DirectionTX, 0, []byte{0x02}), nil, now)

	s := r.GetStatistics()
	assert.Equal(t, 2, s.ActiveStreams)
	assert.Equal(t, 2, s.ActiveBuffers)
}
