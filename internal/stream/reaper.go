package stream

import (
	"log/slog"
	"time"

	"github.com/skypro1111/forkstream-receiver/internal/protocol"
)

// Sink persists an accumulated audio buffer. Implemented by sink.FileSink.
type Sink interface {
	Flush(streamID uint32, direction uint8, data []byte, info *CallInfo) (string, error)
}

// Reaper evicts streams whose every direction has been idle past the
// threshold and hands their audio to the sink. It is driven by the receive
// loop after each successfully processed packet rather than by a timer, so
// staleness is bounded by inter-packet gaps; the receiver is otherwise
// blocked on the socket anyway.
type Reaper struct {
	sink      Sink
	threshold time.Duration
	logger    *slog.Logger

	flushes     uint64
	flushErrors uint64
}

// NewReaper creates a reaper flushing through sink after threshold of
// inactivity.
func NewReaper(sink Sink, threshold time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		sink:      sink,
		threshold: threshold,
		logger:    logger,
	}
}

// Sweep evicts every idle stream from the registry and flushes each direction
// that accumulated audio. Directions with empty accumulation are skipped so
// no zero-byte files appear. Returns the stream_ids evicted this call.
func (p *Reaper) Sweep(reg *Registry, now time.Time) []uint32 {
	idle := reg.IdleStreams(now, p.threshold)
	if len(idle) == 0 {
		return nil
	}

	for _, streamID := range idle {
		p.logger.Info("Stream idle past threshold, flushing",
			slog.Uint64("stream_id", uint64(streamID)),
			slog.Duration("threshold", p.threshold),
		)

		rx, tx := reg.Remove(streamID)
		p.flushBuffer(rx)
		p.flushBuffer(tx)
	}

	return idle
}

// Drain flushes and evicts every remaining buffer regardless of recency.
// Called at shutdown so no audio is silently dropped.
func (p *Reaper) Drain(reg *Registry) {
	ids := reg.StreamIDs()
	if len(ids) == 0 {
		return
	}

	p.logger.Info("Draining remaining streams", slog.Int("streams", len(ids)))

	for _, streamID := range ids {
		rx, tx := reg.Remove(streamID)
		p.flushBuffer(rx)
		p.flushBuffer(tx)
	}
}

// flushBuffer hands one buffer to the sink. A flush failure is logged and
// counted; it never propagates to the receive loop. The buffer contents for
// a failed flush are lost, there is no retry queue.
func (p *Reaper) flushBuffer(buf *Buffer) {
	if buf == nil || len(buf.Data) == 0 {
		return
	}

	path, err := p.sink.Flush(buf.StreamID, buf.Direction, buf.Data, buf.Info)
	if err != nil {
		p.flushErrors++
		p.logger.Error("Failed to flush audio buffer",
			slog.Uint64("stream_id", uint64(buf.StreamID)),
			slog.String("direction", protocol.DirectionString(buf.Direction)),
			slog.Int("bytes", len(buf.Data)),
			slog.String("error", err.Error()),
		)
		return
	}

	p.flushes++
	p.logger.Info("Flushed audio buffer",
		slog.Uint64("stream_id", uint64(buf.StreamID)),
		slog.String("direction", protocol.DirectionString(buf.Direction)),
		slog.Int("bytes", len(buf.Data)),
		slog.String("path", path),
	)
}

// Flushes returns the number of successful flushes performed.
func (p *Reaper) Flushes() uint64 { return p.flushes }

// FlushErrors returns the number of failed flush attempts.
func (p *Reaper) FlushErrors() uint64 { return p.flushErrors }
