package sink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skypro1111/forkstream-receiver/internal/metrics"
	"github.com/skypro1111/forkstream-receiver/internal/protocol"
	"github.com/skypro1111/forkstream-receiver/internal/stream"
)

// Output formats for flushed recordings.
const (
	FormatRaw = "raw"
	FormatWAV = "wav"
)

// FileSink writes accumulated audio buffers to one file per flush event.
// Filenames are derived deterministically from the stream id, direction,
// flush timestamp and sanitized call metadata.
type FileSink struct {
	dir        string
	format     string
	sampleRate int
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// now is swappable for tests.
	now func() time.Time
}

// NewFileSink creates a sink writing into dir. format is FormatRaw or
// FormatWAV; sampleRate feeds the duration estimate and the WAV header.
// metrics may be nil.
func NewFileSink(dir, format string, sampleRate int, logger *slog.Logger, m *metrics.Metrics) *FileSink {
	return &FileSink{
		dir:        dir,
		format:     format,
		sampleRate: sampleRate,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Flush writes one buffer to storage and returns the file path. The audio
// bytes are written verbatim (raw) or behind a 44-byte PCM header (wav); no
// re-encoding either way. The duration in the log is an estimate assuming
// 16-bit mono at the configured sample rate; the actual payload encoding is
// opaque to the sink.
func (s *FileSink) Flush(streamID uint32, direction uint8, data []byte, info *stream.CallInfo) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.metrics.RecordFlushError()
		return "", fmt.Errorf("failed to create recordings directory %s: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, s.filename(streamID, direction, info))

	payload := data
	if s.format == FormatWAV {
		wav, err := EncodeWAV(data, s.sampleRate)
		if err != nil {
			s.metrics.RecordFlushError()
			return "", fmt.Errorf("failed to encode WAV for stream %d: %w", streamID, err)
		}
		payload = wav
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		s.metrics.RecordFlushError()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	duration := float64(len(data)) / float64(s.sampleRate*2)
	s.metrics.RecordFlush(len(data), duration)

	s.logger.Info("Saved audio recording",
		slog.String("path", path),
		slog.Uint64("stream_id", uint64(streamID)),
		slog.String("direction", protocol.DirectionString(direction)),
		slog.Int("size_bytes", len(data)),
		slog.Float64("duration_seconds", duration),
	)

	return path, nil
}

// filename builds stream_<id>_<RX|TX>_<flush-timestamp>_<caller>_to_<called>
// with the configured format's extension.
func (s *FileSink) filename(streamID uint32, direction uint8, info *stream.CallInfo) string {
	caller := "unknown"
	called := "unknown"
	if info != nil {
		if info.CallerID != "" {
			caller = sanitize(info.CallerID)
		}
		if info.CalledID != "" {
			called = sanitize(info.CalledID)
		}
	}

	return fmt.Sprintf("stream_%d_%s_%s_%s_to_%s.%s",
		streamID,
		protocol.DirectionString(direction),
		s.now().Format("20060102_150405"),
		caller,
		called,
		s.format,
	)
}

// sanitize strips angle brackets and replaces spaces so caller ids like
// "Alice <100>" become filename-safe.
func sanitize(id string) string {
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "<", "")
	id = strings.ReplaceAll(id, ">", "")
	return id
}
