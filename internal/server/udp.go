package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/skypro1111/forkstream-receiver/internal/config"
	"github.com/skypro1111/forkstream-receiver/internal/metrics"
	"github.com/skypro1111/forkstream-receiver/internal/protocol"
	"github.com/skypro1111/forkstream-receiver/internal/stats"
	"github.com/skypro1111/forkstream-receiver/internal/stream"
)

// Receiver owns the UDP socket and drives the whole pipeline from a single
// goroutine: decode, registry update, reaper sweep, stats update, periodic
// report. No two datagrams are ever processed concurrently; the registry,
// sink and reaper are touched by exactly one logical thread of control.
type Receiver struct {
	conn     *net.UDPConn
	cfg      *config.Config
	logger   *slog.Logger
	registry *stream.Registry
	reaper   *stream.Reaper
	stats    *stats.Collector
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	packetsReceived atomic.Uint64
}

// Statistics is a snapshot of the receiver's transport-level counters for
// the monitoring endpoints.
type Statistics struct {
	PacketsReceived uint64 `json:"packets_received"`
	ActiveStreams   int    `json:"active_streams"`
	ActiveBuffers   int    `json:"active_buffers"`
}

// NewReceiver wires the pipeline components together. metrics may be nil.
func NewReceiver(cfg *config.Config, logger *slog.Logger, registry *stream.Registry,
	reaper *stream.Reaper, collector *stats.Collector, m *metrics.Metrics) *Receiver {

	ctx, cancel := context.WithCancel(context.Background())

	return &Receiver{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		reaper:   reaper,
		stats:    collector,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start binds the UDP socket and launches the receive loop. A bind failure
// aborts startup; it is the only fatal transport error.
func (r *Receiver) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", r.cfg.Server.BindAddress, r.cfg.Server.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	r.conn = conn

	if err := r.conn.SetReadBuffer(r.cfg.Server.BufferSize); err != nil {
		r.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", r.cfg.Server.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	r.logger.Info("UDP receiver started",
		slog.String("address", addr.String()),
		slog.String("output_dir", r.cfg.Recording.OutputDir),
		slog.Duration("stream_timeout", r.cfg.Recording.GetStreamTimeoutDuration()),
	)

	go r.receiveLoop()

	return nil
}

// Stop shuts the receive loop down and drains every remaining buffer to the
// sink so no audio is dropped, regardless of how recently a stream was
// active. Safe to call once.
func (r *Receiver) Stop() error {
	r.logger.Info("Stopping UDP receiver...")

	r.cancel()

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			r.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	<-r.done

	// The loop has exited; the pipeline thread is now this one.
	r.reaper.Drain(r.registry)

	s := r.stats.Snapshot()
	r.logger.Info("Final receiver statistics",
		slog.Uint64("packets_received", r.packetsReceived.Load()),
		slog.Uint64("signaling_rx", s.SignalingRX),
		slog.Uint64("signaling_tx", s.SignalingTX),
		slog.Uint64("audio_rx", s.AudioRX),
		slog.Uint64("audio_tx", s.AudioTX),
		slog.Uint64("total_audio_bytes", s.TotalAudioBytes),
		slog.Uint64("errors", s.Errors),
		slog.Uint64("flushes", r.reaper.Flushes()),
		slog.Uint64("flush_errors", r.reaper.FlushErrors()),
	)

	return nil
}

// receiveLoop blocks on the socket and runs one full pipeline pass per
// datagram. The read deadline exists only so context cancellation is
// noticed between packets.
func (r *Receiver) receiveLoop() {
	defer close(r.done)

	buffer := make([]byte, r.cfg.Server.BufferSize)

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			r.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := r.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-r.ctx.Done():
				return
			default:
				r.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
				continue
			}
		}

		r.packetsReceived.Add(1)
		r.metrics.RecordPacketReceived()

		r.handleDatagram(buffer[:n], remoteAddr, time.Now())
	}
}

// handleDatagram runs one synchronous pipeline pass: decode, registry apply,
// reaper sweep, stats update, periodic report. Decode errors drop the packet
// and skip the sweep; the registry is never mutated for a bad datagram.
func (r *Receiver) handleDatagram(data []byte, remoteAddr *net.UDPAddr, now time.Time) {
	pkt, err := protocol.ParsePacket(data)
	if err != nil {
		r.stats.RecordError()
		r.metrics.RecordParseError()
		r.logger.Warn("Dropped packet",
			slog.String("remote_addr", addrString(remoteAddr)),
			slog.Int("packet_size", len(data)),
			slog.String("reason", err.Error()),
		)
		return
	}

	buf := r.registry.Apply(pkt, now)
	if buf.Packets == 1 {
		r.metrics.RecordStreamCreated()
	}

	direction := protocol.DirectionString(pkt.Header.Direction)
	switch {
	case pkt.Signaling != nil:
		r.stats.Record(pkt.Header.PacketType, pkt.Header.Direction, 0)
		r.metrics.RecordPacketProcessed("signaling", direction, 0)
		r.logger.Info("Signaling packet",
			slog.Uint64("stream_id", uint64(pkt.Header.StreamID)),
			slog.String("direction", direction),
			slog.String("channel_id", pkt.Signaling.ChannelID),
			slog.String("extension", pkt.Signaling.Extension),
			slog.String("caller_id", pkt.Signaling.CallerID),
			slog.String("called_id", pkt.Signaling.CalledID),
			slog.Time("signaled_at", time.Unix(int64(pkt.Signaling.Timestamp), 0)),
		)
	case pkt.Audio != nil:
		r.stats.Record(pkt.Header.PacketType, pkt.Header.Direction, len(pkt.Audio.AudioData))
		r.metrics.RecordPacketProcessed("audio", direction, len(pkt.Audio.AudioData))
		r.logger.Debug("Audio packet",
			slog.Uint64("stream_id", uint64(pkt.Header.StreamID)),
			slog.String("direction", direction),
			slog.Uint64("sequence", uint64(pkt.Audio.Sequence)),
			slog.Int("audio_size", len(pkt.Audio.AudioData)),
		)
	}

	// Staleness is bounded by inter-packet gaps: the reaper runs after every
	// successfully processed packet, never on a timer.
	r.reaper.Sweep(r.registry, now)
	r.metrics.SetActiveStreams(r.registry.StreamCount())

	if every := uint64(r.cfg.Recording.ReportEvery); every > 0 {
		if total := r.stats.TotalPackets(); total%every == 0 {
			r.logReport(total)
		}
	}
}

// logReport emits the periodic human-readable statistics summary.
func (r *Receiver) logReport(total uint64) {
	s := r.stats.Snapshot()
	r.logger.Info("Receiver statistics",
		slog.Uint64("total_packets", total),
		slog.Uint64("signaling_rx", s.SignalingRX),
		slog.Uint64("signaling_tx", s.SignalingTX),
		slog.Uint64("audio_rx", s.AudioRX),
		slog.Uint64("audio_tx", s.AudioTX),
		slog.Uint64("total_audio_bytes", s.TotalAudioBytes),
		slog.Int("active_streams", r.registry.StreamCount()),
		slog.Uint64("errors", s.Errors),
	)
}

// GetStatistics returns transport-level counters for monitoring.
func (r *Receiver) GetStatistics() Statistics {
	return Statistics{
		PacketsReceived: r.packetsReceived.Load(),
		ActiveStreams:   r.registry.StreamCount(),
		ActiveBuffers:   r.registry.BufferCount(),
	}
}

func addrString(addr *net.UDPAddr) string {
	if addr == nil {
		return "unknown"
	}
	return addr.String()
}
