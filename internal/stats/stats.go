// Package stats counts processed packets by type and direction, cumulative
// audio bytes and errors. The reporting cadence is the caller's policy; the
// collector only mutates counters and produces snapshots.
package stats

import (
	"sync/atomic"

	"github.com/skypro1111/forkstream-receiver/internal/protocol"
)

// Collector is the process-wide packet counter. Counters are atomics so the
// HTTP monitoring endpoints can snapshot them while the receive loop runs.
type Collector struct {
	signalingRX atomic.Uint64
	signalingTX atomic.Uint64
	audioRX     atomic.Uint64
	audioTX     atomic.Uint64
	audioBytes  atomic.Uint64
	errors      atomic.Uint64
}

// Stats is a point-in-time snapshot of the collector.
type Stats struct {
	SignalingRX     uint64 `json:"signaling_rx"`
	SignalingTX     uint64 `json:"signaling_tx"`
	AudioRX         uint64 `json:"audio_rx"`
	AudioTX         uint64 `json:"audio_tx"`
	TotalAudioBytes uint64 `json:"total_audio_bytes"`
	Errors          uint64 `json:"errors"`
}

// NewCollector creates a zeroed collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record counts one successfully processed packet. audioBytes is the audio
// payload size and is only meaningful for audio packets.
func (c *Collector) Record(packetType, direction uint8, audioBytes int) {
	switch packetType {
	case protocol.PacketTypeSignaling:
		if direction == protocol.DirectionRX {
			c.signalingRX.Add(1)
		} else {
			c.signalingTX.Add(1)
		}
	case protocol.PacketTypeAudio:
		if direction == protocol.DirectionRX {
			c.audioRX.Add(1)
		} else {
			c.audioTX.Add(1)
		}
		c.audioBytes.Add(uint64(audioBytes))
	}
}

// RecordError counts one dropped packet (framing or payload error).
func (c *Collector) RecordError() {
	c.errors.Add(1)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Stats {
	return Stats{
		SignalingRX:     c.signalingRX.Load(),
		SignalingTX:     c.signalingTX.Load(),
		AudioRX:         c.audioRX.Load(),
		AudioTX:         c.audioTX.Load(),
		TotalAudioBytes: c.audioBytes.Load(),
		Errors:          c.errors.Load(),
	}
}

// TotalPackets returns the number of successfully processed packets (errors
// excluded), used by the caller to decide when to emit a periodic report.
func (c *Collector) TotalPackets() uint64 {
	return c.signalingRX.Load() + c.signalingTX.Load() + c.audioRX.Load() + c.audioTX.Load()
}
