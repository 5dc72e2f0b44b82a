package stream

import (
	"sync"
	"time"

	"github.com/skypro1111/forkstream-receiver/internal/protocol"
)

// Key identifies one leg of a stream. RX and TX buffers for the same
// stream_id are independent registry entries.
type Key struct {
	StreamID  uint32
	Direction uint8
}

// CallInfo is the last signaling metadata seen for a buffer. Each new
// signaling packet for the key replaces it wholesale.
type CallInfo struct {
	ChannelID string
	Extension string
	CallerID  string
	CalledID  string
	Timestamp uint32 // Unix epoch seconds from the signaling payload
}

// Buffer accumulates audio for one (stream_id, direction) leg. Audio is
// appended strictly in arrival order; the sequence field of audio packets is
// recorded for diagnostics but never used for reordering.
type Buffer struct {
	StreamID  uint32
	Direction uint8

	Data []byte    // accumulated audio bytes, append-only
	Info *CallInfo // nil until a signaling packet is seen for this key

	LastSeq      uint32 // last sequence number observed, informational
	Packets      uint64 // packets applied to this buffer
	Created      time.Time
	LastActivity time.Time // touched by any packet for this key
}

// BufferInfo is a read-only snapshot of a buffer for monitoring endpoints.
type BufferInfo struct {
	StreamID     uint32    `json:"stream_id"`
	Direction    string    `json:"direction"`
	Bytes        int       `json:"bytes"`
	Packets      uint64    `json:"packets"`
	LastSequence uint32    `json:"last_sequence"`
	CallerID     string    `json:"caller_id,omitempty"`
	CalledID     string    `json:"called_id,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty"`
	Extension    string    `json:"extension,omitempty"`
	Created      time.Time `json:"created"`
	LastActivity time.Time `json:"last_activity"`
}

// Registry owns every live Buffer. A buffer is created lazily on the first
// packet referencing its key and leaves the registry only through Remove or
// Drain; it is never destroyed while its stream is still active.
//
// The receive pipeline is a single logical thread. The mutex exists because
// the HTTP monitoring endpoints read snapshots concurrently, not because
// packets race each other.
type Registry struct {
	mu      sync.RWMutex
	buffers map[Key]*Buffer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		buffers: make(map[Key]*Buffer),
	}
}

// Apply mutates the registry with one decoded packet. Signaling replaces the
// buffer's call metadata; audio appends bytes in arrival order. Either kind
// touches last activity.
func (r *Registry) Apply(pkt *protocol.Packet, now time.Time) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{StreamID: pkt.Header.StreamID, Direction: pkt.Header.Direction}
	buf, ok := r.buffers[key]
	if !ok {
		buf = &Buffer{
			StreamID:  key.StreamID,
			Direction: key.Direction,
			Created:   now,
		}
		r.buffers[key] = buf
	}

	switch {
	case pkt.Signaling != nil:
		buf.Info = &CallInfo{
			ChannelID: pkt.Signaling.ChannelID,
			Extension: pkt.Signaling.Extension,
			CallerID:  pkt.Signaling.CallerID,
			CalledID:  pkt.Signaling.CalledID,
			Timestamp: pkt.Signaling.Timestamp,
		}
	case pkt.Audio != nil:
		buf.Data = append(buf.Data, pkt.Audio.AudioData...)
		buf.LastSeq = pkt.Audio.Sequence
	}

	buf.Packets++
	buf.LastActivity = now

	return buf
}

// Get returns the buffer for a key, if one exists.
func (r *Registry) Get(streamID uint32, direction uint8) (*Buffer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buf, ok := r.buffers[Key{StreamID: streamID, Direction: direction}]
	return buf, ok
}

// Remove atomically detaches both direction buffers for a stream_id. A packet
// arriving afterwards starts from a clean buffer instead of resurrecting
// stale metadata.
func (r *Registry) Remove(streamID uint32) (rx, tx *Buffer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rxKey := Key{StreamID: streamID, Direction: protocol.DirectionRX}
	txKey := Key{StreamID: streamID, Direction: protocol.DirectionTX}

	rx = r.buffers[rxKey]
	tx = r.buffers[txKey]
	delete(r.buffers, rxKey)
	delete(r.buffers, txKey)

	return rx, tx
}

// IdleStreams returns the stream_ids whose every existing direction buffer
// has been idle for at least threshold. A stream with only one leg is judged
// on that leg alone; a stream with both legs stays live as long as either is
// recent.
func (r *Registry) IdleStreams(now time.Time, threshold time.Duration) []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recent := make(map[uint32]bool)
	seen := make(map[uint32]bool)
	for key, buf := range r.buffers {
		seen[key.StreamID] = true
		if now.Sub(buf.LastActivity) < threshold {
			recent[key.StreamID] = true
		}
	}

	idle := make([]uint32, 0)
	for id := range seen {
		if !recent[id] {
			idle = append(idle, id)
		}
	}

	return idle
}

// StreamCount returns the number of distinct active stream_ids.
func (r *Registry) StreamCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make(map[uint32]struct{}, len(r.buffers))
	for key := range r.buffers {
		ids[key.StreamID] = struct{}{}
	}
	return len(ids)
}

// BufferCount returns the number of live buffers across all streams.
func (r *Registry) BufferCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buffers)
}

// StreamIDs returns all distinct stream_ids with at least one buffer.
func (r *Registry) StreamIDs() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uint32]struct{})
	ids := make([]uint32, 0)
	for key := range r.buffers {
		if _, ok := seen[key.StreamID]; !ok {
			seen[key.StreamID] = struct{}{}
			ids = append(ids, key.StreamID)
		}
	}
	return ids
}

// Snapshot returns monitoring views of every live buffer.
func (r *Registry) Snapshot() []BufferInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]BufferInfo, 0, len(r.buffers))
	for _, buf := range r.buffers {
		info := BufferInfo{
			StreamID:     buf.StreamID,
			Direction:    protocol.DirectionString(buf.Direction),
			Bytes:        len(buf.Data),
			Packets:      buf.Packets,
			LastSequence: buf.LastSeq,
			Created:      buf.Created,
			LastActivity: buf.LastActivity,
		}
		if buf.Info != nil {
			info.CallerID = buf.Info.CallerID
			info.CalledID = buf.Info.CalledID
			info.ChannelID = buf.Info.ChannelID
			info.Extension = buf.Info.Extension
		}
		infos = append(infos, info)
	}
	return infos
}
