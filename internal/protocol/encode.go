package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encoders for the sender side of the protocol. The service itself never
// transmits; these exist for traffic generation and round-trip testing.

// EncodeSignalingPacket builds a complete signaling datagram (header + 164-byte
// payload). Text fields longer than their wire width are rejected rather than
// truncated.
func EncodeSignalingPacket(streamID uint32, direction uint8, payload *SignalingPayload) ([]byte, error) {
	if !IsValidDirection(direction) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownDirection, direction)
	}

	fields := []struct {
		name string
		val  string
		size int
	}{
		{"channel_id", payload.ChannelID, ChannelIDSize},
		{"extension", payload.Extension, ExtensionSize},
		{"caller_id", payload.CallerID, CallerIDSize},
		{"called_id", payload.CalledID, CalledIDSize},
	}

	buf := make([]byte, HeaderSize+SignalingPayloadSize)
	putHeader(buf, PacketTypeSignaling, uint16(len(buf)), streamID, direction)

	off := HeaderSize
	for _, f := range fields {
		// Fields must leave room for at least one NUL so the decoder can
		// find the terminator.
		if len(f.val) >= f.size {
			return nil, fmt.Errorf("%s too long: %d bytes, max %d", f.name, len(f.val), f.size-1)
		}
		copy(buf[off:off+f.size], f.val)
		off += f.size
	}

	binary.BigEndian.PutUint32(buf[off:off+4], payload.Timestamp)

	return buf, nil
}

// EncodeAudioPacket builds a complete audio datagram (header + sequence +
// audio bytes). Empty audio is a valid heartbeat packet.
func EncodeAudioPacket(streamID uint32, direction uint8, sequence uint32, audio []byte) ([]byte, error) {
	if !IsValidDirection(direction) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownDirection, direction)
	}

	total := HeaderSize + AudioPayloadHeaderSize + len(audio)
	if total > MaxPacketSize {
		return nil, fmt.Errorf("audio payload too large: %d bytes exceed %d byte packet limit", len(audio), MaxPacketSize)
	}

	buf := make([]byte, total)
	putHeader(buf, PacketTypeAudio, uint16(total), streamID, direction)
	binary.BigEndian.PutUint32(buf[HeaderSize:HeaderSize+4], sequence)
	copy(buf[HeaderSize+AudioPayloadHeaderSize:], audio)

	return buf, nil
}

func putHeader(buf []byte, packetType uint8, packetLen uint16, streamID uint32, direction uint8) {
	buf[0] = packetType
	binary.BigEndian.PutUint16(buf[1:3], packetLen)
	binary.BigEndian.PutUint32(buf[3:7], streamID)
	buf[7] = direction
}
