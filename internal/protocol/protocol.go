package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Protocol constants from the ForkStream wire specification
const (
	// Packet types
	PacketTypeSignaling = 0x01
	PacketTypeAudio     = 0x02

	// Direction types
	DirectionRX = 0x01 // Received audio
	DirectionTX = 0x02 // Transmitted audio

	// Packet structure sizes
	HeaderSize             = 8   // 1 + 2 + 4 + 1 bytes
	SignalingPayloadSize   = 164 // 64 + 32 + 32 + 32 + 4 bytes
	AudioPayloadHeaderSize = 4   // Sequence number (4 bytes)

	// String field sizes in signaling payload
	ChannelIDSize = 64
	ExtensionSize = 32
	CallerIDSize  = 32
	CalledIDSize  = 32

	// MaxPacketSize is the largest packet the u16 length field can describe.
	MaxPacketSize = 0xFFFF
)

// Decode error taxonomy. Callers distinguish framing errors from payload
// errors with errors.Is; both are drop-and-continue at the receive loop.
var (
	ErrHeaderTooShort    = errors.New("header too short")
	ErrLengthMismatch    = errors.New("packet length mismatch")
	ErrUnknownPacketType = errors.New("unknown packet type")
	ErrUnknownDirection  = errors.New("unknown direction")
	ErrSignalingTooShort = errors.New("signaling payload too short")
	ErrAudioTooShort     = errors.New("audio payload too short")
	ErrInvalidText       = errors.New("invalid text encoding")
)

// Header represents the 8-byte TLV packet header
// Layout: [PacketType:1][PacketLen:2][StreamID:4][Direction:1]
type Header struct {
	PacketType uint8  // 0x01=Signaling, 0x02=Audio
	PacketLen  uint16 // Total packet size (header + payload)
	StreamID   uint32 // Unique stream identifier
	Direction  uint8  // 0x01=RX, 0x02=TX
}

// SignalingPayload carries call metadata. The wire format stores each text
// field NUL-padded to a fixed width; padding is stripped on decode.
// Layout: [ChannelID:64][Extension:32][CallerID:32][CalledID:32][Timestamp:4]
type SignalingPayload struct {
	ChannelID string
	Extension string
	CallerID  string
	CalledID  string
	Timestamp uint32 // Unix epoch seconds
}

// AudioPayload represents the audio packet payload
// Layout: [Sequence:4][AudioData:N]
type AudioPayload struct {
	Sequence  uint32 // Packet sequence number, informational only
	AudioData []byte // Opaque audio bytes (may be empty)
}

// Packet represents a fully parsed TLV packet
type Packet struct {
	Header    Header
	Signaling *SignalingPayload // Only set for signaling packets
	Audio     *AudioPayload     // Only set for audio packets
}

// ParseHeader parses the 8-byte TLV packet header
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrHeaderTooShort, HeaderSize, len(data))
	}

	return Header{
		PacketType: data[0],
		PacketLen:  binary.BigEndian.Uint16(data[1:3]),
		StreamID:   binary.BigEndian.Uint32(data[3:7]),
		Direction:  data[7],
	}, nil
}

// ParseSignalingPayload parses the 164-byte signaling packet payload
func ParseSignalingPayload(data []byte) (*SignalingPayload, error) {
	if len(data) < SignalingPayloadSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrSignalingTooShort, SignalingPayloadSize, len(data))
	}

	payload := &SignalingPayload{}

	fields := []struct {
		name string
		dst  *string
		off  int
		size int
	}{
		{"channel_id", &payload.ChannelID, 0, ChannelIDSize},
		{"extension", &payload.Extension, ChannelIDSize, ExtensionSize},
		{"caller_id", &payload.CallerID, ChannelIDSize + ExtensionSize, CallerIDSize},
		{"called_id", &payload.CalledID, ChannelIDSize + ExtensionSize + CallerIDSize, CalledIDSize},
	}

	for _, f := range fields {
		s, err := extractString(data[f.off : f.off+f.size])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = s
	}

	tsOffset := ChannelIDSize + ExtensionSize + CallerIDSize + CalledIDSize
	payload.Timestamp = binary.BigEndian.Uint32(data[tsOffset : tsOffset+4])

	return payload, nil
}

// ParseAudioPayload parses the audio packet payload (4-byte sequence + audio data).
// Zero audio bytes after the sequence is valid and represents a heartbeat.
func ParseAudioPayload(data []byte) (*AudioPayload, error) {
	if len(data) < AudioPayloadHeaderSize {
		return nil, fmt.Errorf("%w: expected at least %d bytes, got %d", ErrAudioTooShort, AudioPayloadHeaderSize, len(data))
	}

	payload := &AudioPayload{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
	}

	if len(data) > AudioPayloadHeaderSize {
		payload.AudioData = make([]byte, len(data)-AudioPayloadHeaderSize)
		copy(payload.AudioData, data[AudioPayloadHeaderSize:])
	}

	return payload, nil
}

// ParsePacket parses a complete TLV packet (header + payload). It is pure and
// deterministic: identical bytes in, identical packet out.
func ParsePacket(data []byte) (*Packet, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	// The embedded length must equal the physical datagram length. This is
	// checked before the payload is inspected at all.
	if int(header.PacketLen) != len(data) {
		return nil, fmt.Errorf("%w: header says %d bytes, got %d bytes", ErrLengthMismatch, header.PacketLen, len(data))
	}

	if !IsValidPacketType(header.PacketType) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownPacketType, header.PacketType)
	}

	if !IsValidDirection(header.Direction) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownDirection, header.Direction)
	}

	packet := &Packet{Header: header}
	payloadData := data[HeaderSize:]

	switch header.PacketType {
	case PacketTypeSignaling:
		payload, err := ParseSignalingPayload(payloadData)
		if err != nil {
			return nil, err
		}
		packet.Signaling = payload

	case PacketTypeAudio:
		payload, err := ParseAudioPayload(payloadData)
		if err != nil {
			return nil, err
		}
		packet.Audio = payload
	}

	return packet, nil
}

// IsValidPacketType checks if the packet type is valid
func IsValidPacketType(ptype uint8) bool {
	return ptype == PacketTypeSignaling || ptype == PacketTypeAudio
}

// IsValidDirection checks if the direction is valid
func IsValidDirection(dir uint8) bool {
	return dir == DirectionRX || dir == DirectionTX
}

// extractString cuts a fixed-width field at its first NUL byte and validates
// the result as UTF-8.
func extractString(buf []byte) (string, error) {
	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}
	if !utf8.Valid(buf[:end]) {
		return "", ErrInvalidText
	}
	return string(buf[:end]), nil
}

// DirectionString converts a direction code to a human-readable label
func DirectionString(direction uint8) string {
	switch direction {
	case DirectionRX:
		return "RX"
	case DirectionTX:
		return "TX"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", direction)
	}
}

// PacketTypeString converts a packet type code to a human-readable label
func PacketTypeString(ptype uint8) string {
	switch ptype {
	case PacketTypeSignaling:
		return "Signaling"
	case PacketTypeAudio:
		return "Audio"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", ptype)
	}
}

// String returns a human-readable representation of the header
func (h Header) String() string {
	return fmt.Sprintf("Header{Type:%s, Len:%d, StreamID:%d, Direction:%s}",
		PacketTypeString(h.PacketType), h.PacketLen, h.StreamID, DirectionString(h.Direction))
}

// String returns a human-readable representation of the signaling payload
func (s *SignalingPayload) String() string {
	return fmt.Sprintf("SignalingPayload{ChannelID:%q, Extension:%q, CallerID:%q, CalledID:%q, Timestamp:%d}",
		s.ChannelID, s.Extension, s.CallerID, s.CalledID, s.Timestamp)
}

// String returns a human-readable representation of the audio payload
func (a *AudioPayload) String() string {
	return fmt.Sprintf("AudioPayload{Sequence:%d, AudioDataLen:%d}", a.Sequence, len(a.AudioData))
}
