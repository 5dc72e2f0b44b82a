// Package protocol implements ForkStream TLV packet parsing, validation and
// encoding. It handles the 8-byte big-endian header, the fixed 164-byte
// signaling payload and the variable-length audio payload.
package protocol
