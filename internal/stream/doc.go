// Package stream maintains per-(stream, direction) audio accumulation
// buffers keyed by the TLV header, and evicts idle streams through the
// inactivity reaper once both directions have gone quiet.
package stream
