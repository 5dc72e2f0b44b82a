// Package sink persists accumulated stream audio to the recordings
// directory, either as verbatim raw bytes or wrapped in a PCM WAV header.
package sink
