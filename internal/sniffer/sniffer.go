// Package sniffer implements a lightweight UDP packet dumper for inspecting
// raw ForkStream traffic on the wire without running the full receiver.
package sniffer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// hexDisplayLimit caps how many payload bytes are hex-dumped per packet.
const hexDisplayLimit = 32

// Sniffer binds a UDP socket and prints every datagram it receives.
type Sniffer struct {
	Host string
	Port int
}

// FormatHex renders data as space-separated hex bytes, truncated to max
// bytes with a total-length note for large payloads.
func FormatHex(data []byte, max int) string {
	var b strings.Builder
	shown := data
	if len(data) > max {
		shown = data[:max]
	}
	for i, v := range shown {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", v)
	}
	if len(data) > max {
		fmt.Fprintf(&b, " ... (%d bytes total)", len(data))
	}
	return b.String()
}

// ClassifyFrameSize guesses the audio codec from a payload size, returning
// an empty string when the size matches no known frame length.
func ClassifyFrameSize(n int) string {
	switch n {
	case 160, 320, 480, 960:
		return "possible G.711/G.722 audio frame"
	case 20, 33:
		return "possible G.729 audio frame"
	default:
		return ""
	}
}

// Run listens until the context is cancelled, then prints session statistics.
func (s *Sniffer) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.Host, s.Port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	defer conn.Close()

	pterm.Info.Printfln("UDP sniffer listening on %s:%d", s.Host, s.Port)
	pterm.Println("Waiting for ForkStream packets... (Press Ctrl+C to stop)")
	pterm.Println(strings.Repeat("-", 70))

	var (
		packetCount uint64
		totalBytes  uint64
	)
	startTime := time.Now()
	buffer := make([]byte, 65536)

	for {
		select {
		case <-ctx.Done():
			s.printStats(packetCount, totalBytes, time.Since(startTime))
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
				s.printStats(packetCount, totalBytes, time.Since(startTime))
				return nil
			}
			return fmt.Errorf("failed to read from UDP: %w", err)
		}

		packetCount++
		totalBytes += uint64(n)
		data := buffer[:n]

		pterm.Printfln("[%s] Packet #%4d from %s",
			time.Now().Format("15:04:05.000"), packetCount, remoteAddr)
		pterm.Printfln("  Size: %4d bytes", n)
		pterm.Printfln("  Data: %s", FormatHex(data, hexDisplayLimit))
		if note := ClassifyFrameSize(n); note != "" {
			pterm.Printfln("  Note: %s", note)
		}
		pterm.Println()
	}
}

func (s *Sniffer) printStats(packets, bytes uint64, elapsed time.Duration) {
	pterm.Println(strings.Repeat("-", 70))
	pterm.Info.Println("Statistics:")
	pterm.Printfln("  Packets received: %d", packets)
	pterm.Printfln("  Total bytes: %d", bytes)
	pterm.Printfln("  Duration: %.1f seconds", elapsed.Seconds())
	if elapsed > 0 {
		pterm.Printfln("  Average rate: %.1f packets/sec", float64(packets)/elapsed.Seconds())
		pterm.Printfln("  Average bandwidth: %.1f kbps", float64(bytes)*8/elapsed.Seconds()/1000)
	}
}
