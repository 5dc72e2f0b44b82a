package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}

	if cfg.Server.UDPPort != 4444 {
		t.Errorf("expected default port 4444, got %d", cfg.Server.UDPPort)
	}
	if cfg.Recording.OutputDir != "recordings" {
		t.Errorf("expected default output dir 'recordings', got %q", cfg.Recording.OutputDir)
	}
	if got := cfg.Recording.GetStreamTimeoutDuration(); got != 30*time.Second {
		t.Errorf("expected 30s stream timeout, got %v", got)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if cfg.Server.UDPPort != Default().Server.UDPPort {
		t.Errorf("expected defaults, got %+v", cfg.Server)
	}
}

func TestLoadValidFile(t *testing.T) {
	content := `
server:
  udp_port: 5555
  bind_address: "127.0.0.1"
  buffer_size: 32768
recording:
  output_dir: /tmp/recordings
  format: wav
  stream_timeout: 60
  report_every: 50
  sample_rate: 8000
  bit_depth: 16
  channels: 1
http:
  enabled: true
  address: "0.0.0.0"
  port: 9090
logging:
  level: debug
  format: json
  output: stderr
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.UDPPort != 5555 {
		t.Errorf("expected udp_port 5555, got %d", cfg.Server.UDPPort)
	}
	if cfg.Recording.Format != "wav" {
		t.Errorf("expected format wav, got %q", cfg.Recording.Format)
	}
	if cfg.Recording.GetStreamTimeoutDuration() != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.Recording.GetStreamTimeoutDuration())
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Port != 9090 {
		t.Errorf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	content := `
server:
  udp_port: 6000
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.UDPPort != 6000 {
		t.Errorf("expected udp_port 6000, got %d", cfg.Server.UDPPort)
	}
	if cfg.Server.BindAddress != "0.0.0.0" {
		t.Errorf("expected default bind_address, got %q", cfg.Server.BindAddress)
	}
	if cfg.Recording.StreamTimeout != 30 {
		t.Errorf("expected default stream_timeout, got %d", cfg.Recording.StreamTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:     "invalid udp port",
			mutate:   func(c *Config) { c.Server.UDPPort = 0 },
			errorMsg: "udp_port",
		},
		{
			name:     "empty bind address",
			mutate:   func(c *Config) { c.Server.BindAddress = "" },
			errorMsg: "bind_address",
		},
		{
			name:     "tiny buffer",
			mutate:   func(c *Config) { c.Server.BufferSize = 100 },
			errorMsg: "buffer_size",
		},
		{
			name:     "empty output dir",
			mutate:   func(c *Config) { c.Recording.OutputDir = "" },
			errorMsg: "output_dir",
		},
		{
			name:     "bad format",
			mutate:   func(c *Config) { c.Recording.Format = "mp3" },
			errorMsg: "format",
		},
		{
			name:     "zero stream timeout",
			mutate:   func(c *Config) { c.Recording.StreamTimeout = 0 },
			errorMsg: "stream_timeout",
		},
		{
			name:     "wrong sample rate",
			mutate:   func(c *Config) { c.Recording.SampleRate = 44100 },
			errorMsg: "sample_rate",
		},
		{
			name:     "http enabled without address",
			mutate:   func(c *Config) { c.HTTP.Enabled = true; c.HTTP.Address = "" },
			errorMsg: "address",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error to mention %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}
