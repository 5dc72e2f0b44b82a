package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete receiver configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Recording RecordingConfig `yaml:"recording"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains UDP listener configuration
type ServerConfig struct {
	UDPPort     int    `yaml:"udp_port"`
	BindAddress string `yaml:"bind_address"`
	BufferSize  int    `yaml:"buffer_size"`
}

// RecordingConfig contains audio accumulation and flush parameters
type RecordingConfig struct {
	OutputDir     string `yaml:"output_dir"`
	Format        string `yaml:"format"`         // "raw" or "wav"
	StreamTimeout int    `yaml:"stream_timeout"` // seconds of inactivity before flush
	ReportEvery   int    `yaml:"report_every"`   // packets between console stat reports
	SampleRate    int    `yaml:"sample_rate"`
	BitDepth      int    `yaml:"bit_depth"`
	Channels      int    `yaml:"channels"`
}

// HTTPConfig contains the monitoring HTTP server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no config file is given: the
// historical receiver defaults (0.0.0.0:4444, recordings/, 30 second
// timeout, report every 100 packets, 8 kHz 16-bit mono).
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			UDPPort:     4444,
			BindAddress: "0.0.0.0",
			BufferSize:  65536,
		},
		Recording: RecordingConfig{
			OutputDir:     "recordings",
			Format:        "raw",
			StreamTimeout: 30,
			ReportEvery:   100,
			SampleRate:    8000,
			BitDepth:      16,
			Channels:      1,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// Start from the defaults so a partial file only overrides what it names.
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs validation of the full configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Recording.Validate(); err != nil {
		return fmt.Errorf("recording config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.UDPPort < 1 || s.UDPPort > 65535 {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", s.UDPPort)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 {
		return fmt.Errorf("buffer_size must be at least 1024 bytes, got %d", s.BufferSize)
	}

	return nil
}

// Validate validates recording configuration
func (r *RecordingConfig) Validate() error {
	if r.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if r.Format != "raw" && r.Format != "wav" {
		return fmt.Errorf("format must be 'raw' or 'wav', got '%s'", r.Format)
	}

	if r.StreamTimeout < 1 {
		return fmt.Errorf("stream_timeout must be at least 1 second, got %d", r.StreamTimeout)
	}

	if r.ReportEvery < 0 {
		return fmt.Errorf("report_every cannot be negative, got %d", r.ReportEvery)
	}

	if r.SampleRate != 8000 {
		return fmt.Errorf("sample_rate must be 8000 Hz for the ForkStream protocol, got %d", r.SampleRate)
	}

	if r.BitDepth != 16 {
		return fmt.Errorf("bit_depth must be 16, got %d", r.BitDepth)
	}

	if r.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", r.Channels)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetStreamTimeoutDuration returns the inactivity threshold as a time.Duration
func (r *RecordingConfig) GetStreamTimeoutDuration() time.Duration {
	return time.Duration(r.StreamTimeout) * time.Second
}
