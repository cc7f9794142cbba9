// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/frametap/frametap/pkg/framing"
)

// Config is the top-level configuration for the frametap daemon.
type Config struct {
	ServiceName string          `yaml:"service_name" env:"FRAMETAP_SERVICE_NAME"`
	LogLevel    string          `yaml:"log_level" env:"FRAMETAP_LOG_LEVEL"`
	Streams     []StreamConfig  `yaml:"streams"`
	Exporters   ExportersConfig `yaml:"exporters"`
	Health      HealthConfig    `yaml:"health"`
}

// Duration unmarshals from both "500ms"-style YAML strings and plain
// integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int":
		var n int64
		if _, err := fmt.Sscanf(value.Value, "%d", &n); err != nil {
			return fmt.Errorf("invalid duration %q", value.Value)
		}
		*d = Duration(n)
		return nil
	case "!!str":
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		*d = Duration(parsed)
		return nil
	}
	return fmt.Errorf("invalid duration value %q", value.Value)
}

// StreamConfig binds one transport to one framer.
type StreamConfig struct {
	Name          string          `yaml:"name"`
	Transport     TransportConfig `yaml:"transport"`
	Framer        FramerConfig    `yaml:"framer"`
	CancelOnError bool            `yaml:"cancel_on_error"`
	Broadcast     bool            `yaml:"broadcast"`
}

type TransportConfig struct {
	Type      string   `yaml:"type"`       // "serial", "tcp", "loopback"
	Device    string   `yaml:"device"`     // serial
	Baud      int      `yaml:"baud"`       // serial
	Address   string   `yaml:"address"`    // tcp, "host:port"
	EchoDelay Duration `yaml:"echo_delay"` // loopback
}

type FramerConfig struct {
	Type            string   `yaml:"type"`             // "terminator" or "header"
	Pattern         string   `yaml:"pattern"`          // hex notation, e.g. "0D 0A" or "99 ??"
	StripTerminator *bool    `yaml:"strip_terminator"` // terminator framer (default: true)
	MaxBuffer       int      `yaml:"max_buffer"`       // 0 = framing default
	ClearTimeout    Duration `yaml:"clear_timeout"`    // header framer, 0 = framing default
}

// StripEnabled returns whether the terminator is removed from emitted
// frames. Defaults to true when not explicitly set.
func (f *FramerConfig) StripEnabled() bool {
	if f.StripTerminator == nil {
		return true
	}
	return *f.StripTerminator
}

type ExportersConfig struct {
	OTLP   OTLPConfig   `yaml:"otlp"`
	Stdout StdoutConfig `yaml:"stdout"`
}

type OTLPConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	Protocol    string            `yaml:"protocol"`    // "grpc" or "http"
	Insecure    bool              `yaml:"insecure"`
	Compression string            `yaml:"compression"` // "gzip" or "none"
	Headers     map[string]string `yaml:"headers"`
}

type StdoutConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"` // "text" or "json"
}

// HealthConfig configures the health HTTP server.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port" env:"FRAMETAP_HEALTH_PORT"` // e.g. ":8787"
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults. Streams
// are empty; a daemon without streams starts but taps nothing.
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "frametap",
		LogLevel:    "info",
		Exporters: ExportersConfig{
			OTLP: OTLPConfig{
				Enabled:     false,
				Endpoint:    "localhost:4317",
				Protocol:    "grpc",
				Insecure:    true,
				Compression: "gzip",
			},
			Stdout: StdoutConfig{
				Enabled: true,
				Format:  "text",
			},
		},
		Health: HealthConfig{
			Enabled: true,
			Port:    ":8787",
		},
	}
}

// LoadDir loads YAML files from a directory and merges them into a
// single Config. Expected files:
//   - base.yaml      → log_level, health
//   - streams.yaml   → streams
//   - exporters.yaml → exporters
//
// Missing files are silently ignored (defaults apply).
func LoadDir(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFileInto(filepath.Join(dir, "base.yaml"), cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load base.yaml: %w", err)
	}

	overlayFiles := []string{"streams.yaml", "exporters.yaml"}
	for _, f := range overlayFiles {
		if err := loadFileInto(filepath.Join(dir, f), cfg); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// loadFileInto reads a YAML file and unmarshals it into an existing
// Config, overwriting only the fields present in the file.
func loadFileInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// ApplyEnvOverrides reads FRAMETAP_* environment variables and applies
// them to the config, overriding YAML values.
func (c *Config) ApplyEnvOverrides() {
	envOverrides := map[string]func(string){
		"FRAMETAP_SERVICE_NAME":            func(v string) { c.ServiceName = v },
		"FRAMETAP_LOG_LEVEL":               func(v string) { c.LogLevel = v },
		"FRAMETAP_HEALTH_PORT":             func(v string) { c.Health.Port = v },
		"FRAMETAP_EXPORTERS_OTLP_ENDPOINT": func(v string) { c.Exporters.OTLP.Endpoint = v },
		"FRAMETAP_EXPORTERS_OTLP_PROTOCOL": func(v string) { c.Exporters.OTLP.Protocol = v },
		"FRAMETAP_EXPORTERS_STDOUT_FORMAT": func(v string) { c.Exporters.Stdout.Format = v },
	}

	boolOverrides := map[string]*bool{
		"FRAMETAP_HEALTH_ENABLED":           &c.Health.Enabled,
		"FRAMETAP_EXPORTERS_OTLP_ENABLED":   &c.Exporters.OTLP.Enabled,
		"FRAMETAP_EXPORTERS_STDOUT_ENABLED": &c.Exporters.Stdout.Enabled,
	}

	for envKey, setter := range envOverrides {
		if val := os.Getenv(envKey); val != "" {
			setter(val)
		}
	}

	for envKey, target := range boolOverrides {
		if val := os.Getenv(envKey); val != "" {
			*target = parseBool(val)
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Streams))
	for i := range c.Streams {
		s := &c.Streams[i]
		if s.Name == "" {
			return fmt.Errorf("streams[%d].name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stream name %q", s.Name)
		}
		seen[s.Name] = true

		if err := s.Transport.validate(); err != nil {
			return fmt.Errorf("stream %q: %w", s.Name, err)
		}
		if err := s.Framer.validate(); err != nil {
			return fmt.Errorf("stream %q: %w", s.Name, err)
		}
	}

	if c.Exporters.OTLP.Enabled {
		if c.Exporters.OTLP.Endpoint == "" {
			return fmt.Errorf("exporters.otlp.endpoint is required when OTLP is enabled")
		}
		if c.Exporters.OTLP.Protocol != "grpc" && c.Exporters.OTLP.Protocol != "http" {
			return fmt.Errorf("exporters.otlp.protocol must be 'grpc' or 'http'")
		}
		if cmp := c.Exporters.OTLP.Compression; cmp != "" && cmp != "gzip" && cmp != "none" {
			return fmt.Errorf("exporters.otlp.compression must be 'gzip' or 'none'")
		}
	}

	if c.Exporters.Stdout.Enabled {
		if f := c.Exporters.Stdout.Format; f != "text" && f != "json" {
			return fmt.Errorf("exporters.stdout.format must be 'text' or 'json'")
		}
	}

	return nil
}

func (t *TransportConfig) validate() error {
	switch t.Type {
	case "serial":
		if t.Device == "" {
			return fmt.Errorf("transport.device is required for serial")
		}
		if t.Baud <= 0 {
			return fmt.Errorf("transport.baud is required for serial")
		}
	case "tcp":
		if t.Address == "" {
			return fmt.Errorf("transport.address is required for tcp")
		}
	case "loopback":
		if t.EchoDelay < 0 {
			return fmt.Errorf("transport.echo_delay must not be negative")
		}
	default:
		return fmt.Errorf("transport.type must be 'serial', 'tcp' or 'loopback', got %q", t.Type)
	}
	return nil
}

func (f *FramerConfig) validate() error {
	switch f.Type {
	case "terminator", "header":
	default:
		return fmt.Errorf("framer.type must be 'terminator' or 'header', got %q", f.Type)
	}

	pat, err := framing.ParsePattern(f.Pattern)
	if err != nil {
		return fmt.Errorf("framer.pattern: %w", err)
	}
	if len(pat) == 0 {
		return fmt.Errorf("framer.pattern is required")
	}

	if f.MaxBuffer < 0 {
		return fmt.Errorf("framer.max_buffer must not be negative")
	}
	if f.ClearTimeout < 0 {
		return fmt.Errorf("framer.clear_timeout must not be negative")
	}
	return nil
}
