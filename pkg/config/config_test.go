package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStripEnabledDefault(t *testing.T) {
	cfg := FramerConfig{}
	if !cfg.StripEnabled() {
		t.Error("StripEnabled should default to true when StripTerminator is nil")
	}
}

func TestStripEnabledExplicitFalse(t *testing.T) {
	v := false
	cfg := FramerConfig{StripTerminator: &v}
	if cfg.StripEnabled() {
		t.Error("StripEnabled should return false when set to false")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, t.TempDir(), "frametap.yaml", `
log_level: debug
streams:
  - name: meter
    transport:
      type: serial
      device: /dev/ttyUSB0
      baud: 115200
    framer:
      type: terminator
      pattern: "0D 0A"
  - name: scanner
    transport:
      type: tcp
      address: 10.0.0.5:7000
    framer:
      type: header
      pattern: "99 ??"
      max_buffer: 2048
      clear_timeout: 250ms
    cancel_on_error: true
    broadcast: true
exporters:
  stdout:
    enabled: true
    format: json
health:
  port: ":9999"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.Streams) != 2 {
		t.Fatalf("got %d streams, want 2", len(cfg.Streams))
	}

	meter := cfg.Streams[0]
	if meter.Transport.Type != "serial" || meter.Transport.Baud != 115200 {
		t.Errorf("meter transport = %+v", meter.Transport)
	}
	if meter.Framer.Pattern != "0D 0A" || !meter.Framer.StripEnabled() {
		t.Errorf("meter framer = %+v", meter.Framer)
	}

	scanner := cfg.Streams[1]
	if scanner.Framer.MaxBuffer != 2048 {
		t.Errorf("MaxBuffer = %d, want 2048", scanner.Framer.MaxBuffer)
	}
	if time.Duration(scanner.Framer.ClearTimeout) != 250*time.Millisecond {
		t.Errorf("ClearTimeout = %v, want 250ms", scanner.Framer.ClearTimeout)
	}
	if !scanner.CancelOnError || !scanner.Broadcast {
		t.Errorf("scanner flags = %+v", scanner)
	}

	if cfg.Exporters.Stdout.Format != "json" {
		t.Errorf("stdout format = %q, want json", cfg.Exporters.Stdout.Format)
	}
	if cfg.Health.Port != ":9999" {
		t.Errorf("health port = %q, want :9999", cfg.Health.Port)
	}
}

func TestLoadDirMergesOverlays(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "log_level: warn\nhealth:\n  port: \":8080\"\n")
	writeFile(t, dir, "streams.yaml", `
streams:
  - name: lab
    transport:
      type: loopback
    framer:
      type: terminator
      pattern: "0A"
`)
	writeFile(t, dir, "exporters.yaml", "exporters:\n  stdout:\n    enabled: true\n    format: text\n")

	cfg, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if len(cfg.Streams) != 1 || cfg.Streams[0].Name != "lab" {
		t.Errorf("streams = %+v", cfg.Streams)
	}
	if cfg.Health.Port != ":8080" {
		t.Errorf("health port = %q, want :8080", cfg.Health.Port)
	}
}

func TestLoadDirMissingFilesUseDefaults(t *testing.T) {
	cfg, err := LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadDir on empty dir: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
}

func TestDurationNanosecondInteger(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yaml", `
streams:
  - name: n
    transport:
      type: loopback
    framer:
      type: header
      pattern: "99"
      clear_timeout: 1000000000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if time.Duration(cfg.Streams[0].Framer.ClearTimeout) != time.Second {
		t.Errorf("ClearTimeout = %v, want 1s", cfg.Streams[0].Framer.ClearTimeout)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing stream name",
			"streams:\n  - transport:\n      type: loopback\n    framer:\n      type: terminator\n      pattern: \"0A\"\n",
			"name is required",
		},
		{
			"duplicate stream name",
			`
streams:
  - name: a
    transport: {type: loopback}
    framer: {type: terminator, pattern: "0A"}
  - name: a
    transport: {type: loopback}
    framer: {type: terminator, pattern: "0A"}
`,
			"duplicate stream name",
		},
		{
			"unknown transport type",
			"streams:\n  - name: a\n    transport:\n      type: carrier-pigeon\n    framer:\n      type: terminator\n      pattern: \"0A\"\n",
			"transport.type",
		},
		{
			"serial without device",
			"streams:\n  - name: a\n    transport:\n      type: serial\n      baud: 9600\n    framer:\n      type: terminator\n      pattern: \"0A\"\n",
			"transport.device",
		},
		{
			"tcp without address",
			"streams:\n  - name: a\n    transport:\n      type: tcp\n    framer:\n      type: terminator\n      pattern: \"0A\"\n",
			"transport.address",
		},
		{
			"unknown framer type",
			"streams:\n  - name: a\n    transport:\n      type: loopback\n    framer:\n      type: zigzag\n      pattern: \"0A\"\n",
			"framer.type",
		},
		{
			"empty pattern",
			"streams:\n  - name: a\n    transport:\n      type: loopback\n    framer:\n      type: terminator\n",
			"framer.pattern",
		},
		{
			"bad pattern hex",
			"streams:\n  - name: a\n    transport:\n      type: loopback\n    framer:\n      type: terminator\n      pattern: \"GG\"\n",
			"framer.pattern",
		},
		{
			"negative max buffer",
			"streams:\n  - name: a\n    transport:\n      type: loopback\n    framer:\n      type: terminator\n      pattern: \"0A\"\n      max_buffer: -1\n",
			"max_buffer",
		},
		{
			"bad otlp protocol",
			"exporters:\n  otlp:\n    enabled: true\n    endpoint: localhost:4317\n    protocol: carrier-pigeon\n",
			"otlp.protocol",
		},
		{
			"bad stdout format",
			"exporters:\n  stdout:\n    enabled: true\n    format: yaml\n",
			"stdout.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "c.yaml", tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FRAMETAP_SERVICE_NAME", "edge-tap")
	t.Setenv("FRAMETAP_LOG_LEVEL", "debug")
	t.Setenv("FRAMETAP_HEALTH_PORT", ":7070")
	t.Setenv("FRAMETAP_EXPORTERS_OTLP_ENABLED", "true")
	t.Setenv("FRAMETAP_EXPORTERS_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.ServiceName != "edge-tap" {
		t.Errorf("ServiceName = %q, want edge-tap", cfg.ServiceName)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Health.Port != ":7070" {
		t.Errorf("Health.Port = %q, want :7070", cfg.Health.Port)
	}
	if !cfg.Exporters.OTLP.Enabled {
		t.Error("OTLP.Enabled should be overridden to true")
	}
	if cfg.Exporters.OTLP.Endpoint != "collector:4317" {
		t.Errorf("OTLP.Endpoint = %q, want collector:4317", cfg.Exporters.OTLP.Endpoint)
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "1", "yes", "TRUE", " Yes "} {
		if !parseBool(s) {
			t.Errorf("parseBool(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"false", "0", "no", "on", ""} {
		if parseBool(s) {
			t.Errorf("parseBool(%q) = true, want false", s)
		}
	}
}
