package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	serial "github.com/allbin/go-serialctl"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	line, err := cfg.Port.SerialConfig()
	if err != nil {
		t.Fatalf("SerialConfig() error = %v", err)
	}
	if line != serial.DefaultConfig() {
		t.Errorf("SerialConfig() = %+v, want the library defaults", line)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Scan.Concurrency != 4 || cfg.Scan.WatchDebounce != 250*time.Millisecond {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if cfg.NATS.SubjectPrefix != "serial" {
		t.Errorf("NATS.SubjectPrefix = %q, want %q", cfg.NATS.SubjectPrefix, "serial")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configYAML := `
port:
  device: /dev/ttyUSB1
  baud_rate: 115200
  data_bits: 7
  parity: even
  stop_bits: 2
  flow_control: rtscts
  read_timeout: 100ms
  write_timeout: -1s
  write_queue_size: 32
  framing: terminator
  terminator: 13
scan:
  include_unrecognized: true
  concurrency: 2
logging:
  level: debug
  format: json
nats:
  url: nats://broker:4222
  subject_prefix: site.serial
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	v, err := NewViper(configPath)
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port.Device != "/dev/ttyUSB1" {
		t.Errorf("Port.Device = %q, want %q", cfg.Port.Device, "/dev/ttyUSB1")
	}
	line, err := cfg.Port.SerialConfig()
	if err != nil {
		t.Fatalf("SerialConfig() error = %v", err)
	}
	if line.String() != "115200-7-E-2 rtscts" {
		t.Errorf("SerialConfig() = %s", line)
	}
	if line.ReadTimeout != 100*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 100ms", line.ReadTimeout)
	}
	if line.WriteTimeout != serial.Infinite {
		t.Errorf("WriteTimeout = %v, want Infinite", line.WriteTimeout)
	}
	if line.WriteQueueSize != 32 {
		t.Errorf("WriteQueueSize = %d, want 32", line.WriteQueueSize)
	}
	if !cfg.Scan.IncludeUnrecognized || cfg.Scan.Concurrency != 2 {
		t.Errorf("Scan = %+v", cfg.Scan)
	}
	if cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS.URL = %q", cfg.NATS.URL)
	}

	split, err := cfg.Port.SplitFunc()
	if err != nil || split == nil {
		t.Fatalf("SplitFunc() = %v, %v", split, err)
	}
	advance, token, _ := split([]byte("OK\rrest"), false)
	if advance != 3 || string(token) != "OK\r" {
		t.Errorf("split = %d, %q", advance, token)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SERIALCTL_PORT_BAUD_RATE", "19200")
	t.Setenv("SERIALCTL_LOGGING_LEVEL", "warn")

	v, err := NewViper("")
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port.BaudRate != 19200 {
		t.Errorf("Port.BaudRate = %d, want 19200", cfg.Port.BaudRate)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := NewViper("/nonexistent/config.yaml"); err == nil {
		t.Error("NewViper() with a missing explicit file should fail")
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("port:\n  baud_rate: 12345\n"), 0644); err != nil {
		t.Fatal(err)
	}

	v, err := NewViper(configPath)
	if err != nil {
		t.Fatalf("NewViper() error = %v", err)
	}
	if _, err := Load(v); err == nil {
		t.Error("Load() should reject an unsupported baud rate")
	}
}

func TestSplitFunc(t *testing.T) {
	tests := []struct {
		name    string
		port    PortConfig
		wantNil bool
		wantErr bool
	}{
		{"raw", PortConfig{Framing: "raw"}, true, false},
		{"empty", PortConfig{}, true, false},
		{"lines", PortConfig{Framing: "LINES"}, false, false},
		{"fixed", PortConfig{Framing: "fixed", FixedSize: 8}, false, false},
		{"fixed without size", PortConfig{Framing: "fixed"}, false, true},
		{"unknown", PortConfig{Framing: "cobs"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := tt.port.SplitFunc()
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitFunc() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (split == nil) != tt.wantNil {
				t.Errorf("SplitFunc() nil = %v, want %v", split == nil, tt.wantNil)
			}
		})
	}
}
