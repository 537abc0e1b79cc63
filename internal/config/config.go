// Package config loads serialctl settings from file, environment and flags.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	serial "github.com/allbin/go-serialctl"
)

// EnvPrefix is the prefix of environment overrides, e.g. SERIALCTL_PORT_BAUD_RATE
const EnvPrefix = "SERIALCTL"

// Config is the root configuration structure
type Config struct {
	Port    PortConfig    `mapstructure:"port"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Logging LoggingConfig `mapstructure:"logging"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

// PortConfig describes the device and its line settings
type PortConfig struct {
	Device      string `mapstructure:"device"`
	BaudRate    int    `mapstructure:"baud_rate"`
	DataBits    int    `mapstructure:"data_bits"`
	StopBits    int    `mapstructure:"stop_bits"`
	Parity      string `mapstructure:"parity"`       // none, odd, even
	FlowControl string `mapstructure:"flow_control"` // none, rtscts, xonxoff
	Xon         int    `mapstructure:"xon"`
	Xoff        int    `mapstructure:"xoff"`

	// Negative timeouts block indefinitely.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	ReadFrameSize    int           `mapstructure:"read_frame_size"`
	WriteFrameSize   int           `mapstructure:"write_frame_size"`
	WriteQueueSize   int           `mapstructure:"write_queue_size"`
	InterByteDelay   time.Duration `mapstructure:"inter_byte_delay"`
	LinePollInterval time.Duration `mapstructure:"line_poll_interval"`

	Framing        string `mapstructure:"framing"` // raw, lines, terminator, fixed
	Terminator     int    `mapstructure:"terminator"`
	FixedSize      int    `mapstructure:"fixed_size"`
	FlushOnTimeout bool   `mapstructure:"flush_on_timeout"`
}

// ScanConfig tunes port discovery
type ScanConfig struct {
	IncludeUnrecognized bool          `mapstructure:"include_unrecognized"`
	Concurrency         int           `mapstructure:"concurrency"`
	WatchDebounce       time.Duration `mapstructure:"watch_debounce"`
}

// LoggingConfig contains logging and log rotation settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // text or json, for stderr output
	File       string `mapstructure:"file"`   // rotate into this file when set
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// NATSConfig contains the event bridge connection settings
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// SetDefaults registers every key with its default so that environment
// variables and flags bind to known keys.
func SetDefaults(v *viper.Viper) {
	d := serial.DefaultConfig()

	v.SetDefault("port.device", "")
	v.SetDefault("port.baud_rate", d.BaudRate)
	v.SetDefault("port.data_bits", d.DataBits)
	v.SetDefault("port.stop_bits", d.StopBits)
	v.SetDefault("port.parity", d.Parity.String())
	v.SetDefault("port.flow_control", d.FlowControl.String())
	v.SetDefault("port.xon", int(d.XonChar))
	v.SetDefault("port.xoff", int(d.XoffChar))
	v.SetDefault("port.read_timeout", d.ReadTimeout)
	v.SetDefault("port.write_timeout", d.WriteTimeout)
	v.SetDefault("port.read_frame_size", d.ReadFrameSize)
	v.SetDefault("port.write_frame_size", d.WriteFrameSize)
	v.SetDefault("port.write_queue_size", d.WriteQueueSize)
	v.SetDefault("port.inter_byte_delay", d.WriteInterByteDelay)
	v.SetDefault("port.line_poll_interval", d.LinePollInterval)
	v.SetDefault("port.framing", "raw")
	v.SetDefault("port.terminator", int('\n'))
	v.SetDefault("port.fixed_size", 0)
	v.SetDefault("port.flush_on_timeout", false)

	v.SetDefault("scan.include_unrecognized", false)
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.watch_debounce", 250*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age_days", 0)
	v.SetDefault("logging.compress", false)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "serial")
	v.SetDefault("nats.name", "serialctl")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 5*time.Second)
}

// NewViper returns a viper instance with defaults, SERIALCTL_* environment
// overrides and, if found, a config file. An explicit file must exist;
// otherwise $HOME/.serialctl.yaml and /etc/serialctl/config.yaml are tried.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(".serialctl")
		v.AddConfigPath("$HOME")
		v.AddConfigPath("/etc/serialctl")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// SerialConfig converts the port section into line settings
func (p PortConfig) SerialConfig() (serial.Config, error) {
	parity, err := serial.ParseParity(p.Parity)
	if err != nil {
		return serial.Config{}, err
	}
	flow, err := serial.ParseFlowControl(p.FlowControl)
	if err != nil {
		return serial.Config{}, err
	}

	cfg := serial.DefaultConfig()
	cfg.BaudRate = p.BaudRate
	cfg.DataBits = p.DataBits
	cfg.StopBits = p.StopBits
	cfg.Parity = parity
	cfg.FlowControl = flow
	cfg.XonChar = byte(p.Xon)
	cfg.XoffChar = byte(p.Xoff)
	cfg.ReadTimeout = timeout(p.ReadTimeout)
	cfg.WriteTimeout = timeout(p.WriteTimeout)
	cfg.ReadFrameSize = p.ReadFrameSize
	cfg.WriteFrameSize = p.WriteFrameSize
	cfg.WriteQueueSize = p.WriteQueueSize
	cfg.WriteInterByteDelay = p.InterByteDelay
	cfg.LinePollInterval = p.LinePollInterval
	return cfg, cfg.Validate()
}

func timeout(d time.Duration) time.Duration {
	if d < 0 {
		return serial.Infinite
	}
	return d
}

// SplitFunc returns the framing policy for received data; nil means raw
func (p PortConfig) SplitFunc() (bufio.SplitFunc, error) {
	switch strings.ToLower(p.Framing) {
	case "", "raw":
		return nil, nil
	case "lines":
		return serial.SplitTerminator('\n'), nil
	case "terminator":
		return serial.SplitTerminator(byte(p.Terminator)), nil
	case "fixed":
		if p.FixedSize <= 0 {
			return nil, fmt.Errorf("fixed framing needs fixed_size > 0")
		}
		return serial.SplitFixed(p.FixedSize), nil
	}
	return nil, fmt.Errorf("unknown framing %q", p.Framing)
}
