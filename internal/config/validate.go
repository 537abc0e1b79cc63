package config

import (
	"fmt"
	"net/url"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.validatePort(); err != nil {
		return fmt.Errorf("port config: %w", err)
	}
	if err := c.validateScan(); err != nil {
		return fmt.Errorf("scan config: %w", err)
	}
	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.validateNATS(); err != nil {
		return fmt.Errorf("nats config: %w", err)
	}
	return nil
}

func (c *Config) validatePort() error {
	if c.Port.Xon < 0 || c.Port.Xon > 0xff || c.Port.Xoff < 0 || c.Port.Xoff > 0xff {
		return fmt.Errorf("xon and xoff must be byte values")
	}
	if c.Port.Terminator < 0 || c.Port.Terminator > 0xff {
		return fmt.Errorf("terminator must be a byte value")
	}
	if _, err := c.Port.SerialConfig(); err != nil {
		return err
	}
	if _, err := c.Port.SplitFunc(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	if c.Scan.WatchDebounce < 0 {
		return fmt.Errorf("watch_debounce must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid level %q (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid format %q (must be text or json)", c.Logging.Format)
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB < 1 {
		return fmt.Errorf("max_size_mb must be at least 1")
	}
	if c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("max_backups and max_age_days must not be negative")
	}
	return nil
}

func (c *Config) validateNATS() error {
	u, err := url.Parse(c.NATS.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "nats" && u.Scheme != "tls" {
		return fmt.Errorf("url scheme must be nats or tls, got %q", u.Scheme)
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("subject_prefix is required")
	}
	return nil
}
