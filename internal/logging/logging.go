// Package logging builds the slog logger used by serialctl.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/allbin/go-serialctl/internal/config"
)

// ParseLevel maps a configured level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger writing JSON to a rotating file when cfg.File is
// set, and to stderr otherwise. The returned closer releases the file.
func New(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.File == "" {
		var handler slog.Handler = slog.NewTextHandler(stderr, opts)
		if cfg.Format == "json" {
			handler = slog.NewJSONHandler(stderr, opts)
		}
		return slog.New(handler), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	writer := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return slog.New(slog.NewJSONHandler(writer, opts)), writer, nil
}
