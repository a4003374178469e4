// Package logging configures the process-wide slog logger to write JSON
// records to a rolling file in the memory directory.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lazygophers/ccmem/internal/config"
)

// ParseLevel maps a config level name to a slog level. Unknown names are INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a JSON logger writing to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup installs the rolling file logger as the slog default. The returned
// closer flushes and closes the file. When the log directory cannot be
// created, records are discarded rather than printed, so a CLI never leaks
// log lines onto the terminal.
func Setup(cfg *config.Config) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath()), 0755); err != nil {
		slog.SetDefault(NewLogger(io.Discard, slog.LevelError))
		return io.NopCloser(nil), err
	}

	rolling := &lumberjack.Logger{
		Filename:   cfg.LogPath(),
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
	}
	logger := NewLogger(rolling, ParseLevel(cfg.Log.Level)).With("pid", os.Getpid())
	slog.SetDefault(logger)
	return rolling, nil
}

// Logger returns the default logger.
func Logger() *slog.Logger {
	return slog.Default()
}
