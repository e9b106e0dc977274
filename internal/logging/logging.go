package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls structured logging for the process.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// File is the log file path. Empty logs to stderr only.
	File string
	// MaxSizeMB rotates the file once it grows past this size (default 50).
	MaxSizeMB int
	// MaxFiles is how many rotated files to keep (default 3).
	MaxFiles int
	// Quiet suppresses the stderr copy when a file is configured.
	Quiet bool
}

// Setup installs a JSON slog logger per cfg as the process default and
// returns a cleanup function that flushes and closes the log file.
func Setup(cfg Config) (func(), error) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 3
	}

	var output io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.File != "" {
		writer, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, err
		}
		if cfg.Quiet {
			output = writer
		} else {
			output = io.MultiWriter(writer, os.Stderr)
		}
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
