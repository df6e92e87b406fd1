package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Options struct {
	Path  string
	Level slog.Level
	// IncludeStderr mirrors warnings and errors to Stderr. Lower levels stay
	// in the file so they do not break progress rendering.
	IncludeStderr bool
	Stderr        io.Writer
}

func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
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

// New opens the log file for appending and returns a logger writing to it.
// The returned closer releases the file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, nil, errors.New("log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handlers := []slog.Handler{slog.NewTextHandler(f, &slog.HandlerOptions{Level: opts.Level})}
	if opts.IncludeStderr {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		level := max(opts.Level, slog.LevelWarn)
		handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewMultiHandler(handlers...)), f, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
