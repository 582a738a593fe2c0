// Package logging configures the process-wide slog logger: leveled,
// text or JSON, written to stdout and to an append-only log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/probekit/pageprobe/config"
)

// Setup installs the default slog logger per config. When cfg.File is
// non-empty, log lines are duplicated into that file, opened in append
// mode so earlier runs are never overwritten. The returned close function
// releases the file handle.
func Setup(cfg config.LogConfig) (func() error, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := io.Writer(os.Stdout)
	closeFn := func() error { return nil }

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}
