// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/audiolibrelab/capturewav/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelFromVerbosity maps the -v flag to a slog level
func LevelFromVerbosity(verbose int) slog.Level {
	if verbose >= 1 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// ParseLevel maps a config level name to a slog level; unknown names are info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a text handler writing to stderr and, when cfg.File is
// set, to a rotating log file as well. The returned closer releases the
// log file.
func Setup(cfg config.LogConfig, level slog.Level) (*slog.Logger, io.Closer) {
	return setup(os.Stderr, cfg, level)
}

func setup(stderr io.Writer, cfg config.LogConfig, level slog.Level) (*slog.Logger, io.Closer) {
	var out io.Writer = stderr
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(stderr, rotating)
		closer = rotating
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
