package internal

import (
	"io"
	"log/slog"

	"github.com/natefinch/lumberjack"
)

// newLogger builds the JSON logger. When a log file is configured, lines
// go to both out and a size-rotated file. The returned closer releases it.
func newLogger(cfg *Config, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if cfg.App.Log.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.App.Log.File,
			MaxSize:    cfg.App.Log.MaxSizeMB,
			MaxBackups: cfg.App.Log.MaxBackups,
			MaxAge:     cfg.App.Log.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closer = file
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
