package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"baudsniffer/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// logLevel maps a configured level name to slog
func logLevel(name string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch name {
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

// setupLogging configures logging with optional file rotation. The returned
// closer flushes the rotating file, if any.
func setupLogging(cfg *config.LoggingConfig, debug bool, console io.Writer) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{
		Level: logLevel(cfg.Level, debug),
	}

	// If log base path is configured, write to rotating log file
	if cfg.BasePath != "" {
		if err := os.MkdirAll(cfg.BasePath, 0755); err == nil {
			writer := &lumberjack.Logger{
				Filename:   filepath.Join(cfg.BasePath, "baudsniffer.log"),
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				Compress:   cfg.Compress,
			}
			return slog.New(slog.NewJSONHandler(writer, opts)), writer
		}
	}

	// Console output goes to stdout, so logs go to stderr
	return slog.New(slog.NewTextHandler(console, opts)), nopCloser{}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
