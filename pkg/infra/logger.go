package infra

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Guizzs26/go-pos-sync/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	rotatorMu sync.Mutex
	rotator   *lumberjack.Logger
)

func SetupLogger(cfg *config.Config) *slog.Logger {
	return SetupLoggerTo(cfg, os.Stdout)
}

// SetupLoggerTo is SetupLogger with a different console stream, for tools
// whose stdout carries command output
func SetupLoggerTo(cfg *config.Config, console io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := console
	if cfg.LogFile != "" {
		rotatorMu.Lock()
		rotator = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		out = io.MultiWriter(console, rotator)
		rotatorMu.Unlock()
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if strings.ToUpper(cfg.LogFormat) == "JSON" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// CloseLogger flushes and closes the rotating log file, if one was opened.
func CloseLogger() {
	rotatorMu.Lock()
	defer rotatorMu.Unlock()
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
}
