// Package logger builds the application slog.Logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/oasis-bot/pkg/config"
)

var level = new(slog.LevelVar)

// New creates the root logger: stdout (plus an optional rotated file), secret
// masking, and Sentry forwarding for error records when Sentry is enabled.
func New(cfg config.Config) *slog.Logger {
	SetLevel(cfg.Logger.Level)

	var out io.Writer = os.Stdout
	if cfg.Logger.File.Enabled && cfg.Logger.File.Path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.File.Path,
			MaxSize:    cfg.Logger.File.MaxSizeMB,
			MaxBackups: cfg.Logger.File.MaxBackups,
			MaxAge:     cfg.Logger.File.MaxAgeDays,
			Compress:   cfg.Logger.File.Compress,
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		base = slog.NewTextHandler(out, opts)
	} else {
		base = slog.NewJSONHandler(out, opts)
	}

	handlers := []slog.Handler{base}
	if cfg.Sentry.Enabled {
		handlers = append(handlers, slogsentry.Option{Level: slog.LevelError, AddSource: true}.NewSentryHandler())
	}

	var handler slog.Handler = NewMaskingHandler(newFanout(handlers...))

	return slog.New(handler).With(
		slog.String("app", "oasis-bot"),
		slog.String("env", cfg.AppEnv),
	)
}

// SetLevel changes the level of every logger created by New.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
