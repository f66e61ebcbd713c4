package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/handlers"
	"github.com/Proton-105/oasis-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(CommandName(c), status, time.Since(start))

		return err
	}
}

// CommandName reduces an update to a low-cardinality label: the command
// word for "/search lamp", the callback prefix for "buy:42", "text" for
// free-form input and "file" for uploads.
func CommandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		prefix, _, _ := strings.Cut(strings.TrimSpace(cb.Data), ":")
		if prefix == "" {
			return "unknown"
		}
		return "cb:" + prefix
	}

	msg := c.Message()
	if msg != nil && (msg.Document != nil || msg.Photo != nil) {
		return "file"
	}

	text := strings.TrimSpace(c.Text())
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		cmd, _, _ = strings.Cut(cmd, "@")
		return cmd
	}
	if text != "" {
		return "text"
	}

	return "unknown"
}
