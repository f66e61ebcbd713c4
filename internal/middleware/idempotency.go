package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/handlers"
	"github.com/Proton-105/oasis-bot/internal/idempotency"
)

// Idempotency drops Telegram updates that were already handled, which
// happens when a webhook delivery is retried. Two taps on the same button are
// two callbacks with different ids and both pass.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			result, err := manager.Execute(context.Background(), key, ttl, func(context.Context) error {
				return next(c)
			})
			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				log.Debug("update already in progress", slog.String("key", key))
				return nil
			case err != nil:
				return err
			case result.Duplicate:
				log.Info("duplicate update skipped", slog.String("key", key))
			}

			return nil
		}
	}
}

func updateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return "cb:" + idempotency.GenerateKey(cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 {
		chatID := int64(0)
		if msg.Chat != nil {
			chatID = msg.Chat.ID
		}
		return fmt.Sprintf("msg:%d:%d", chatID, msg.ID)
	}

	return ""
}
