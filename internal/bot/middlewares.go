package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/handlers"
	"github.com/Proton-105/oasis-bot/internal/domain"
	errors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/pkg/logger"
)

const accountLookupTimeout = 5 * time.Second

// AccountResolver loads or creates the account behind a Telegram user.
type AccountResolver interface {
	GetOrCreate(ctx context.Context, telegramUser *telebot.User) (*domain.Account, error)
}

// ActivityTracker records when a user was last seen.
type ActivityTracker interface {
	UpdateLastActive(ctx context.Context, telegramID int64) error
}

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := "⚠️ Something went wrong. Please try again later."
					if errHandler != nil {
						appErr := errors.NewStateError(fmt.Sprintf("panic recovered: %v", r))
						appErr.Severity = errors.SeverityCritical
						if msg, _ := errHandler.Handle(requestContext(c), appErr); msg != "" {
							userMsg = msg
						}
					}

					if sendErr := notify(c, userMsg); sendErr != nil {
						log.Error("failed to notify user about panic", slog.Any("error", sendErr))
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "Something went wrong. Please try again later."
			if errHandler != nil {
				if msg, _ := errHandler.Handle(requestContext(c), err); msg != "" {
					userMsg = msg
				}
			}

			_ = notify(c, userMsg)
			return nil
		}
	}
}

// notify shows msg as an alert for button presses and as a message otherwise.
func notify(c telebot.Context, msg string) error {
	if c == nil {
		return nil
	}
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: msg, ShowAlert: true})
	}
	return c.Send(msg)
}

func requestContext(c telebot.Context) context.Context {
	ctx := context.Background()
	if c == nil {
		return ctx
	}
	if id, ok := c.Get("correlation_id").(string); ok {
		ctx = logger.WithCorrelationID(ctx, id)
	}
	return ctx
}

// LoggingMiddleware tags the update with a correlation id and logs its outcome.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			correlationID := uuid.NewString()
			handlers.SetCorrelationID(c, correlationID)

			userID := int64(0)
			if c.Sender() != nil {
				userID = c.Sender().ID
			}
			action := middlewareAction(c)

			log.Debug("handling update",
				slog.String("correlation_id", correlationID),
				slog.Int64("user_id", userID),
				slog.String("action", action),
			)
			err := next(c)

			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
			}
			log.Log(context.Background(), level, "handled update",
				slog.String("correlation_id", correlationID),
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// middlewareAction names the update without logging free text, which may
// contain session ids or wallet URLs.
func middlewareAction(c telebot.Context) string {
	if cb := c.Callback(); cb != nil {
		return cb.Data
	}
	if name, ok := CommandOf(c.Text()); ok {
		return name
	}
	if msg := c.Message(); msg != nil {
		switch {
		case msg.Document != nil:
			return "document"
		case msg.Photo != nil:
			return "photo"
		}
	}
	return "text"
}

// AccountMiddleware loads the sender's account and picks their language.
func AccountMiddleware(accounts AccountResolver, translations *i18n.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			sender := c.Sender()
			if sender == nil {
				return next(c)
			}

			lang := sender.LanguageCode
			if accounts != nil {
				ctx, cancel := context.WithTimeout(requestContext(c), accountLookupTimeout)
				account, err := accounts.GetOrCreate(ctx, sender)
				cancel()
				if err != nil {
					log.Error("failed to load account", slog.Int64("user_id", sender.ID), slog.Any("error", err))
					return err
				}
				handlers.SetAccount(c, account)
				if account.Language != "" {
					lang = account.Language
				}
			}

			if translations != nil {
				handlers.SetTranslator(c, translations.Translator(lang))
			}

			return next(c)
		}
	}
}

// LastActiveMiddleware records user activity timestamps without blocking request flow.
func LastActiveMiddleware(tracker ActivityTracker, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if tracker != nil && c.Sender() != nil {
				userID := c.Sender().ID
				ctx := requestContext(c)

				go func(id int64) {
					ctx, cancel := context.WithTimeout(ctx, accountLookupTimeout)
					defer cancel()
					if err := tracker.UpdateLastActive(ctx, id); err != nil {
						log.Debug("failed to update last active", slog.Int64("user_id", id), slog.Any("error", err))
					}
				}(userID)
			}

			return next(c)
		}
	}
}
