package handlers

import (
	"context"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/pkg/logger"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Keys of values the middleware chain stores on the telebot context.
const (
	accountKey       = "account"
	translatorKey    = "translator"
	correlationIDKey = "correlation_id"
)

// requestTimeout bounds the upstream calls of one ordinary update.
const requestTimeout = 30 * time.Second

// SetAccount stores the sender's account for downstream handlers.
func SetAccount(c telebot.Context, a *domain.Account) { c.Set(accountKey, a) }

// AccountOf returns the account stored by SetAccount, or nil.
func AccountOf(c telebot.Context) *domain.Account {
	a, _ := c.Get(accountKey).(*domain.Account)
	return a
}

// SetTranslator stores the sender's translator.
func SetTranslator(c telebot.Context, t i18n.Translator) { c.Set(translatorKey, t) }

// SetCorrelationID stores the id that ties log lines of one update together.
func SetCorrelationID(c telebot.Context, id string) { c.Set(correlationIDKey, id) }

// Context derives a request context for c carrying its correlation id.
func Context(c telebot.Context) (context.Context, context.CancelFunc) {
	id, _ := c.Get(correlationIDKey).(string)
	return context.WithTimeout(logger.WithCorrelationID(context.Background(), id), requestTimeout)
}

// detached is Context for work that outlives the update, such as a purchase.
func detached(c telebot.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	id, _ := c.Get(correlationIDKey).(string)
	return context.WithTimeout(logger.WithCorrelationID(context.Background(), id), timeout)
}
