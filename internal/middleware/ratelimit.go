package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-user and per-command limits on incoming updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
	}
}

// Handle returns a telebot middleware. Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		ctx := context.Background()
		if !m.allow(ctx, fmt.Sprintf("user:%d", sender.ID), m.rules.PerUser()) {
			return m.reject(c, sender.ID, "per_user")
		}

		name := ruleFor(CommandName(c))
		if name == "" {
			return next(c)
		}

		rule, err := m.rules.Command(name)
		if errors.Is(err, ratelimit.ErrNoRule) {
			return next(c)
		}
		if !m.allow(ctx, fmt.Sprintf("user:%d:%s", sender.ID, name), rule) {
			return m.reject(c, sender.ID, name)
		}

		return next(c)
	}
}

func (m *RateLimitMiddleware) allow(ctx context.Context, key string, rule ratelimit.Rule) bool {
	result, err := m.limiter.Check(ctx, key, rule.Limit, rule.Window)
	if err != nil {
		m.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return true
	}
	return result.Allowed
}

func (m *RateLimitMiddleware) reject(c telebot.Context, userID int64, rule string) error {
	m.log.Warn("rate limit exceeded", slog.Int64("user_id", userID), slog.String("rule", rule))

	const text = "Too many requests. Try again in a minute."
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}

func ruleFor(command string) string {
	switch command {
	case "cb:buy":
		return ratelimit.RuleBuy
	case "/search":
		return ratelimit.RuleSearch
	case "/upload":
		return ratelimit.RuleUpload
	}
	return ""
}
