// Package health aggregates dependency checks and serves them over HTTP.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"
)

const statusOK = "OK"

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Checker aggregates health checks for multiple components.
type Checker struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Checkable
	// optional checks are reported but never fail readiness.
	optional map[string]bool
}

// NewChecker instantiates a Checker. Every check gets at most timeout.
func NewChecker(log *slog.Logger, timeout time.Duration) *Checker {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Checker{
		log:      log,
		timeout:  timeout,
		checks:   make(map[string]Checkable),
		optional: make(map[string]bool),
	}
}

// AddCheck registers a component whose failure makes the bot not ready.
func (c *Checker) AddCheck(name string, check Checkable) {
	c.add(name, check, false)
}

// AddOptionalCheck registers a component that is reported but does not gate readiness.
func (c *Checker) AddOptionalCheck(name string, check Checkable) {
	c.add(name, check, true)
}

func (c *Checker) add(name string, check Checkable, optional bool) {
	if name == "" || check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
	c.optional[name] = optional
}

// Report is the outcome of one Check run.
type Report struct {
	Healthy    bool              `json:"healthy"`
	Components map[string]string `json:"components"`
}

// Check runs all registered health checks concurrently.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	c.mu.RUnlock()

	var (
		mu     sync.Mutex
		report = Report{Healthy: true, Components: make(map[string]string, len(names))}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		c.mu.RLock()
		check, optional := c.checks[name], c.optional[name]
		c.mu.RUnlock()

		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gctx, c.timeout)
			defer cancel()

			status := statusOK
			if err := check.HealthCheck(checkCtx); err != nil {
				status = err.Error()
				c.log.Warn("health check failed", slog.String("component", name), slog.Bool("optional", optional), slog.Any("error", err))
			}

			mu.Lock()
			report.Components[name] = status
			if status != statusOK && !optional {
				report.Healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report
}

// DBChecker verifies connectivity to a PostgreSQL database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker constructs a DBChecker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database to ensure it is reachable.
func (c *DBChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.db == nil {
		return sql.ErrConnDone
	}
	return c.db.PingContext(ctx)
}

// Pinger is satisfied by the Redis client wrappers and the marketplace clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingChecker turns any Pinger into a Checkable.
func NewPingChecker(p Pinger) Checkable {
	return CheckFunc(func(ctx context.Context) error {
		if p == nil {
			return errors.New("not configured")
		}
		return p.Ping(ctx)
	})
}

// TelegramChecker verifies that the bot has authenticated against the Bot API.
type TelegramChecker struct {
	bot *telebot.Bot
}

// NewTelegramChecker constructs a TelegramChecker.
func NewTelegramChecker(bot *telebot.Bot) *TelegramChecker {
	return &TelegramChecker{bot: bot}
}

// HealthCheck ensures the underlying bot is initialized.
func (c *TelegramChecker) HealthCheck(context.Context) error {
	if c == nil || c.bot == nil || c.bot.Me == nil {
		return errors.New("telegram bot is not initialized or disconnected")
	}
	return nil
}
