package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/Proton-105/oasis-bot/pkg/config"
)

// Rule names understood by Rules.Command.
const (
	RuleBuy    = "buy"
	RuleSearch = "search"
	RuleUpload = "upload"
)

// ErrNoRule is returned for a command without a dedicated limit.
var ErrNoRule = errors.New("no rate limit rule for command")

// Rule is a parsed limit per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Rules holds the parsed rate limit configuration.
type Rules struct {
	perUser   Rule
	commands  map[string]Rule
	whitelist map[int64]struct{}
}

// NewRules parses cfg. Command rules with an empty window are skipped.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	perUser, err := parseRule(cfg.PerUser)
	if err != nil {
		return nil, fmt.Errorf("per_user rule: %w", err)
	}

	r := &Rules{
		perUser:   perUser,
		commands:  make(map[string]Rule, 3),
		whitelist: make(map[int64]struct{}, len(cfg.Whitelist)),
	}

	for name, raw := range map[string]config.RateLimitRule{
		RuleBuy:    cfg.Commands.Buy,
		RuleSearch: cfg.Commands.Search,
		RuleUpload: cfg.Commands.Upload,
	} {
		if raw.Window == "" {
			continue
		}
		rule, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("%s rule: %w", name, err)
		}
		r.commands[name] = rule
	}

	for _, id := range cfg.Whitelist {
		r.whitelist[id] = struct{}{}
	}

	return r, nil
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// PerUser returns the limit applied to every update of a user.
func (r *Rules) PerUser() Rule {
	return r.perUser
}

// Command returns the rule for a named command.
func (r *Rules) Command(name string) (Rule, error) {
	rule, ok := r.commands[name]
	if !ok {
		return Rule{}, ErrNoRule
	}
	return rule, nil
}

func parseRule(rule config.RateLimitRule) (Rule, error) {
	if rule.Window == "" {
		return Rule{}, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return Rule{}, err
	}
	if rule.Limit <= 0 {
		return Rule{}, fmt.Errorf("limit must be positive, got %d", rule.Limit)
	}
	return Rule{Limit: rule.Limit, Window: window}, nil
}
