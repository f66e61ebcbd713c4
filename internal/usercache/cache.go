// Package usercache caches account links in Redis in front of PostgreSQL.
package usercache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Proton-105/oasis-bot/internal/domain"
	appredis "github.com/Proton-105/oasis-bot/pkg/redis"
)

// DefaultTTL bounds how stale a cached account may be.
const DefaultTTL = 10 * time.Minute

// Cache provides Redis-backed caching for account links.
type Cache struct {
	kv  appredis.KV
	ttl time.Duration
}

// NewCache constructs an account cache. ttl <= 0 uses DefaultTTL.
func NewCache(kv appredis.KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, ttl: ttl}
}

// Get fetches a cached account if it exists.
func (c *Cache) Get(ctx context.Context, telegramID int64) (*domain.Account, error) {
	if c == nil || c.kv == nil {
		return nil, nil
	}

	data, err := c.kv.Get(ctx, cacheKey(telegramID))
	if err != nil {
		if appredis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached account: %w", err)
	}

	var account domain.Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("decode cached account: %w", err)
	}

	return &account, nil
}

// Set stores the account.
func (c *Cache) Set(ctx context.Context, account *domain.Account) error {
	if c == nil || c.kv == nil || account == nil {
		return nil
	}

	payload, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode account for cache: %w", err)
	}

	if err := c.kv.Set(ctx, cacheKey(account.TelegramID), payload, c.ttl); err != nil {
		return fmt.Errorf("set cached account: %w", err)
	}

	return nil
}

// Invalidate removes the cached entry if it exists.
func (c *Cache) Invalidate(ctx context.Context, telegramID int64) error {
	if c == nil || c.kv == nil {
		return nil
	}

	if err := c.kv.Delete(ctx, cacheKey(telegramID)); err != nil {
		return fmt.Errorf("delete cached account: %w", err)
	}

	return nil
}

func cacheKey(telegramID int64) string {
	return fmt.Sprintf("account:%d", telegramID)
}
