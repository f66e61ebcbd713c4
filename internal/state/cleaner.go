package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix      = "conversation:"
	stateScanBatchCount = 100
)

// ExpireFunc is called after a stale conversation has been cleared.
type ExpireFunc func(ctx context.Context, userID int64, last State)

// Cleaner drops conversations that have been idle longer than ttl. Upload
// wizards abandoned half way are the main source of these.
type Cleaner struct {
	redisClient *redis.Client
	storage     Storage
	log         *slog.Logger
	ttl         time.Duration
	interval    time.Duration
	onExpire    ExpireFunc
}

// NewCleaner constructs a Cleaner. onExpire may be nil.
func NewCleaner(redisClient *redis.Client, storage Storage, log *slog.Logger, ttl, interval time.Duration, onExpire ExpireFunc) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &Cleaner{
		redisClient: redisClient,
		storage:     storage,
		log:         log,
		ttl:         ttl,
		interval:    interval,
		onExpire:    onExpire,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.redisClient == nil || c.storage == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("conversation cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over all stored conversations and returns how many were cleared.
func (c *Cleaner) Sweep(ctx context.Context) int {
	cleared := 0
	var cursor uint64
	for {
		if ctx.Err() != nil {
			return cleared
		}

		keys, nextCursor, err := c.redisClient.Scan(ctx, cursor, stateKeyPrefix+"*", stateScanBatchCount).Result()
		if err != nil {
			c.log.Error("conversation cleaner scan failed", slog.Any("error", err))
			return cleared
		}

		for _, key := range keys {
			if c.sweepKey(ctx, key) {
				cleared++
			}
		}

		if nextCursor == 0 {
			return cleared
		}
		cursor = nextCursor
	}
}

func (c *Cleaner) sweepKey(ctx context.Context, key string) bool {
	userID, err := extractUserID(key)
	if err != nil {
		c.log.Warn("conversation cleaner unable to parse user id", slog.String("key", key), slog.Any("error", err))
		return false
	}

	st, err := c.storage.GetState(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			c.log.Error("conversation cleaner failed to load state", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return false
	}
	if st == nil || time.Since(st.UpdatedAt) <= c.ttl {
		return false
	}

	if err := c.storage.ClearState(ctx, userID); err != nil {
		c.log.Error("conversation cleaner failed to clear state", slog.Int64("user_id", userID), slog.Any("error", err))
		return false
	}

	c.log.Info("stale conversation cleared", slog.Int64("user_id", userID), slog.String("state", string(st.CurrentState)))
	if c.onExpire != nil {
		c.onExpire(ctx, userID, st.CurrentState)
	}
	return true
}

func extractUserID(key string) (int64, error) {
	raw, ok := strings.CutPrefix(key, stateKeyPrefix)
	if !ok || raw == "" {
		return 0, fmt.Errorf("invalid key format: %s", key)
	}

	return strconv.ParseInt(raw, 10, 64)
}
