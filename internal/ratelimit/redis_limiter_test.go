package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestRedisLimiter_AllowsWithinLimit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "test:allows", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}

func TestRedisLimiter_BlocksWhenExceeded(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, "test:blocks", 2, time.Minute)
		assert.NoError(t, err)
		if i < 2 {
			assert.True(t, result.Allowed)
		} else {
			assert.False(t, result.Allowed)
		}
	}
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.Check(ctx, "test:window", 2, time.Second)
		assert.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	time.Sleep(1100 * time.Millisecond)

	result, err := limiter.Check(ctx, "test:window", 2, time.Second)
	assert.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_RejectedRequestsAreNotCounted(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := limiter.Check(ctx, "test:rejected", 1, time.Minute)
		assert.NoError(t, err)
	}

	n, err := client.ZCard(ctx, "ratelimit:test:rejected").Result()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisLimiter_RemainingAndReset(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	limiter := NewRedisLimiter(client, testLogger())
	ctx := context.Background()
	start := time.Now()

	first, err := limiter.Check(ctx, "test:reset", 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Remaining)

	second, err := limiter.Check(ctx, "test:reset", 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Remaining)

	rejected, err := limiter.Check(ctx, "test:reset", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, rejected.Allowed)
	assert.Equal(t, 0, rejected.Remaining)
	// The window frees up when the first request ages out, not a minute after the rejection.
	assert.WithinDuration(t, first.ResetAt, rejected.ResetAt, 50*time.Millisecond)
	assert.WithinDuration(t, start.Add(time.Minute), rejected.ResetAt, time.Second)
}

func TestRedisLimiter_ZeroLimit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	result, err := NewRedisLimiter(client, testLogger()).Check(context.Background(), "test:zero", 0, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
