package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"

	keyPrefix = "update:"
)

// Store persists per-key progress.
type Store interface {
	// Status returns StatusProcessing, StatusCompleted or "" for an unseen key.
	Status(ctx context.Context, key string) (string, error)
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Complete(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisStore keeps one string per key: "processing" while locked, "completed" afterwards.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Status(ctx context.Context, key string) (string, error) {
	status, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		s.log.Error("failed to read idempotency status", slog.String("key", key), slog.Any("error", err))
		return "", err
	}

	return status, nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, keyPrefix+key, StatusProcessing, lockTTL).Result()
	if err != nil {
		s.log.Error("failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+key, StatusCompleted, ttl).Err(); err != nil {
		s.log.Error("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
