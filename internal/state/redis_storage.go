package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userStateKeyPattern  = "conversation:%d"
	userStateScanPattern = "conversation:*"

	// DefaultTTL bounds how long an abandoned conversation survives.
	DefaultTTL = time.Hour
)

// RedisStorage persists conversation states in Redis.
type RedisStorage struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

// NewRedisStorage initializes a Redis-backed Storage implementation.
func NewRedisStorage(client *redis.Client, log *slog.Logger, ttl time.Duration) Storage {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStorage{
		client: client,
		log:    log,
		ttl:    ttl,
	}
}

// GetState returns the stored user state or ErrStateNotFound when absent.
func (s *RedisStorage) GetState(ctx context.Context, userID int64) (*UserState, error) {
	data, err := s.client.Get(ctx, redisUserStateKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}

		s.log.Error("failed to get state from redis", "user_id", userID, "error", err)
		return nil, err
	}

	var state UserState
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Error("failed to decode user state", "user_id", userID, "error", err)
		return nil, err
	}

	return &state, nil
}

// SetState saves the provided user state, refreshing its TTL.
func (s *RedisStorage) SetState(ctx context.Context, userID int64, state *UserState) error {
	state.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(state)
	if err != nil {
		s.log.Error("failed to encode user state", "user_id", userID, "error", err)
		return err
	}

	if err := s.client.Set(ctx, redisUserStateKey(userID), data, s.ttl).Err(); err != nil {
		s.log.Error("failed to save state in redis", "user_id", userID, "error", err)
		return err
	}

	return nil
}

// ClearState removes the stored state for the given user.
func (s *RedisStorage) ClearState(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, redisUserStateKey(userID)).Err(); err != nil {
		s.log.Error("failed to clear user state", "user_id", userID, "error", err)
		return err
	}

	return nil
}

// GetAllStates retrieves every stored state by scanning keys and fetching them in batches.
func (s *RedisStorage) GetAllStates(ctx context.Context) ([]*UserState, error) {
	var (
		cursor uint64
		result []*UserState
	)

	for {
		keys, nextCursor, err := s.client.Scan(ctx, cursor, userStateScanPattern, 100).Result()
		if err != nil {
			s.log.Error("failed to scan user states", "error", err)
			return nil, err
		}

		if len(keys) > 0 {
			values, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				s.log.Error("failed to fetch user states", "error", err)
				return nil, err
			}

			for i, value := range values {
				raw, ok := value.(string)
				if !ok {
					continue
				}

				var userState UserState
				if err := json.Unmarshal([]byte(raw), &userState); err != nil {
					s.log.Warn("skipping undecodable user state", "key", keys[i], "error", err)
					continue
				}
				result = append(result, &userState)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return result, nil
}

func redisUserStateKey(userID int64) string {
	return fmt.Sprintf(userStateKeyPattern, userID)
}
