package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStorage_SetAndGet(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger(), time.Minute)

	ctx := context.Background()
	userState := &UserState{
		UserID:       123,
		CurrentState: StateEditField,
		Context: map[string]string{
			ContextListingID: "post-1",
			ContextField:     "price",
		},
	}

	require.NoError(t, storage.SetState(ctx, userState.UserID, userState))

	result, err := storage.GetState(ctx, userState.UserID)
	require.NoError(t, err)
	assert.Equal(t, userState.UserID, result.UserID)
	assert.Equal(t, userState.CurrentState, result.CurrentState)
	assert.Equal(t, userState.Context, result.Context)
	assert.False(t, result.UpdatedAt.IsZero())

	ttl, err := client.TTL(ctx, redisUserStateKey(123)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRedisStorage_GetNotFound(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger(), 0)

	state, err := storage.GetState(context.Background(), 999)
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_ClearState(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger(), time.Minute)
	ctx := context.Background()

	require.NoError(t, storage.SetState(ctx, 456, &UserState{UserID: 456, CurrentState: StateUploadPrice}))
	require.NoError(t, storage.ClearState(ctx, 456))

	state, err := storage.GetState(ctx, 456)
	assert.Nil(t, state)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStorage_GetAllStates(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	t.Cleanup(cleanup)

	storage := NewRedisStorage(client, testLogger(), time.Minute)
	ctx := context.Background()

	require.NoError(t, storage.SetState(ctx, 1, &UserState{UserID: 1, CurrentState: StateAwaitingSearch}))
	require.NoError(t, storage.SetState(ctx, 2, &UserState{UserID: 2, CurrentState: StateUploadTags}))
	require.NoError(t, client.Set(ctx, "conversation:broken", "not-json", 0).Err())
	require.NoError(t, client.Set(ctx, "conversation_lock:1", 1, 0).Err())

	states, err := storage.GetAllStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}
