package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "conversation_lock:%d"
	lockTTL            = 5 * time.Second
	lockWait           = 50 * time.Millisecond
	lockRetryDelay     = 10 * time.Millisecond
)

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	// ErrInvalidTransition indicates that a requested FSM transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStateNotFound indicates that a user state record does not exist.
	ErrStateNotFound = errors.New("user state not found")
	// ErrStateLocked indicates that a concurrent operation already holds the lock.
	ErrStateLocked = errors.New("state is locked, try again later")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe FSM transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// StateMachine describes the operations supported by the FSM controller.
type StateMachine interface {
	GetState(ctx context.Context, userID int64) (*UserState, error)
	// Current returns the stored state, or StateIdle for users without one.
	Current(ctx context.Context, userID int64) (*UserState, error)
	SetState(ctx context.Context, userID int64, state State, contextData map[string]string) error
	// TransitionTo validates and applies a transition, keeping the stored context.
	TransitionTo(ctx context.Context, userID int64, newState State) error
	ClearState(ctx context.Context, userID int64) error
	GetAllStates(ctx context.Context) ([]*UserState, error)
}

// machine is a concrete implementation of StateMachine backed by Storage and Redis locking.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
}

// NewStateMachine creates a FSM controller using the provided storage backend and redis client for locking.
func NewStateMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) StateMachine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
	}
}

// GetState proxies to the underlying storage implementation.
func (m *machine) GetState(ctx context.Context, userID int64) (*UserState, error) {
	return m.storage.GetState(ctx, userID)
}

// Current returns the user's state, substituting an idle state when none is stored.
func (m *machine) Current(ctx context.Context, userID int64) (*UserState, error) {
	stored, err := m.storage.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return &UserState{UserID: userID, CurrentState: StateIdle}, nil
		}
		return nil, err
	}
	if stored == nil {
		return &UserState{UserID: userID, CurrentState: StateIdle}, nil
	}

	return stored, nil
}

// GetAllStates returns every persisted user state.
func (m *machine) GetAllStates(ctx context.Context) ([]*UserState, error) {
	return m.storage.GetAllStates(ctx)
}

// SetState composes a UserState and persists it via storage under a distributed lock.
func (m *machine) SetState(ctx context.Context, userID int64, state State, contextData map[string]string) error {
	release, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if state == StateIdle && len(contextData) == 0 {
		return m.storage.ClearState(ctx, userID)
	}

	return m.saveState(ctx, userID, state, contextData)
}

// TransitionTo changes the state if the transition is allowed, guarded by a lock.
func (m *machine) TransitionTo(ctx context.Context, userID int64, newState State) error {
	release, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	current := StateIdle
	var contextData map[string]string

	storedState, getErr := m.storage.GetState(ctx, userID)
	if getErr != nil {
		if !errors.Is(getErr, ErrStateNotFound) {
			return getErr
		}
	} else if storedState != nil {
		current = storedState.CurrentState
		contextData = storedState.Context
	}

	if !IsTransitionAllowed(current, newState) {
		m.log.Warn("invalid state transition",
			slog.Int64("user_id", userID),
			slog.String("from", string(current)),
			slog.String("to", string(newState)),
		)
		return ErrInvalidTransition
	}

	transitionRecorder(string(current), string(newState))

	if newState == StateIdle {
		return m.storage.ClearState(ctx, userID)
	}

	return m.saveState(ctx, userID, newState, contextData)
}

// ClearState removes the stored state via the backing storage while holding the lock.
func (m *machine) ClearState(ctx context.Context, userID int64) error {
	release, err := m.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	return m.storage.ClearState(ctx, userID)
}

func (m *machine) saveState(ctx context.Context, userID int64, state State, contextData map[string]string) error {
	userState := &UserState{
		UserID:       userID,
		CurrentState: state,
		Context:      contextData,
	}

	return m.storage.SetState(ctx, userID, userState)
}

// lock takes the per-user conversation lock, waiting up to lockWait for a
// concurrent update of the same user to finish. The returned release func
// only deletes the key while it still holds our token.
func (m *machine) lock(ctx context.Context, userID int64) (func(), error) {
	if m.redisClient == nil {
		m.log.Debug("conversation lock skipped, redis not configured", slog.Int64("user_id", userID))
		return func() {}, nil
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	token := uuid.NewString()
	deadline := time.Now().Add(lockWait)

	for {
		acquired, err := m.redisClient.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			m.log.Error("failed to acquire conversation lock", slog.Int64("user_id", userID), slog.Any("error", err))
			return nil, err
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			m.log.Warn("conversation lock busy", slog.Int64("user_id", userID))
			return nil, ErrStateLocked
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return func() {
		if err := releaseLock.Run(context.WithoutCancel(ctx), m.redisClient, []string{key}, token).Err(); err != nil {
			m.log.Error("failed to release conversation lock", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}, nil
}
