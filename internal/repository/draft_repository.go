package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Proton-105/oasis-bot/internal/domain"
	appredis "github.com/Proton-105/oasis-bot/pkg/redis"
)

const (
	draftKeyPattern = "draft:%d"
	// DraftTTL matches the conversation state lifetime.
	DraftTTL = time.Hour
)

// DraftRepository keeps listing drafts in Redis.
type DraftRepository struct {
	kv  appredis.KV
	ttl time.Duration
}

// NewDraftRepository creates a draft store. ttl <= 0 uses DraftTTL.
func NewDraftRepository(kv appredis.KV, ttl time.Duration) *DraftRepository {
	if ttl <= 0 {
		ttl = DraftTTL
	}
	return &DraftRepository{kv: kv, ttl: ttl}
}

// Get returns the user's draft, or nil when there is none.
func (r *DraftRepository) Get(ctx context.Context, telegramID int64) (*domain.Draft, error) {
	value, err := r.kv.Get(ctx, draftKey(telegramID))
	if err != nil {
		if appredis.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get draft from redis: %w", err)
	}

	var draft domain.Draft
	if err := json.Unmarshal([]byte(value), &draft); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	return &draft, nil
}

// Save stores the draft and restarts its TTL.
func (r *DraftRepository) Save(ctx context.Context, telegramID int64, draft *domain.Draft) error {
	if draft == nil {
		return r.Delete(ctx, telegramID)
	}
	draft.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := r.kv.Set(ctx, draftKey(telegramID), payload, r.ttl); err != nil {
		return fmt.Errorf("set draft in redis: %w", err)
	}
	return nil
}

// Update loads the draft (or starts an empty one), applies fn and saves it.
func (r *DraftRepository) Update(ctx context.Context, telegramID int64, fn func(d *domain.Draft) error) (*domain.Draft, error) {
	draft, err := r.Get(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		draft = &domain.Draft{Mode: domain.DraftCreate}
	}
	if err := fn(draft); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, telegramID, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// Delete drops the draft.
func (r *DraftRepository) Delete(ctx context.Context, telegramID int64) error {
	if err := r.kv.Delete(ctx, draftKey(telegramID)); err != nil {
		return fmt.Errorf("delete draft from redis: %w", err)
	}
	return nil
}

func draftKey(telegramID int64) string {
	return fmt.Sprintf(draftKeyPattern, telegramID)
}
