package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/state"
)

// Drafts stores the listing a user is uploading or editing.
type Drafts interface {
	Get(ctx context.Context, telegramID int64) (*domain.Draft, error)
	Save(ctx context.Context, telegramID int64, draft *domain.Draft) error
	Update(ctx context.Context, telegramID int64, fn func(d *domain.Draft) error) (*domain.Draft, error)
	Delete(ctx context.Context, telegramID int64) error
}

// NewCancelHandler drops the conversation and any draft, then shows the main menu.
func NewCancelHandler(fsm state.StateMachine, drafts Drafts, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		if c.Sender() == nil {
			log.Warn("cancel handler invoked without sender context")
			return nil
		}

		ctx, cancel := Context(c)
		defer cancel()
		userID := c.Sender().ID

		if err := fsm.ClearState(ctx, userID); err != nil {
			log.Error("failed to clear user state", slog.Int64("user_id", userID), slog.Any("error", err))
			return err
		}
		if drafts != nil {
			if err := drafts.Delete(ctx, userID); err != nil {
				log.Warn("failed to drop draft", slog.Int64("user_id", userID), slog.Any("error", err))
			}
		}

		t := tr(c)
		if c.Callback() != nil {
			if err := respond(c, "", false); err != nil {
				return err
			}
		}
		return c.Send(t.T("cancel.done"), keyboard.MainMenu(t))
	}
}
