package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/purchase"
)

// DefaultViewCapacity bounds the number of live product cards.
const DefaultViewCapacity = 4096

// Messenger is the part of the Telegram API used outside an update.
type Messenger interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	EditReplyMarkup(msg telebot.Editable, markup *telebot.ReplyMarkup) (*telebot.Message, error)
}

type viewKey struct {
	chatID    int64
	messageID int
}

func keyOf(msg *telebot.Message) (viewKey, bool) {
	if msg == nil || msg.Chat == nil {
		return viewKey{}, false
	}
	return viewKey{chatID: msg.Chat.ID, messageID: msg.ID}, true
}

// cardView is a product card on screen together with its purchase attempt.
// The attempt observer redraws the card's keyboard on every state change.
type cardView struct {
	attempt *purchase.Attempt
	product *catalog.Product
	t       i18n.Translator

	mu  sync.Mutex
	msg *telebot.Message
}

func (v *cardView) message() *telebot.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.msg
}

// Views keeps the most recent product cards. An evicted card still shows its
// buttons, but presses answer with an "open it again" alert.
type Views struct {
	cards     *lru.Cache[viewKey, *cardView]
	messenger Messenger
	kb        *keyboard.Builder
	log       *slog.Logger
}

// NewViews creates a registry holding up to capacity cards.
func NewViews(capacity int, messenger Messenger, kb *keyboard.Builder, log *slog.Logger) (*Views, error) {
	if capacity <= 0 {
		capacity = DefaultViewCapacity
	}
	if log == nil {
		log = slog.Default()
	}

	cards, err := lru.New[viewKey, *cardView](capacity)
	if err != nil {
		return nil, fmt.Errorf("create view cache: %w", err)
	}
	return &Views{cards: cards, messenger: messenger, kb: kb, log: log}, nil
}

// open prepares a card for product. The card is only redrawn once attach
// tells it which message it lives in.
func (v *Views) open(t i18n.Translator, product *catalog.Product) *cardView {
	view := &cardView{product: product, t: t}
	view.attempt = purchase.NewAttempt(product.ID, purchase.ObserverFunc(func(_ *purchase.Attempt, _, to purchase.State) {
		v.redraw(view, to)
	}))
	return view
}

// attach registers view under the message that shows it.
func (v *Views) attach(view *cardView, msg *telebot.Message) {
	key, ok := keyOf(msg)
	if !ok {
		return
	}
	view.mu.Lock()
	view.msg = msg
	view.mu.Unlock()
	v.cards.Add(key, view)
}

// lookup returns the card behind a callback's message.
func (v *Views) lookup(msg *telebot.Message) (*cardView, bool) {
	key, ok := keyOf(msg)
	if !ok {
		return nil, false
	}
	return v.cards.Get(key)
}

// Len is the number of live cards.
func (v *Views) Len() int { return v.cards.Len() }

func (v *Views) markup(view *cardView, st purchase.State) *telebot.ReplyMarkup {
	return v.kb.ProductCard(view.t, view.product.ID, st, view.product.Tags)
}

func (v *Views) redraw(view *cardView, st purchase.State) {
	msg := view.message()
	if msg == nil || v.messenger == nil {
		return
	}

	if _, err := v.messenger.EditReplyMarkup(msg, v.markup(view, st)); err != nil &&
		!errors.Is(err, telebot.ErrSameMessageContent) {
		v.log.Warn("failed to redraw product card",
			slog.String("post_id", view.product.ID.String()),
			slog.String("state", string(st)),
			slog.Any("error", err),
		)
	}
}
