package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/domain"
	apperrors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/purchase"
	"github.com/Proton-105/oasis-bot/internal/wallet"
)

const (
	// DefaultBuyTimeout bounds one buy sequence, wallet prompts included.
	DefaultBuyTimeout = 10 * time.Minute

	// Keeps the caption under Telegram's 1024 character limit.
	titleLimit       = 120
	descriptionLimit = 600
)

// Purchases drives purchase attempts.
type Purchases interface {
	CheckOwnership(ctx context.Context, a *purchase.Attempt, s purchase.Session)
	Buy(ctx context.Context, a *purchase.Attempt, s purchase.Session, w wallet.Provider) error
	Download(ctx context.Context, a *purchase.Attempt, s purchase.Session) (string, error)
}

// Shop renders product cards and runs the buy and download buttons.
type Shop struct {
	accounts   Accounts
	catalog    Catalog
	flow       Purchases
	wallets    Wallets
	views      *Views
	messenger  Messenger
	log        *slog.Logger
	buyTimeout time.Duration
}

// NewShop wires the product card handlers.
func NewShop(accounts Accounts, cat Catalog, flow Purchases, wallets Wallets, views *Views, messenger Messenger, buyTimeout time.Duration, log *slog.Logger) *Shop {
	if log == nil {
		log = slog.Default()
	}
	if buyTimeout <= 0 {
		buyTimeout = DefaultBuyTimeout
	}
	return &Shop{
		accounts:   accounts,
		catalog:    cat,
		flow:       flow,
		wallets:    wallets,
		views:      views,
		messenger:  messenger,
		log:        log,
		buyTimeout: buyTimeout,
	}
}

// Product handles "/product <id>" and the "prod:<id>" callback.
func (h *Shop) Product(c telebot.Context) error {
	raw := arg(c)
	if c.Callback() != nil {
		raw = callbackData(c)
		if err := respond(c, "", false); err != nil {
			return err
		}
	}
	if raw == "" {
		return c.Send(tr(c).T("product.usage"), telebot.ModeHTML)
	}
	return h.showProduct(c, listings.ID(raw))
}

func (h *Shop) showProduct(c telebot.Context, id listings.ID) error {
	ctx, cancel := Context(c)
	defer cancel()

	tok := optionalToken(ctx, h.accounts, c)
	product, err := h.catalog.Product(ctx, tok, id)
	if err != nil {
		return err
	}

	t := tr(c)
	view := h.views.open(t, product)
	h.flow.CheckOwnership(ctx, view.attempt, h.accounts.Session(AccountOf(c)))

	markup := h.views.markup(view, view.attempt.State())
	caption := productCaption(t, product)

	msg, err := h.messenger.Send(c.Recipient(), &telebot.Photo{File: telebot.FromURL(product.Image), Caption: caption}, markup, telebot.ModeHTML)
	if err != nil {
		h.log.DebugContext(ctx, "photo card failed, sending text",
			slog.String("post_id", id.String()),
			slog.Any("error", err),
		)
		msg, err = h.messenger.Send(c.Recipient(), caption, markup, telebot.ModeHTML)
		if err != nil {
			return err
		}
	}

	h.views.attach(view, msg)
	return nil
}

// Buy handles "buy:<id>". The callback is answered right away and the
// sequence runs in the background; the card redraws itself as the attempt
// moves and the user gets one message about the outcome.
func (h *Shop) Buy(c telebot.Context) error {
	t := tr(c)
	view, ok := h.views.lookup(c.Callback().Message)
	if !ok {
		return respond(c, t.T("purchase.expired"), true)
	}

	st := view.attempt.State()
	switch {
	case st.Disabled():
		return respond(c, t.T("purchase.in_progress"), false)
	case st == purchase.Bought:
		return h.download(c, view)
	}

	if err := respond(c, t.T("purchase.started"), false); err != nil {
		return err
	}

	account := AccountOf(c)
	session := h.accounts.Session(account)
	var provider wallet.Provider
	if account.HasWallet() {
		provider = h.wallets.For(account.WalletRPCURL)
	}

	chat := c.Chat()
	ctx, cancel := detached(c, h.buyTimeout)
	go func() {
		defer cancel()
		err := h.flow.Buy(ctx, view.attempt, session, provider)
		h.notifyOutcome(ctx, chat, t, view, err)
	}()
	return nil
}

func (h *Shop) notifyOutcome(ctx context.Context, chat *telebot.Chat, t i18n.Translator, view *cardView, err error) {
	var key string
	switch st := view.attempt.State(); {
	case errors.Is(err, purchase.ErrNoWalletProvider):
		key = "purchase.no_wallet"
	case st == purchase.NotLoggedIn:
		key = "purchase.login"
	case st == purchase.WalletNotConnected:
		key = "purchase.connect_wallet"
	case st == purchase.Bought:
		key = "purchase.done"
	case st == purchase.Error:
		key = "purchase.failed"
	default:
		return
	}

	if err != nil && !errors.Is(err, purchase.ErrNoWalletProvider) {
		h.log.WarnContext(ctx, "purchase ended with error",
			slog.String("post_id", view.product.ID.String()),
			slog.Any("error", err),
		)
	}

	if chat == nil || h.messenger == nil {
		return
	}
	if _, err := h.messenger.Send(chat, t.Tf(key, escape(view.product.Title)), telebot.ModeHTML); err != nil {
		h.log.WarnContext(ctx, "failed to send purchase outcome", slog.Any("error", err))
	}
}

// Download handles "dl:<id>".
func (h *Shop) Download(c telebot.Context) error {
	view, ok := h.views.lookup(c.Callback().Message)
	if !ok {
		return respond(c, tr(c).T("purchase.expired"), true)
	}
	return h.download(c, view)
}

func (h *Shop) download(c telebot.Context, view *cardView) error {
	ctx, cancel := Context(c)
	defer cancel()

	t := tr(c)
	url, err := h.flow.Download(ctx, view.attempt, h.accounts.Session(AccountOf(c)))
	switch {
	case errors.Is(err, purchase.ErrNotLoggedIn):
		return respond(c, t.T("purchase.login_alert"), true)
	case err != nil:
		return apperrors.NewUpstreamError("listing", err)
	}

	if err := respond(c, "", false); err != nil {
		return err
	}
	return c.Send(t.Tf("purchase.download", escape(view.product.Title)), h.views.kb.Link(t.T("purchase.download_button"), url), telebot.ModeHTML)
}

// Noop answers buttons that do nothing, such as a disabled purchase button or
// the page counter.
func (h *Shop) Noop(c telebot.Context) error {
	return respond(c, "", false)
}

func productCaption(t i18n.Translator, p *catalog.Product) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n", escape(truncate(p.Title, titleLimit)))
	b.WriteString(t.Tf("product.price", p.PriceLabel()))
	b.WriteByte('\n')
	if p.Seller != "" {
		b.WriteString(t.Tf("product.seller", escape(p.Seller)))
		b.WriteByte('\n')
	}

	if p.Copies == domain.UnlimitedCopies {
		b.WriteString(t.T("product.copies_unlimited"))
	} else {
		b.WriteString(t.Tf("product.copies", p.Copies))
	}
	b.WriteByte('\n')

	if p.RatingCount > 0 {
		b.WriteString(t.Tf("product.rating", p.Rating, p.RatingCount))
	} else {
		b.WriteString(t.T("product.no_rating"))
	}
	b.WriteByte('\n')

	if p.File != nil {
		b.WriteString(t.Tf("product.file", escape(p.File.Name), p.File.Size()))
		b.WriteByte('\n')
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		b.WriteByte('\n')
		b.WriteString(escape(truncate(desc, descriptionLimit)))
	}

	return b.String()
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
