package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/state"
)

// List scopes carried in pagination callbacks: "pg:<page>:<scope>".
const (
	ScopeHome      = "h"
	ScopePurchases = "p"
	ScopeManage    = "m"
	scopeSearch    = "s:"
	scopeTag       = "t:"
	scopeProfile   = "u:"
)

// maxQueryBytes keeps "pg:<page>:s:<query>" within the callback data limit.
const maxQueryBytes = 48

// Browse renders listing lists: the home feed, search, categories, seller
// profiles and the user's purchases.
type Browse struct {
	accounts Accounts
	catalog  Catalog
	fsm      state.StateMachine
	kb       *keyboard.Builder
	log      *slog.Logger
}

// NewBrowse wires the browsing handlers.
func NewBrowse(accounts Accounts, cat Catalog, fsm state.StateMachine, kb *keyboard.Builder, log *slog.Logger) *Browse {
	if log == nil {
		log = slog.Default()
	}
	return &Browse{accounts: accounts, catalog: cat, fsm: fsm, kb: kb, log: log}
}

// Home shows the themed feed.
func (h *Browse) Home(c telebot.Context) error {
	return h.home(c, 1)
}

func (h *Browse) home(c telebot.Context, page int) error {
	ctx, cancel := Context(c)
	defer cancel()

	cards, err := h.catalog.Home(ctx, optionalToken(ctx, h.accounts, c))
	if err != nil {
		return err
	}

	t := tr(c)
	if len(cards) == 0 {
		return c.Send(t.T("home.empty"))
	}
	return h.list(c, t.T("home.title"), cards, ScopeHome, page)
}

// Search runs "/search <query>", or asks for the query.
func (h *Browse) Search(c telebot.Context) error {
	if query := arg(c); query != "" {
		return h.search(c, query, 1)
	}

	ctx, cancel := Context(c)
	defer cancel()

	if err := h.fsm.SetState(ctx, c.Sender().ID, state.StateAwaitingSearch, nil); err != nil {
		return err
	}
	return c.Send(tr(c).T("search.prompt"))
}

// SearchInput receives the query in StateAwaitingSearch.
func (h *Browse) SearchInput(c telebot.Context) error {
	ctx, cancel := Context(c)
	defer cancel()

	if err := h.fsm.ClearState(ctx, c.Sender().ID); err != nil {
		h.log.Warn("failed to clear conversation", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	}
	return h.search(c, c.Text(), 1)
}

func (h *Browse) search(c telebot.Context, query string, page int) error {
	query = clipBytes(strings.TrimSpace(query), maxQueryBytes)

	ctx, cancel := Context(c)
	defer cancel()

	cards, err := h.catalog.Search(ctx, query, 0)
	if err != nil {
		return err
	}

	t := tr(c)
	if len(cards) == 0 {
		return c.Send(t.Tf("search.empty", escape(query)), telebot.ModeHTML)
	}
	return h.list(c, t.Tf("search.title", escape(query)), cards, scopeSearch+query, page)
}

// Showcase handles "/showcase [tag]". Without a tag it offers the categories.
func (h *Browse) Showcase(c telebot.Context) error {
	if raw := arg(c); raw != "" {
		return h.showcase(c, raw, 1)
	}
	return c.Send(tr(c).T("showcase.pick"), h.kb.TagMenu())
}

// Tag handles the "tag:<TAG>" callback.
func (h *Browse) Tag(c telebot.Context) error {
	if err := respond(c, "", false); err != nil {
		return err
	}
	return h.showcase(c, callbackData(c), 1)
}

func (h *Browse) showcase(c telebot.Context, raw string, page int) error {
	ctx, cancel := Context(c)
	defer cancel()

	tag, cards, err := h.catalog.Showcase(ctx, raw)
	if err != nil {
		return err
	}

	t := tr(c)
	if len(cards) == 0 {
		return c.Send(t.Tf("showcase.empty", tag.Label()))
	}
	return h.list(c, t.Tf("showcase.title", tag.Label()), cards, scopeTag+string(tag), page)
}

// Profile handles "/profile [user]". The user may be an identity id, a
// nickname, a username or an email address; without one the caller's own
// public profile is shown.
func (h *Browse) Profile(c telebot.Context) error {
	candidate := arg(c)
	if candidate == "" {
		account := AccountOf(c)
		if !account.LoggedIn() {
			return c.Send(tr(c).T("profile.usage"), telebot.ModeHTML)
		}
		candidate = account.ClerkUserID
	}
	return h.profile(c, candidate, 1)
}

func (h *Browse) profile(c telebot.Context, candidate string, page int) error {
	ctx, cancel := Context(c)
	defer cancel()

	profile, err := h.catalog.ResolveProfile(ctx, candidate)
	if err != nil {
		return err
	}

	t := tr(c)
	header := profileHeader(t, profile)
	if len(profile.Listings) == 0 {
		return c.Send(header+"\n\n"+t.T("profile.no_listings"), telebot.ModeHTML)
	}
	return h.list(c, header, profile.Listings, scopeProfile+profile.ClerkID, page)
}

func profileHeader(t i18n.Translator, p *catalog.Profile) string {
	title := t.Tf("profile.title", escape(p.Name))
	if p.MemberSince == "" {
		return title
	}
	return title + "\n" + t.Tf("profile.member_since", p.MemberSince)
}

// Purchases lists what the signed-in user has bought.
func (h *Browse) Purchases(c telebot.Context) error {
	return h.purchases(c, 1)
}

func (h *Browse) purchases(c telebot.Context, page int) error {
	ctx, cancel := Context(c)
	defer cancel()

	tok, err := token(ctx, h.accounts, c)
	if err != nil {
		return err
	}

	cards, err := h.catalog.Purchases(ctx, tok, AccountOf(c).ClerkUserID, 0)
	if err != nil {
		return err
	}

	t := tr(c)
	if len(cards) == 0 {
		return c.Send(t.T("purchases.empty"))
	}
	return h.list(c, t.T("purchases.title"), cards, ScopePurchases, page)
}

// list sends a card list, or redraws it in place when a page button was pressed.
func (h *Browse) list(c telebot.Context, header string, cards []catalog.Card, scope string, page int) error {
	markup := h.kb.CardList(tr(c), cards, scope, page)
	return sendOrEdit(c, header, markup)
}

func sendOrEdit(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	if cb := c.Callback(); cb != nil && cb.Message != nil && isPage(cb.Data) {
		err := c.Edit(text, markup, telebot.ModeHTML)
		if errors.Is(err, telebot.ErrSameMessageContent) {
			return nil
		}
		return err
	}
	return c.Send(text, markup, telebot.ModeHTML)
}

func isPage(data string) bool {
	return strings.HasPrefix(data, keyboard.CallbackPage+keyboard.CallbackDataSeparator)
}

// Pager routes "pg:<page>:<scope>" to the list it belongs to.
type Pager struct {
	browse *Browse
	sell   *Sell
}

// NewPager joins the list handlers that support paging.
func NewPager(browse *Browse, sell *Sell) *Pager {
	return &Pager{browse: browse, sell: sell}
}

// Page handles the pagination callback.
func (p *Pager) Page(c telebot.Context) error {
	page, scope, ok := keyboard.ParsePageData(callbackData(c))
	if !ok {
		return respond(c, "", false)
	}
	if err := respond(c, "", false); err != nil {
		return err
	}

	switch {
	case scope == ScopeHome:
		return p.browse.home(c, page)
	case scope == ScopePurchases:
		return p.browse.purchases(c, page)
	case scope == ScopeManage && p.sell != nil:
		return p.sell.manage(c, page)
	case strings.HasPrefix(scope, scopeSearch):
		return p.browse.search(c, strings.TrimPrefix(scope, scopeSearch), page)
	case strings.HasPrefix(scope, scopeTag):
		return p.browse.showcase(c, strings.TrimPrefix(scope, scopeTag), page)
	case strings.HasPrefix(scope, scopeProfile):
		return p.browse.profile(c, strings.TrimPrefix(scope, scopeProfile), page)
	default:
		return fmt.Errorf("unknown list scope %q", scope)
	}
}

// clipBytes cuts s to at most n bytes on a rune boundary.
func clipBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
