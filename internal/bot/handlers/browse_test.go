package handlers

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/state"
)

func cards(n int) []catalog.Card {
	out := make([]catalog.Card, n)
	for i := range out {
		out[i] = catalog.Card{
			ID:    listings.ID(fmt.Sprint(i + 1)),
			Title: fmt.Sprintf("Lamp %d", i+1),
			Price: decimal.NewFromInt(int64(i + 1)),
		}
	}
	return out
}

func productButtons(markup *telebot.ReplyMarkup) int {
	n := 0
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if strings.HasPrefix(btn.Data, "prod:") {
				n++
			}
		}
	}
	return n
}

func TestBrowse_SearchPaging(t *testing.T) {
	e := newEnv(t)
	cat := &fakeCatalog{search: map[string][]catalog.Card{"lamp": cards(10)}}
	h := NewBrowse(&fakeAccounts{}, cat, e.fsm, e.kb, discard)
	pager := NewPager(h, nil)
	user := signedIn(40)

	first := e.message(user, "/search lamp")
	require.NoError(t, h.Search(first))
	require.Len(t, first.Sent, 1)
	markup := first.Sent[0].Markup()
	require.NotNil(t, markup)
	assert.Equal(t, 8, productButtons(markup))

	last := markup.InlineKeyboard[len(markup.InlineKeyboard)-1]
	assert.Equal(t, "pg:2:s:lamp", last[len(last)-1].Data)

	next := e.callback(user, 5, "pg:2:s:lamp")
	require.NoError(t, pager.Page(next))
	assert.Empty(t, next.Sent)
	require.Len(t, next.Edits, 1)
	assert.Equal(t, 2, productButtons(next.Edits[0].Markup()))
}

func TestBrowse_SearchConversation(t *testing.T) {
	e := newEnv(t)
	cat := &fakeCatalog{search: map[string][]catalog.Card{"lamp": cards(1)}}
	h := NewBrowse(&fakeAccounts{}, cat, e.fsm, e.kb, discard)
	user := signedIn(41)

	require.NoError(t, h.Search(e.message(user, "/search")))
	assert.Equal(t, state.StateAwaitingSearch, e.stateOf(t, 41))

	c := e.message(user, "  lamp ")
	require.NoError(t, h.SearchInput(c))
	assert.Equal(t, state.StateIdle, e.stateOf(t, 41))
	assert.Equal(t, 1, productButtons(c.Sent[0].Markup()))
}

func TestBrowse_SearchNoResults(t *testing.T) {
	e := newEnv(t)
	h := NewBrowse(&fakeAccounts{}, &fakeCatalog{}, e.fsm, e.kb, discard)

	c := e.message(signedIn(42), "/search <b>")
	require.NoError(t, h.Search(c))

	assert.Contains(t, c.LastText(), "&lt;b&gt;")
}

func TestBrowse_ShowcaseWithoutTagOffersCategories(t *testing.T) {
	e := newEnv(t)
	h := NewBrowse(&fakeAccounts{}, &fakeCatalog{}, e.fsm, e.kb, discard)

	c := e.message(signedIn(43), "/showcase")
	require.NoError(t, h.Showcase(c))

	markup := c.Sent[0].Markup()
	require.NotNil(t, markup)
	assert.Equal(t, "tag:ART", markup.InlineKeyboard[0][0].Data)
}

func TestBrowse_ProfileSignedOutNeedsName(t *testing.T) {
	e := newEnv(t)
	h := NewBrowse(&fakeAccounts{}, &fakeCatalog{}, e.fsm, e.kb, discard)

	c := e.message(&domain.Account{TelegramID: 44}, "/profile")
	require.NoError(t, h.Profile(c))

	assert.Equal(t, e.tr.T("profile.usage"), c.LastText())
}

func TestBrowse_Profile(t *testing.T) {
	e := newEnv(t)
	cat := &fakeCatalog{profile: &catalog.Profile{ClerkID: "user_7", Name: "Night Owl", MemberSince: "March 2024", Listings: cards(3)}}
	h := NewBrowse(&fakeAccounts{}, cat, e.fsm, e.kb, discard)

	c := e.message(signedIn(45), "/profile night_owl")
	require.NoError(t, h.Profile(c))

	assert.Contains(t, c.LastText(), "Night Owl")
	assert.Contains(t, c.LastText(), "March 2024")
	assert.Equal(t, 3, productButtons(c.Sent[0].Markup()))
}

func TestPager_UnknownScope(t *testing.T) {
	e := newEnv(t)
	pager := NewPager(NewBrowse(&fakeAccounts{}, &fakeCatalog{}, e.fsm, e.kb, discard), nil)

	err := pager.Page(e.callback(signedIn(46), 1, "pg:2:zz"))
	assert.Error(t, err)
}

func TestClipBytes(t *testing.T) {
	assert.Equal(t, "lamp", clipBytes("lamp", 48))
	assert.Equal(t, "ab", clipBytes("abcdef", 2))
	// "ж" is two bytes; a cut inside it drops the whole rune.
	assert.Equal(t, "ж", clipBytes("жж", 3))
}
