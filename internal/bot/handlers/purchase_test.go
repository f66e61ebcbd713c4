package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/payments"
	"github.com/Proton-105/oasis-bot/internal/purchase"
	"github.com/Proton-105/oasis-bot/internal/testutil"
)

type flowProfiles struct{ verified bool }

func (f flowProfiles) WalletStatus(context.Context, string) (bool, error) { return f.verified, nil }

func (f flowProfiles) PublicWalletAddress(context.Context, string) (string, error) { return "", nil }

type flowPayments struct{}

func (flowPayments) CreateIntent(context.Context, string, listings.ID) (*payments.Intent, error) {
	return &payments.Intent{PaymentID: "pay_1"}, nil
}

func (flowPayments) Confirm(context.Context, string, string, string) (payments.ConfirmResult, error) {
	return payments.Pending, nil
}

type flowListings struct{ post *listings.Post }

func (f flowListings) Get(context.Context, string, listings.ID) (*listings.Post, error) {
	return f.post, nil
}

func (f flowListings) BlobSAS(context.Context, string, listings.ID, string) (string, error) {
	return "https://blob.example/file?sig=1", nil
}

type shopFixture struct {
	env
	shop      *Shop
	messenger *testutil.Messenger
}

func newShop(t *testing.T, profiles flowProfiles, post *listings.Post) shopFixture {
	t.Helper()
	e := newEnv(t)

	product := &catalog.Product{Card: catalog.Card{
		ID:       post.ID,
		Title:    "Neon <brushes>",
		Price:    decimal.RequireFromString("4.99"),
		Copies:   domain.UnlimitedCopies,
		Seller:   "night_owl",
		Image:    "https://img.example/1.png",
		SellerID: post.SellerID,
	}}

	messenger := &testutil.Messenger{}
	views, err := NewViews(16, messenger, e.kb, discard)
	require.NoError(t, err)

	flow := purchase.NewFlow(profiles, flowPayments{}, flowListings{post: post}, discard)
	shop := NewShop(&fakeAccounts{}, &fakeCatalog{product: product}, flow, fakeWallets{}, views, messenger, time.Second, discard)
	return shopFixture{env: e, shop: shop, messenger: messenger}
}

func buttonTexts(markup *telebot.ReplyMarkup) []string {
	if markup == nil {
		return nil
	}
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.Text)
		}
	}
	return out
}

func TestShop_ProductCard(t *testing.T) {
	f := newShop(t, flowProfiles{}, &listings.Post{ID: "21"})

	require.NoError(t, f.shop.Product(f.message(signedIn(30), "/product 21")))

	require.Len(t, f.messenger.Sent, 1)
	sent := f.messenger.Sent[0]
	photo, ok := sent.What.(*telebot.Photo)
	require.True(t, ok)
	assert.Contains(t, photo.Caption, "<b>Neon &lt;brushes&gt;</b>")
	assert.Contains(t, buttonTexts(sent.Markup()), "Buy Now")
	assert.Equal(t, 1, f.shop.views.Len())
}

func TestShop_ProductCardAlreadyBought(t *testing.T) {
	f := newShop(t, flowProfiles{}, &listings.Post{ID: "21", Buyers: []string{"user_seller"}})

	require.NoError(t, f.shop.Product(f.message(signedIn(30), "/product 21")))

	require.Len(t, f.messenger.Sent, 1)
	assert.Contains(t, buttonTexts(f.messenger.Sent[0].Markup()), "Download")
}

func TestShop_BuyWithoutVerifiedWallet(t *testing.T) {
	f := newShop(t, flowProfiles{verified: false}, &listings.Post{ID: "21"})
	buyer := signedIn(31)

	require.NoError(t, f.shop.Product(f.message(buyer, "/product 21")))

	press := f.callback(buyer, 1001, "buy:21")
	require.NoError(t, f.shop.Buy(press))
	assert.Equal(t, "Starting purchase…", press.LastResponse().Text)

	require.Eventually(t, func() bool {
		return len(f.messenger.Texts()) == 2
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, buttonTexts(f.messenger.LastMarkup()), "Connect POL wallet")
	assert.Equal(t,
		"To buy <b>Neon &lt;brushes&gt;</b>, connect the wallet registered on your account: /wallet, then /verify.",
		f.messenger.Texts()[1],
	)
}

func TestShop_BuySignedOut(t *testing.T) {
	f := newShop(t, flowProfiles{}, &listings.Post{ID: "21"})
	guest := &domain.Account{TelegramID: 32}

	require.NoError(t, f.shop.Product(f.message(guest, "/product 21")))
	require.NoError(t, f.shop.Buy(f.callback(guest, 1001, "buy:21")))

	require.Eventually(t, func() bool {
		return len(f.messenger.Texts()) == 2
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, buttonTexts(f.messenger.LastMarkup()), "Log in to buy")
	assert.Contains(t, f.messenger.Texts()[1], "/login")
}

func TestShop_ExpiredCard(t *testing.T) {
	f := newShop(t, flowProfiles{}, &listings.Post{ID: "21"})

	press := f.callback(signedIn(33), 555, "buy:21")
	require.NoError(t, f.shop.Buy(press))

	require.NotNil(t, press.LastResponse())
	assert.True(t, press.LastResponse().ShowAlert)
	assert.Equal(t, "This card is no longer active. Open the listing again.", press.LastResponse().Text)
	assert.Empty(t, f.messenger.Markups)
}

func TestShop_Download(t *testing.T) {
	f := newShop(t, flowProfiles{}, &listings.Post{ID: "21", Buyers: []string{"user_seller"}})
	buyer := signedIn(34)

	require.NoError(t, f.shop.Product(f.message(buyer, "/product 21")))

	press := f.callback(buyer, 1001, "dl:21")
	require.NoError(t, f.shop.Download(press))

	markup := press.Sent[0].Markup()
	require.NotNil(t, markup)
	assert.Equal(t, "https://blob.example/file?sig=1", markup.InlineKeyboard[0][0].URL)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
	assert.Equal(t, "жжж…", truncate("жжжжжж", 4))
}
