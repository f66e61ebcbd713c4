package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/oasis-bot/internal/bot/keyboard"
	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/identity"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/repository"
	"github.com/Proton-105/oasis-bot/internal/state"
	"github.com/Proton-105/oasis-bot/internal/testutil"
	"github.com/Proton-105/oasis-bot/internal/wallet"
	appredis "github.com/Proton-105/oasis-bot/pkg/redis"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type env struct {
	fsm    state.StateMachine
	drafts *repository.DraftRepository
	kb     *keyboard.Builder
	tr     i18n.Translator
}

func newEnv(t *testing.T) env {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	translations, err := i18n.Load("en")
	require.NoError(t, err)

	return env{
		fsm:    state.NewStateMachine(state.NewRedisStorage(rdb, discard, time.Hour), discard, rdb),
		drafts: repository.NewDraftRepository(appredis.Wrap(rdb), 0),
		kb:     keyboard.NewBuilder(discard),
		tr:     translations.Translator("en"),
	}
}

// message prepares a text update from a signed-in user.
func (e env) message(account *domain.Account, text string) *testutil.FakeContext {
	c := testutil.NewMessage(account.TelegramID, text)
	SetAccount(c, account)
	SetTranslator(c, e.tr)
	return c
}

func (e env) callback(account *domain.Account, messageID int, data string) *testutil.FakeContext {
	c := testutil.NewCallback(account.TelegramID, messageID, data)
	SetAccount(c, account)
	SetTranslator(c, e.tr)
	return c
}

func (e env) stateOf(t *testing.T, userID int64) state.State {
	t.Helper()
	st, err := e.fsm.Current(context.Background(), userID)
	require.NoError(t, err)
	return st.CurrentState
}

func signedIn(telegramID int64) *domain.Account {
	return &domain.Account{
		TelegramID:     telegramID,
		ClerkUserID:    "user_seller",
		ClerkSessionID: "sess_1",
	}
}

type staticTokens struct{}

func (staticTokens) CreateSessionToken(context.Context, string, string) (string, error) {
	return "jwt", nil
}

type fakeAccounts struct {
	mu        sync.Mutex
	walletURL string
	loggedOut bool
}

func (f *fakeAccounts) Login(_ context.Context, telegramID int64, sessionID string) (*domain.Account, error) {
	return &domain.Account{TelegramID: telegramID, ClerkSessionID: sessionID, ClerkUserID: "user_" + sessionID}, nil
}

func (f *fakeAccounts) Logout(context.Context, *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *fakeAccounts) SetWalletURL(_ context.Context, _ int64, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletURL = raw
	return nil
}

func (f *fakeAccounts) Session(account *domain.Account) *identity.Session {
	if account == nil {
		return identity.NewSession(staticTokens{}, "", "", "tpl")
	}
	return identity.NewSession(staticTokens{}, account.ClerkSessionID, account.ClerkUserID, "tpl")
}

func (f *fakeAccounts) Token(_ context.Context, account *domain.Account) (string, error) {
	return "jwt", nil
}

type fakeCatalog struct {
	home     []catalog.Card
	search   map[string][]catalog.Card
	product  *catalog.Product
	seller   []catalog.Card
	profile  *catalog.Profile
	products []listings.ID
}

func (f *fakeCatalog) Home(context.Context, string) ([]catalog.Card, error) { return f.home, nil }

func (f *fakeCatalog) Search(_ context.Context, query string, _ int) ([]catalog.Card, error) {
	return f.search[query], nil
}

func (f *fakeCatalog) Showcase(_ context.Context, raw string) (domain.Tag, []catalog.Card, error) {
	tag, err := domain.ParseTag(raw)
	return tag, nil, err
}

func (f *fakeCatalog) Product(_ context.Context, _ string, id listings.ID) (*catalog.Product, error) {
	f.products = append(f.products, id)
	return f.product, nil
}

func (f *fakeCatalog) ResolveProfile(context.Context, string) (*catalog.Profile, error) {
	return f.profile, nil
}

func (f *fakeCatalog) SellerListings(context.Context, string, string) ([]catalog.Card, error) {
	return f.seller, nil
}

func (f *fakeCatalog) Purchases(context.Context, string, string, int) ([]catalog.Card, error) {
	return nil, nil
}

type fakeListings struct {
	mu       sync.Mutex
	post     *listings.Post
	created  *listings.Fields
	file     listings.File
	previews []listings.File
	updated  *listings.Fields
	statuses []listings.Status
}

func (f *fakeListings) Get(context.Context, string, listings.ID) (*listings.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := *f.post
	return &p, nil
}

func (f *fakeListings) Create(_ context.Context, _ string, fields listings.Fields, file listings.File, previews []listings.File) (*listings.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created, f.file, f.previews = &fields, file, previews
	return &listings.Post{ID: "77", Title: fields.Title}, nil
}

func (f *fakeListings) Update(_ context.Context, _ string, _ listings.ID, fields listings.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = &fields
	return nil
}

func (f *fakeListings) SetStatus(_ context.Context, _ string, _ listings.ID, status listings.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeListings) ReplaceFile(context.Context, string, listings.ID, listings.File) error {
	return nil
}

func (f *fakeListings) ReplacePreviews(_ context.Context, _ string, _ listings.ID, previews []listings.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = previews
	return nil
}

// memFiles serves file bytes keyed by Telegram file id.
type memFiles map[string]string

func (m memFiles) Fetch(_ context.Context, f domain.DraftFile) (listings.File, error) {
	return listings.File{Name: f.Name, ContentType: f.ContentType, Data: []byte(m[f.FileID])}, nil
}

type fakeProfiles struct {
	nickname string
	themes   [domain.InterestSlots]string
	verified []string
}

func (f *fakeProfiles) Nickname(context.Context, string) (string, error) { return f.nickname, nil }

func (f *fakeProfiles) SetNickname(_ context.Context, _ string, nickname string) error {
	f.nickname = nickname
	return nil
}

func (f *fakeProfiles) Themes(context.Context, string) ([domain.InterestSlots]string, error) {
	return f.themes, nil
}

func (f *fakeProfiles) SetThemes(_ context.Context, _ string, slots [domain.InterestSlots]string) error {
	f.themes = slots
	return nil
}

func (f *fakeProfiles) VerifyWallet(_ context.Context, _ string, address, signature string) error {
	f.verified = append(f.verified, address, signature)
	return nil
}

type fakeWallets struct {
	provider wallet.Provider
}

func (f fakeWallets) For(string) wallet.Provider { return f.provider }

// scriptedWallet answers wallet requests from a method table.
type scriptedWallet struct {
	mu      sync.Mutex
	replies map[string]json.RawMessage
	errs    map[string]error
	calls   []string
}

func (w *scriptedWallet) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, method)
	if err := w.errs[method]; err != nil {
		return nil, err
	}
	return w.replies[method], nil
}
