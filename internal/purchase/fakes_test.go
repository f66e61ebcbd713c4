package purchase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/payments"
	"github.com/Proton-105/oasis-bot/internal/wallet"
)

type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("http %d", int(e)) }
func (e statusError) HTTPStatus() int { return int(e) }

type fakeSession struct {
	signedIn bool
	userID   string

	mu     sync.Mutex
	tokens []string
	err    error
}

func signedIn(tokens ...string) *fakeSession {
	if len(tokens) == 0 {
		tokens = []string{"tok"}
	}
	return &fakeSession{signedIn: true, userID: "user_1", tokens: tokens}
}

func (s *fakeSession) SignedIn() bool { return s.signedIn }
func (s *fakeSession) UserID() string { return s.userID }

// Token hands out tokens in order and repeats the last one.
func (s *fakeSession) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if len(s.tokens) == 0 {
		return "", nil
	}
	tok := s.tokens[0]
	if len(s.tokens) > 1 {
		s.tokens = s.tokens[1:]
	}
	return tok, nil
}

type fakeProfiles struct {
	verified  bool
	statusErr error
	address   string
	addrErr   error
}

func (p *fakeProfiles) WalletStatus(context.Context, string) (bool, error) {
	return p.verified, p.statusErr
}

func (p *fakeProfiles) PublicWalletAddress(context.Context, string) (string, error) {
	return p.address, p.addrErr
}

type fakePayments struct {
	mu         sync.Mutex
	intents    int
	intentErr  error
	intent     payments.Intent
	results    []payments.ConfirmResult
	confirmErr error
	confirms   int
	tokens     []string
}

func (p *fakePayments) CreateIntent(_ context.Context, token string, _ listings.ID) (*payments.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.intents++
	p.tokens = append(p.tokens, token)
	if p.intentErr != nil {
		return nil, p.intentErr
	}
	intent := p.intent
	intent.PaymentID = fmt.Sprintf("%s-%d", intent.PaymentID, p.intents)
	return &intent, nil
}

func (p *fakePayments) Confirm(_ context.Context, token, _, _ string) (payments.ConfirmResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms++
	p.tokens = append(p.tokens, token)
	if p.confirmErr != nil {
		return 0, p.confirmErr
	}
	if len(p.results) == 0 {
		return payments.Pending, nil
	}
	next := p.results[0]
	if len(p.results) > 1 {
		p.results = p.results[1:]
	}
	return next, nil
}

type fakeListings struct {
	post   *listings.Post
	getErr error
	url    string
	sasErr error
	blobs  []string
}

func (l *fakeListings) Get(context.Context, string, listings.ID) (*listings.Post, error) {
	return l.post, l.getErr
}

func (l *fakeListings) BlobSAS(_ context.Context, _ string, _ listings.ID, blob string) (string, error) {
	l.blobs = append(l.blobs, blob)
	return l.url, l.sasErr
}

type fakeWallet struct {
	mu      sync.Mutex
	calls   []string
	sent    []wallet.Transaction
	account string
	hash    string
	errs    map[string][]error
}

func newFakeWallet(account string) *fakeWallet {
	return &fakeWallet{account: account, hash: "0xabc", errs: map[string][]error{}}
}

func (w *fakeWallet) fail(method string, err error) *fakeWallet {
	w.errs[method] = append(w.errs[method], err)
	return w
}

func (w *fakeWallet) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, method)

	if queue := w.errs[method]; len(queue) > 0 {
		w.errs[method] = queue[1:]
		return nil, queue[0]
	}

	switch method {
	case "eth_requestAccounts":
		return json.Marshal([]string{w.account})
	case "eth_sendTransaction":
		w.sent = append(w.sent, params[0].(wallet.Transaction))
		return json.Marshal(w.hash)
	default:
		return json.RawMessage("null"), nil
	}
}

func (w *fakeWallet) methods() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

type recordingObserver struct {
	mu    sync.Mutex
	steps []State
	bad   [][2]State
}

func (o *recordingObserver) StateChanged(_ *Attempt, from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.steps = append(o.steps, to)
	if !Allowed(from, to) {
		o.bad = append(o.bad, [2]State{from, to})
	}
}

func (o *recordingObserver) states() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.steps...)
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return s.err
}
