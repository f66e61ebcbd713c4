package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/payments"
	"github.com/Proton-105/oasis-bot/internal/wallet"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollAttempts = 30
)

var (
	// ErrNoWalletProvider is returned when the buyer has no wallet bridge
	// configured. The attempt is back in Idle.
	ErrNoWalletProvider = errors.New("no wallet provider available")
	// ErrConfirmationTimeout means every confirmation poll came back pending.
	ErrConfirmationTimeout = errors.New("payment not confirmed in time")
	// ErrNotLoggedIn is returned by Download without a usable session.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Session is the buyer's identity session.
type Session interface {
	SignedIn() bool
	UserID() string
	// Token returns a fresh bearer token, or "" when the session has ended.
	Token(ctx context.Context) (string, error)
}

// Profiles is the part of the user service the flow needs.
type Profiles interface {
	WalletStatus(ctx context.Context, token string) (bool, error)
	PublicWalletAddress(ctx context.Context, clerkID string) (string, error)
}

// Payments is the payment service.
type Payments interface {
	CreateIntent(ctx context.Context, token string, postID listings.ID) (*payments.Intent, error)
	Confirm(ctx context.Context, token, paymentID, txHash string) (payments.ConfirmResult, error)
}

// Listings is the part of the listing service the flow needs.
type Listings interface {
	Get(ctx context.Context, token string, id listings.ID) (*listings.Post, error)
	BlobSAS(ctx context.Context, token string, id listings.ID, blob string) (string, error)
}

// Flow drives purchase attempts. It is safe for concurrent use; it does not
// serialise attempts on the same card.
type Flow struct {
	profiles Profiles
	payments Payments
	listings Listings
	log      *slog.Logger

	network      wallet.Network
	pollInterval time.Duration
	pollAttempts int
	sleep        func(ctx context.Context, d time.Duration) error
	onPolls      func(n int)
}

// Option configures a Flow.
type Option func(*Flow)

// WithPollInterval sets the wait between confirmation polls.
func WithPollInterval(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// WithPollAttempts caps the number of confirmation polls.
func WithPollAttempts(n int) Option {
	return func(f *Flow) {
		if n > 0 {
			f.pollAttempts = n
		}
	}
}

// WithSleep replaces the wait used between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Flow) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithNetwork selects the chain the wallet is switched to.
func WithNetwork(n wallet.Network) Option {
	return func(f *Flow) { f.network = n }
}

// WithPollObserver receives the number of polls each submitted transaction took.
func WithPollObserver(fn func(n int)) Option {
	return func(f *Flow) { f.onPolls = fn }
}

// NewFlow wires a Flow to the marketplace services.
func NewFlow(profiles Profiles, pay Payments, list Listings, log *slog.Logger, opts ...Option) *Flow {
	if log == nil {
		log = slog.Default()
	}

	f := &Flow{
		profiles:     profiles,
		payments:     pay,
		listings:     list,
		log:          log,
		network:      wallet.Polygon,
		pollInterval: DefaultPollInterval,
		pollAttempts: DefaultPollAttempts,
		sleep:        sleepContext,
		onPolls:      func(int) {},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CheckOwnership marks the attempt Bought when the signed-in user already
// bought the listing. Failures are logged and leave the attempt untouched.
func (f *Flow) CheckOwnership(ctx context.Context, a *Attempt, s Session) {
	if s == nil || !s.SignedIn() {
		return
	}

	token, err := s.Token(ctx)
	if err != nil || token == "" {
		return
	}

	post, err := f.listings.Get(ctx, token, a.ProductID())
	if err != nil {
		f.log.DebugContext(ctx, "ownership check failed",
			slog.String("post_id", a.ProductID().String()),
			slog.Any("error", err),
		)
		return
	}

	if post.HasBuyer(s.UserID()) {
		f.transition(ctx, a, Bought)
	}
}

// Buy runs the purchase sequence for a. w is the buyer's wallet and may be nil.
// The returned error is the cause of a failure that ended in Error, or
// ErrNoWalletProvider; outcomes the buyer can act on are reported through the
// attempt state only.
func (f *Flow) Buy(ctx context.Context, a *Attempt, s Session, w wallet.Provider) error {
	if s == nil || !s.SignedIn() {
		f.transition(ctx, a, NotLoggedIn)
		return nil
	}

	token, err := s.Token(ctx)
	if err != nil {
		return f.fail(ctx, a, "fetch token", err)
	}
	if token == "" {
		f.transition(ctx, a, NotLoggedIn)
		return nil
	}

	verified, err := f.profiles.WalletStatus(ctx, token)
	if err != nil {
		switch httpStatus(err) {
		case 0:
			return f.fail(ctx, a, "wallet status", err)
		case http.StatusUnauthorized:
			f.transition(ctx, a, NotLoggedIn)
		default:
			f.transition(ctx, a, WalletNotConnected)
		}
		return nil
	}
	if !verified {
		f.transition(ctx, a, WalletNotConnected)
		return nil
	}

	f.transition(ctx, a, Creating)

	intent, err := f.payments.CreateIntent(ctx, token, a.ProductID())
	if err != nil {
		return f.fail(ctx, a, "create payment intent", err)
	}
	a.setPayment(intent.PaymentID)

	if w == nil {
		f.transition(ctx, a, Idle)
		return ErrNoWalletProvider
	}

	if err := wallet.SwitchNetwork(ctx, w, f.network); err != nil {
		return f.fail(ctx, a, "switch network", err)
	}

	f.transition(ctx, a, Confirm)

	account, err := wallet.RequestAccounts(ctx, w)
	if err != nil {
		return f.fail(ctx, a, "request accounts", err)
	}

	registered, err := f.profiles.PublicWalletAddress(ctx, s.UserID())
	if err != nil {
		if httpStatus(err) == 0 {
			return f.fail(ctx, a, "registered wallet", err)
		}
		f.transition(ctx, a, WalletNotConnected)
		return nil
	}
	if !wallet.SameAddress(account, registered) {
		f.log.InfoContext(ctx, "connected wallet differs from registered wallet",
			slog.String("post_id", a.ProductID().String()),
		)
		f.transition(ctx, a, WalletNotConnected)
		return nil
	}

	value, err := wallet.WeiToHex(intent.AmountWei)
	if err != nil {
		return f.fail(ctx, a, "payment amount", err)
	}

	txHash, err := wallet.SendTransaction(ctx, w, wallet.Transaction{
		From:  account,
		To:    intent.SellerWalletAddress,
		Value: value,
	})
	if err != nil {
		return f.fail(ctx, a, "send transaction", err)
	}
	a.setTxHash(txHash)

	token, err = s.Token(ctx)
	if err != nil {
		return f.fail(ctx, a, "refresh token", err)
	}
	if token == "" {
		f.transition(ctx, a, NotLoggedIn)
		return nil
	}

	f.transition(ctx, a, Pending)
	return f.awaitConfirmation(ctx, a, token, intent.PaymentID, txHash)
}

func (f *Flow) awaitConfirmation(ctx context.Context, a *Attempt, token, paymentID, txHash string) error {
	for poll := 1; poll <= f.pollAttempts; poll++ {
		result, err := f.payments.Confirm(ctx, token, paymentID, txHash)
		if err != nil {
			f.onPolls(poll)
			return f.fail(ctx, a, "confirm payment", err)
		}

		if result == payments.Confirmed {
			f.onPolls(poll)
			f.transition(ctx, a, Bought)
			return nil
		}

		if poll == f.pollAttempts {
			break
		}
		if err := f.sleep(ctx, f.pollInterval); err != nil {
			f.onPolls(poll)
			return f.fail(ctx, a, "await confirmation", err)
		}
	}

	f.onPolls(f.pollAttempts)
	return f.fail(ctx, a, "confirm payment", ErrConfirmationTimeout)
}

// Download returns a signed URL for the purchased file.
func (f *Flow) Download(ctx context.Context, a *Attempt, s Session) (string, error) {
	if s == nil || !s.SignedIn() {
		f.transition(ctx, a, NotLoggedIn)
		return "", ErrNotLoggedIn
	}

	token, err := s.Token(ctx)
	if err != nil {
		f.transition(ctx, a, Error)
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if token == "" {
		f.transition(ctx, a, NotLoggedIn)
		return "", ErrNotLoggedIn
	}

	url, err := f.listings.BlobSAS(ctx, token, a.ProductID(), "")
	if err != nil {
		f.transition(ctx, a, Error)
		return "", fmt.Errorf("download url: %w", err)
	}
	return url, nil
}

// fail ends the sequence. A rejected wallet prompt returns the attempt to Idle
// without an error.
func (f *Flow) fail(ctx context.Context, a *Attempt, step string, err error) error {
	if wallet.IsUserRejected(err) {
		f.log.InfoContext(ctx, "purchase cancelled in wallet",
			slog.String("post_id", a.ProductID().String()),
			slog.String("step", step),
		)
		f.transition(ctx, a, Idle)
		return nil
	}

	f.log.WarnContext(ctx, "purchase failed",
		slog.String("post_id", a.ProductID().String()),
		slog.String("payment_id", a.PaymentID()),
		slog.String("step", step),
		slog.Any("error", err),
	)
	f.transition(ctx, a, Error)
	return fmt.Errorf("%s: %w", step, err)
}

func (f *Flow) transition(ctx context.Context, a *Attempt, to State) {
	from, changed := a.set(to)
	if changed && !Allowed(from, to) {
		// Only reachable when two sequences share one card.
		f.log.WarnContext(ctx, "out of order purchase transition",
			slog.String("post_id", a.ProductID().String()),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
	}
}

func httpStatus(err error) int {
	var st interface{ HTTPStatus() int }
	if errors.As(err, &st) {
		return st.HTTPStatus()
	}
	return 0
}
