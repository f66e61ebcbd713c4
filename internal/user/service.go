// Package user links Telegram users to marketplace identities.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/domain"
	apperrors "github.com/Proton-105/oasis-bot/internal/errors"
	"github.com/Proton-105/oasis-bot/internal/identity"
	"github.com/Proton-105/oasis-bot/internal/repository"
	"github.com/Proton-105/oasis-bot/internal/usercache"
	"github.com/Proton-105/oasis-bot/internal/wallet"
)

// Identity is the identity provider as the account service uses it.
type Identity interface {
	identity.TokenSource
	GetSession(ctx context.Context, sessionID string) (*identity.SessionInfo, error)
	GetUser(ctx context.Context, userID string) (*identity.User, error)
	RevokeSession(ctx context.Context, sessionID string) error
}

// Registrar registers identities with the user service.
type Registrar interface {
	Register(ctx context.Context, token, clerkID, walletAddress string) error
	DeleteAccount(ctx context.Context, token string) error
}

// RevokeFunc schedules revocation of an identity session.
type RevokeFunc func(ctx context.Context, sessionID string) error

// Service provides business operations over account links.
type Service struct {
	repo      repository.AccountRepository
	cache     *usercache.Cache
	identity  Identity
	registrar Registrar
	template  string
	revoke    RevokeFunc
	checkURL  func(*url.URL) error
	log       *slog.Logger
}

// NewService constructs a Service. template is the identity token template
// the marketplace services expect.
func NewService(repo repository.AccountRepository, cache *usercache.Cache, idp Identity, registrar Registrar, template string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		repo:      repo,
		cache:     cache,
		identity:  idp,
		registrar: registrar,
		template:  template,
		log:       log,
	}
	s.revoke = idp.RevokeSession
	s.checkURL = wallet.CheckURL
	return s
}

// SetRevoker replaces the direct revocation call, typically with a job enqueue.
func (s *Service) SetRevoker(fn RevokeFunc) {
	if fn != nil {
		s.revoke = fn
	}
}

// SetBridgeCheck replaces the wallet bridge URL policy, typically with the
// CheckURL of the Bridges that will dial it.
func (s *Service) SetBridgeCheck(fn func(*url.URL) error) {
	if fn != nil {
		s.checkURL = fn
	}
}

// GetOrCreate returns the account of a Telegram user, creating an empty one
// on first contact.
func (s *Service) GetOrCreate(ctx context.Context, telegramUser *telebot.User) (*domain.Account, error) {
	if telegramUser == nil {
		return nil, errors.New("telegram user is nil")
	}

	if cached, err := s.cache.Get(ctx, telegramUser.ID); err != nil {
		s.logError("get_or_create.cache", telegramUser.ID, err)
	} else if cached != nil {
		return cached, nil
	}

	account, err := s.repo.FindByTelegramID(ctx, telegramUser.ID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		account, err = s.repo.Ensure(ctx, telegramUser.ID, telegramUser.LanguageCode)
	}
	if err != nil {
		s.logError("get_or_create", telegramUser.ID, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	s.remember(ctx, account)
	return account, nil
}

// Session returns the identity session of account for the purchase flow and
// authenticated calls. A signed-out account yields a session that is not signed in.
func (s *Service) Session(account *domain.Account) *identity.Session {
	if account == nil {
		return identity.NewSession(s.identity, "", "", s.template)
	}
	return identity.NewSession(s.identity, account.ClerkSessionID, account.ClerkUserID, s.template)
}

// Token returns a bearer token for account, or an auth error when signed out.
func (s *Service) Token(ctx context.Context, account *domain.Account) (string, error) {
	tok, err := s.Session(account).Token(ctx)
	if err != nil {
		return "", apperrors.NewUpstreamError("identity", err)
	}
	if tok == "" {
		return "", apperrors.NewAuthError("no active session")
	}
	return tok, nil
}

// Login links an identity session to a Telegram user and registers the
// identity with the user service when it carries a wallet.
func (s *Service) Login(ctx context.Context, telegramID int64, sessionID string) (*domain.Account, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperrors.NewValidationError("Send /login followed by your session id.")
	}

	info, err := s.identity.GetSession(ctx, sessionID)
	if err != nil {
		if identityStatus(err) == http.StatusNotFound {
			return nil, apperrors.NewAuthError("unknown session")
		}
		return nil, apperrors.NewUpstreamError("identity", err)
	}
	if !info.Active() {
		return nil, apperrors.NewAuthError("session is not active")
	}

	if err := s.repo.LinkSession(ctx, telegramID, info.UserID, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionTaken) {
			return nil, apperrors.NewValidationError("This session is already linked to another chat.")
		}
		s.logError("login", telegramID, err)
		return nil, apperrors.NewDatabaseError(err)
	}
	s.forget(ctx, telegramID)

	account, err := s.repo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	s.remember(ctx, account)

	s.autoRegister(ctx, account)
	return account, nil
}

// autoRegister announces a freshly linked identity to the user service. Failures
// are logged only; the user can still browse.
func (s *Service) autoRegister(ctx context.Context, account *domain.Account) {
	log := s.log.With(slog.Int64("telegram_id", account.TelegramID), slog.String("clerk_user_id", account.ClerkUserID))

	u, err := s.identity.GetUser(ctx, account.ClerkUserID)
	if err != nil {
		log.WarnContext(ctx, "auto-register: identity lookup failed", slog.Any("error", err))
		return
	}
	wallet, ok := identity.WalletAddress(u.WalletFields())
	if !ok {
		log.InfoContext(ctx, "auto-register skipped: identity has no wallet")
		return
	}

	// The user service accepts the default session token here.
	tok, err := identity.NewSession(s.identity, account.ClerkSessionID, account.ClerkUserID, "").Token(ctx)
	if err != nil || tok == "" {
		log.WarnContext(ctx, "auto-register: no token", slog.Any("error", err))
		return
	}

	if err := s.registrar.Register(ctx, tok, account.ClerkUserID, wallet); err != nil {
		log.WarnContext(ctx, "auto-register failed", slog.Any("error", err))
		return
	}
	log.InfoContext(ctx, "auto-registered identity")
}

// Logout unlinks the identity session and schedules its revocation.
func (s *Service) Logout(ctx context.Context, account *domain.Account) error {
	if account == nil || !account.LoggedIn() {
		return nil
	}

	if err := s.repo.ClearSession(ctx, account.TelegramID); err != nil {
		s.logError("logout", account.TelegramID, err)
		return apperrors.NewDatabaseError(err)
	}
	s.forget(ctx, account.TelegramID)

	if err := s.revoke(ctx, account.ClerkSessionID); err != nil {
		s.log.WarnContext(ctx, "session revocation failed",
			slog.Int64("telegram_id", account.TelegramID),
			slog.Any("error", err),
		)
	}
	return nil
}

// DeleteAccount removes the user's marketplace profile, then logs out.
func (s *Service) DeleteAccount(ctx context.Context, account *domain.Account) error {
	tok, err := s.Token(ctx, account)
	if err != nil {
		return err
	}
	if err := s.registrar.DeleteAccount(ctx, tok); err != nil {
		return apperrors.NewUpstreamError("user", err)
	}
	return s.Logout(ctx, account)
}

// SetWalletURL registers the JSON-RPC endpoint of the user's wallet bridge.
// An empty url removes it.
func (s *Service) SetWalletURL(ctx context.Context, telegramID int64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return apperrors.NewValidationError("The wallet bridge address must be an http(s) URL.")
		}
		if err := s.checkURL(u); err != nil {
			if errors.Is(err, wallet.ErrPrivateAddress) {
				return apperrors.NewValidationError("The wallet bridge must be reachable on a public address.")
			}
			return apperrors.NewValidationError("The wallet bridge address must be an http(s) URL.")
		}
	}

	if err := s.repo.SetWalletURL(ctx, telegramID, raw); err != nil {
		s.logError("set_wallet_url", telegramID, err)
		return apperrors.NewDatabaseError(err)
	}
	s.forget(ctx, telegramID)
	return nil
}

// UpdateLastActive refreshes the last_active_at field for the user.
func (s *Service) UpdateLastActive(ctx context.Context, telegramID int64) error {
	if err := s.repo.TouchLastActive(ctx, telegramID); err != nil {
		s.logError("update_last_active", telegramID, err)
		return err
	}
	return nil
}

// SweepStaleSessions unlinks and revokes sessions idle for longer than maxIdle.
// It returns how many sessions were swept.
func (s *Service) SweepStaleSessions(ctx context.Context, maxIdle time.Duration, batch int) (int, error) {
	stale, err := s.repo.StaleSessions(ctx, time.Now().Add(-maxIdle), batch)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	swept := 0
	for _, account := range stale {
		if err := s.Logout(ctx, account); err != nil {
			s.logError("sweep", account.TelegramID, err)
			continue
		}
		swept++
	}
	return swept, nil
}

func (s *Service) remember(ctx context.Context, account *domain.Account) {
	if err := s.cache.Set(ctx, account); err != nil {
		s.logError("cache.set", account.TelegramID, err)
	}
}

func (s *Service) forget(ctx context.Context, telegramID int64) {
	if err := s.cache.Invalidate(ctx, telegramID); err != nil {
		s.logError("cache.invalidate", telegramID, err)
	}
}

func identityStatus(err error) int {
	var st interface{ HTTPStatus() int }
	if errors.As(err, &st) {
		return st.HTTPStatus()
	}
	return 0
}

func (s *Service) logError(operation string, telegramID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("account service operation failed",
		slog.String("operation", operation),
		slog.Int64("telegram_id", telegramID),
		slog.Any("error", err),
	)
}
