// Package repository persists bot-owned records: account links in PostgreSQL
// and listing drafts in Redis.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Proton-105/oasis-bot/internal/domain"
)

var (
	// ErrAccountNotFound is returned when no account exists for a Telegram id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrSessionTaken is returned when a session is already linked to another chat.
	ErrSessionTaken = errors.New("session already linked to another account")
)

const uniqueViolation = "23505"

// AccountRepository defines persistence operations for account links.
type AccountRepository interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Account, error)
	Ensure(ctx context.Context, telegramID int64, language string) (*domain.Account, error)
	LinkSession(ctx context.Context, telegramID int64, clerkUserID, sessionID string) error
	ClearSession(ctx context.Context, telegramID int64) error
	SetWalletURL(ctx context.Context, telegramID int64, url string) error
	TouchLastActive(ctx context.Context, telegramID int64) error
	StaleSessions(ctx context.Context, before time.Time, limit int) ([]*domain.Account, error)
	Ping(ctx context.Context) error
}

type accountRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAccountRepository creates a PostgreSQL-backed account repository.
func NewAccountRepository(db *sql.DB, log *slog.Logger) AccountRepository {
	return &accountRepository{db: db, log: log}
}

const accountColumns = `telegram_id, clerk_user_id, clerk_session_id, wallet_rpc_url, language, created_at, last_active_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a                             domain.Account
		clerkUser, session, walletURL sql.NullString
	)
	if err := row.Scan(&a.TelegramID, &clerkUser, &session, &walletURL, &a.Language, &a.CreatedAt, &a.LastActiveAt); err != nil {
		return nil, err
	}
	a.ClerkUserID = clerkUser.String
	a.ClerkSessionID = session.String
	a.WalletRPCURL = walletURL.String
	return &a, nil
}

// FindByTelegramID retrieves the account linked to a Telegram user.
func (r *accountRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE telegram_id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		r.logError("find_by_telegram_id", telegramID, err)
		return nil, fmt.Errorf("select account: %w", err)
	}
	return account, nil
}

// Ensure returns the account for telegramID, creating an empty one first.
func (r *accountRepository) Ensure(ctx context.Context, telegramID int64, language string) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (telegram_id, language)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE SET last_active_at = NOW()
		RETURNING ` + accountColumns

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, telegramID, language))
	if err != nil {
		r.logError("ensure", telegramID, err)
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return account, nil
}

// LinkSession stores the identity session the user logged in with.
func (r *accountRepository) LinkSession(ctx context.Context, telegramID int64, clerkUserID, sessionID string) error {
	const query = `
		UPDATE accounts
		SET clerk_user_id = $2, clerk_session_id = $3, last_active_at = NOW()
		WHERE telegram_id = $1
	`

	res, err := r.db.ExecContext(ctx, query, telegramID, clerkUserID, sessionID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrSessionTaken
		}
		r.logError("link_session", telegramID, err)
		return fmt.Errorf("link session: %w", err)
	}
	return expectOne(res)
}

// ClearSession forgets the identity session but keeps the wallet bridge.
func (r *accountRepository) ClearSession(ctx context.Context, telegramID int64) error {
	const query = `UPDATE accounts SET clerk_user_id = NULL, clerk_session_id = NULL WHERE telegram_id = $1`

	res, err := r.db.ExecContext(ctx, query, telegramID)
	if err != nil {
		r.logError("clear_session", telegramID, err)
		return fmt.Errorf("clear session: %w", err)
	}
	return expectOne(res)
}

// SetWalletURL stores the wallet bridge URL; "" removes it.
func (r *accountRepository) SetWalletURL(ctx context.Context, telegramID int64, url string) error {
	const query = `UPDATE accounts SET wallet_rpc_url = NULLIF($2, '') WHERE telegram_id = $1`

	res, err := r.db.ExecContext(ctx, query, telegramID, url)
	if err != nil {
		r.logError("set_wallet_url", telegramID, err)
		return fmt.Errorf("set wallet url: %w", err)
	}
	return expectOne(res)
}

// TouchLastActive refreshes last_active_at.
func (r *accountRepository) TouchLastActive(ctx context.Context, telegramID int64) error {
	const query = `UPDATE accounts SET last_active_at = NOW() WHERE telegram_id = $1`

	if _, err := r.db.ExecContext(ctx, query, telegramID); err != nil {
		r.logError("touch_last_active", telegramID, err)
		return fmt.Errorf("touch last active: %w", err)
	}
	return nil
}

// StaleSessions lists accounts holding a session that were last active before before.
func (r *accountRepository) StaleSessions(ctx context.Context, before time.Time, limit int) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE clerk_session_id IS NOT NULL AND last_active_at < $1
		ORDER BY last_active_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("select stale sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale session: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (r *accountRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *accountRepository) logError(operation string, telegramID int64, err error) {
	if r.log == nil {
		return
	}
	r.log.Error("account repository operation failed",
		slog.String("operation", operation),
		slog.Int64("telegram_id", telegramID),
		slog.Any("error", err),
	)
}
