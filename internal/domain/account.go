package domain

import "time"

// Account links a Telegram user to an identity-provider session and the
// wallet bridge the user registered.
type Account struct {
	TelegramID     int64     `json:"telegram_id"`
	ClerkUserID    string    `json:"clerk_user_id,omitempty"`
	ClerkSessionID string    `json:"clerk_session_id,omitempty"`
	WalletRPCURL   string    `json:"wallet_rpc_url,omitempty"`
	Language       string    `json:"language,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActiveAt   time.Time `json:"last_active_at"`
}

// LoggedIn reports whether the account holds an identity session.
func (a *Account) LoggedIn() bool {
	return a != nil && a.ClerkSessionID != "" && a.ClerkUserID != ""
}

// HasWallet reports whether a wallet bridge URL is registered.
func (a *Account) HasWallet() bool {
	return a != nil && a.WalletRPCURL != ""
}
