// Package identity wraps the Clerk Backend API: session verification, token
// minting for the marketplace services and user lookups.
package identity

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/Proton-105/oasis-bot/internal/restclient"
)

// ErrSessionInactive is returned when a session exists but is not active.
var ErrSessionInactive = errors.New("session is not active")

// SessionStatusActive is the only status that can mint tokens.
const SessionStatusActive = "active"

// SessionInfo is the subset of a Clerk session the bot needs.
type SessionInfo struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	ExpireAt int64  `json:"expire_at"`
}

// Active reports whether the session can be used.
func (s *SessionInfo) Active() bool {
	return s != nil && s.Status == SessionStatusActive
}

// Web3Wallet is a wallet attached to a Clerk user.
type Web3Wallet struct {
	ID         string `json:"id"`
	Web3Wallet string `json:"web3_wallet"`
}

// ExternalAccount is an OAuth or wallet connection of a Clerk user.
type ExternalAccount struct {
	Provider string `json:"provider"`
	Address  string `json:"address"`
}

// EmailAddress is one of the user's addresses.
type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// User is the subset of a Clerk user the bot reads.
type User struct {
	ID                  string            `json:"id"`
	Username            string            `json:"username"`
	FirstName           string            `json:"first_name"`
	LastName            string            `json:"last_name"`
	ImageURL            string            `json:"image_url"`
	CreatedAt           int64             `json:"created_at"`
	PrimaryWeb3WalletID string            `json:"primary_web3_wallet_id"`
	Web3Wallets         []Web3Wallet      `json:"web3_wallets"`
	ExternalAccounts    []ExternalAccount `json:"external_accounts"`
	EmailAddresses      []EmailAddress    `json:"email_addresses"`
}

// UserFilter selects one search criterion for FindUser.
type UserFilter struct {
	Username     string
	EmailAddress string
	Query        string
}

// Client calls the Clerk Backend API with the instance secret key.
type Client struct {
	rest   *restclient.Client
	secret string
}

// NewClient wraps a configured REST client.
func NewClient(rest *restclient.Client, secretKey string) *Client {
	return &Client{rest: rest, secret: secretKey}
}

func (c *Client) req(ctx context.Context) *resty.Request {
	return c.rest.R(ctx).SetAuthToken(c.secret)
}

// GetSession fetches a session by id.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	resp, err := c.rest.Get(c.req(ctx), "/sessions/"+url.PathEscape(sessionID))
	if err != nil {
		return nil, err
	}
	var out SessionInfo
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSessionToken mints a JWT from template for an active session.
// A session that no longer exists or is no longer active yields ErrSessionInactive.
func (c *Client) CreateSessionToken(ctx context.Context, sessionID, template string) (string, error) {
	path := "/sessions/" + url.PathEscape(sessionID) + "/tokens"
	if template != "" {
		path += "/" + url.PathEscape(template)
	}

	resp, err := c.rest.Post(c.req(ctx), path)
	switch restclient.StatusOf(err) {
	case http.StatusUnauthorized, http.StatusNotFound, http.StatusGone, http.StatusUnprocessableEntity:
		return "", ErrSessionInactive
	}
	if err != nil {
		return "", err
	}

	var out struct {
		JWT string `json:"jwt"`
	}
	if err := restclient.Decode(resp, &out); err != nil {
		return "", err
	}
	return out.JWT, nil
}

// RevokeSession ends a session.
func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := c.rest.Post(c.req(ctx), "/sessions/"+url.PathEscape(sessionID)+"/revoke")
	if restclient.StatusOf(err) == http.StatusNotFound {
		return nil
	}
	return err
}

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	resp, err := c.rest.Get(c.req(ctx), "/users/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	var out User
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindUser returns the first user matching f, or nil when none does.
func (c *Client) FindUser(ctx context.Context, f UserFilter) (*User, error) {
	params := url.Values{"limit": {strconv.Itoa(1)}}
	switch {
	case f.Username != "":
		params.Set("username", f.Username)
	case f.EmailAddress != "":
		params.Set("email_address", f.EmailAddress)
	case f.Query != "":
		params.Set("query", f.Query)
	default:
		return nil, errors.New("empty user filter")
	}

	resp, err := c.rest.Get(c.req(ctx).SetQueryParamsFromValues(params), "/users")
	if err != nil {
		return nil, err
	}
	var out []User
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}
