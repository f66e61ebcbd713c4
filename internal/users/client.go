// Package users is the client for the user-profile service.
package users

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/restclient"
)

// VerificationMessage is the text a wallet signs to prove ownership.
const VerificationMessage = "Verify Polygon wallet ownership for SlopeOasis"

// PublicProfile is what the service exposes about any user.
type PublicProfile struct {
	Nickname string `json:"nickname"`
}

// Client talks to the user-profile service.
type Client struct {
	rest *restclient.Client
}

// New wraps a configured REST client.
func New(rest *restclient.Client) *Client {
	return &Client{rest: rest}
}

func (c *Client) req(ctx context.Context, token string) *resty.Request {
	r := c.rest.R(ctx)
	if token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// WalletStatus reports whether the caller has a verified payment wallet.
// Non-2xx answers are returned as *restclient.StatusError.
func (c *Client) WalletStatus(ctx context.Context, token string) (bool, error) {
	resp, err := c.rest.Get(c.req(ctx, token), "/users/pol-wallet-status")
	if err != nil {
		return false, err
	}
	verified, err := strconv.ParseBool(restclient.TrimQuoted(resp.String()))
	if err != nil {
		return false, fmt.Errorf("wallet status: unexpected body %q", resp.String())
	}
	return verified, nil
}

// PublicWalletAddress returns the verified payment wallet on file for clerkID.
func (c *Client) PublicWalletAddress(ctx context.Context, clerkID string) (string, error) {
	resp, err := c.rest.Get(c.req(ctx, "").SetQueryParam("clerkId", clerkID), "/users/public/pol-wallet-addres")
	if err != nil {
		return "", err
	}
	return restclient.TrimQuoted(resp.String()), nil
}

// PublicProfile returns the public profile of clerkID.
func (c *Client) PublicProfile(ctx context.Context, clerkID string) (*PublicProfile, error) {
	resp, err := c.rest.Get(c.req(ctx, ""), "/users/public/"+url.PathEscape(clerkID))
	if err != nil {
		return nil, err
	}
	var out PublicProfile
	if err := restclient.Decode(resp, &out); err != nil {
		return nil, err
	}
	out.Nickname = strings.TrimSpace(out.Nickname)
	return &out, nil
}

// ClerkIDByNickname resolves a nickname to an identity id.
func (c *Client) ClerkIDByNickname(ctx context.Context, nickname string) (string, error) {
	resp, err := c.rest.Get(c.req(ctx, ""), "/users/public/by-nickname/"+url.PathEscape(nickname))
	if err != nil {
		return "", err
	}
	return restclient.TrimQuoted(resp.String()), nil
}

// Nickname returns the caller's nickname, or "" when none is set.
func (c *Client) Nickname(ctx context.Context, token string) (string, error) {
	resp, err := c.rest.Get(c.req(ctx, token), "/users/nickname")
	if restclient.StatusOf(err) == http.StatusNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return restclient.TrimQuoted(resp.String()), nil
}

// SetNickname changes the caller's nickname.
func (c *Client) SetNickname(ctx context.Context, token, nickname string) error {
	_, err := c.rest.Post(c.req(ctx, token).SetBody(map[string]string{"nickname": nickname}), "/users/nickname")
	return err
}

// Themes returns the caller's three interest slots; empty slots are "".
func (c *Client) Themes(ctx context.Context, token string) ([domain.InterestSlots]string, error) {
	var slots [domain.InterestSlots]string

	resp, err := c.rest.Get(c.req(ctx, token), "/users/themes")
	if restclient.StatusOf(err) == http.StatusNotFound {
		return slots, nil
	}
	if err != nil {
		return slots, err
	}

	var raw []*string
	if err := restclient.Decode(resp, &raw); err != nil {
		return slots, err
	}
	for i := 0; i < len(raw) && i < len(slots); i++ {
		if raw[i] != nil {
			slots[i] = *raw[i]
		}
	}
	return slots, nil
}

// SetThemes stores the three interest slots; "" clears a slot.
func (c *Client) SetThemes(ctx context.Context, token string, slots [domain.InterestSlots]string) error {
	body := make([]*string, len(slots))
	for i := range slots {
		if slots[i] != "" {
			s := slots[i]
			body[i] = &s
		}
	}
	_, err := c.rest.Post(c.req(ctx, token).SetBody(body), "/users/themes")
	return err
}

// VerifyWallet submits a personal_sign signature of VerificationMessage.
func (c *Client) VerifyWallet(ctx context.Context, token, walletAddress, signature string) error {
	body := map[string]string{
		"walletAddress": walletAddress,
		"message":       VerificationMessage,
		"signature":     signature,
	}
	_, err := c.rest.Post(c.req(ctx, token).SetBody(body), "/users/pol-verify-wallet")
	return err
}

// Register creates the profile record for a newly linked identity.
func (c *Client) Register(ctx context.Context, token, clerkID, walletAddress string) error {
	body := map[string]string{"clerkId": clerkID, "walletAddress": walletAddress}
	_, err := c.rest.Post(c.req(ctx, token).SetBody(body), "/users")
	return err
}

// DeleteAccount removes the caller's profile data.
func (c *Client) DeleteAccount(ctx context.Context, token string) error {
	_, err := c.rest.Delete(c.req(ctx, token), "/users")
	return err
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rest.Get(c.req(ctx, ""), "/health")
	return err
}
