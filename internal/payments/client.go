// Package payments is the client for the payment service.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/restclient"
)

// Intent pairs a purchase with its recipient and amount.
type Intent struct {
	PaymentID           string `json:"paymentId"`
	SellerWalletAddress string `json:"sellerWalletAddress"`
	// AmountWei is a base-10 integer string. The service may send it as a
	// JSON string or number.
	AmountWei string `json:"amountWei"`
}

// UnmarshalJSON accepts amountWei as either a string or a number.
func (i *Intent) UnmarshalJSON(data []byte) error {
	type plain Intent
	var raw struct {
		plain
		AmountWei json.Number `json:"amountWei"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Intent(raw.plain)
	i.AmountWei = raw.AmountWei.String()
	return nil
}

// ConfirmResult is the outcome of one confirmation call.
type ConfirmResult int

const (
	// Confirmed means the transaction was verified and the purchase recorded.
	Confirmed ConfirmResult = iota
	// Pending means the transaction is not mined yet (202).
	Pending
)

func (r ConfirmResult) String() string {
	if r == Pending {
		return "pending"
	}
	return "confirmed"
}

// Client talks to the payment service.
type Client struct {
	rest *restclient.Client
}

// New wraps a configured REST client.
func New(rest *restclient.Client) *Client {
	return &Client{rest: rest}
}

// CreateIntent opens a payment intent for postID. Each call creates a new intent.
func (c *Client) CreateIntent(ctx context.Context, token string, postID listings.ID) (*Intent, error) {
	req := c.rest.R(ctx).SetAuthToken(token).SetBody(map[string]listings.ID{"postId": postID})
	resp, err := c.rest.Post(req, "/paymentIntents/intent")
	if err != nil {
		return nil, err
	}

	var intent Intent
	if err := restclient.Decode(resp, &intent); err != nil {
		return nil, err
	}
	if intent.PaymentID == "" || intent.SellerWalletAddress == "" || intent.AmountWei == "" {
		return nil, errors.New("payment intent: incomplete response")
	}
	return &intent, nil
}

// Confirm asks the service to verify txHash for paymentID.
func (c *Client) Confirm(ctx context.Context, token, paymentID, txHash string) (ConfirmResult, error) {
	req := c.rest.R(ctx).SetAuthToken(token).SetBody(map[string]string{
		"paymentId": paymentID,
		"txHash":    txHash,
	})
	resp, err := c.rest.Post(req, "/payments/confirm")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode() == http.StatusAccepted {
		return Pending, nil
	}
	return Confirmed, nil
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rest.Get(c.rest.R(ctx), "/health")
	return err
}
