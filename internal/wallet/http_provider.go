package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBridgeTimeout = 5 * time.Minute

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Bridges creates providers for user-registered bridge URLs. One resty client
// is shared by every bridge.
type Bridges struct {
	client       *resty.Client
	log          *slog.Logger
	nextID       atomic.Uint64
	allowPrivate bool
}

// BridgeOption customises Bridges.
type BridgeOption func(*Bridges)

// AllowPrivateNetworks lets bridges live on loopback and private networks.
// Only for local development.
func AllowPrivateNetworks(allow bool) BridgeOption {
	return func(b *Bridges) { b.allowPrivate = allow }
}

// NewBridges builds a bridge factory. timeout bounds a single request, which
// includes the time the user takes to approve a prompt. Unless
// AllowPrivateNetworks is set, only public addresses are dialled.
func NewBridges(timeout time.Duration, log *slog.Logger, opts ...BridgeOption) *Bridges {
	if timeout <= 0 {
		timeout = defaultBridgeTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	b := &Bridges{
		client: resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		log:    log.With(slog.String("component", "wallet_bridge")),
	}
	for _, opt := range opts {
		opt(b)
	}
	if !b.allowPrivate {
		b.client.SetTransport(publicTransport())
	}
	return b
}

// CheckURL validates a bridge URL before it is stored.
func (b *Bridges) CheckURL(u *url.URL) error {
	if b.allowPrivate {
		return checkScheme(u)
	}
	return CheckURL(u)
}

// Resty exposes the shared client for transport mocking in tests.
func (b *Bridges) Resty() *resty.Client { return b.client }

// For returns a provider bound to url.
func (b *Bridges) For(rawURL string) Provider {
	return &HTTPProvider{bridges: b, url: rawURL}
}

// HTTPProvider sends JSON-RPC 2.0 requests to a wallet bridge over HTTP.
type HTTPProvider struct {
	bridges *Bridges
	url     string
}

// Request implements Provider.
func (p *HTTPProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      p.bridges.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	start := time.Now()
	resp, err := p.bridges.client.R().SetContext(ctx).SetBody(body).Post(p.url)
	if err != nil {
		return nil, fmt.Errorf("wallet bridge %s: %w", method, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("wallet bridge %s: status %d", method, resp.StatusCode())
	}

	var out rpcResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("wallet bridge %s: decode: %w", method, err)
	}

	p.bridges.log.DebugContext(ctx, "wallet request",
		slog.String("method", method),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("rejected", out.Error != nil),
	)

	if out.Error != nil {
		return nil, out.Error
	}
	if len(out.Result) == 0 {
		return nil, errors.New("wallet bridge " + method + ": empty result")
	}
	return out.Result, nil
}
