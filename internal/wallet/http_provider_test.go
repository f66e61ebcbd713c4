package wallet

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bridgeURL = "http://127.0.0.1:8545/rpc"

func newTestBridges(t *testing.T) *Bridges {
	t.Helper()
	b := NewBridges(time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	httpmock.ActivateNonDefault(b.Resty().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return b
}

func TestHTTPProvider_Result(t *testing.T) {
	b := newTestBridges(t)

	httpmock.RegisterResponder(http.MethodPost, bridgeURL,
		func(req *http.Request) (*http.Response, error) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "2.0", body["jsonrpc"])
			assert.Equal(t, "eth_requestAccounts", body["method"])
			assert.Equal(t, []any{}, body["params"])
			return httpmock.NewStringResponse(200, `{"jsonrpc":"2.0","id":1,"result":["0xAAA"]}`), nil
		})

	account, err := RequestAccounts(context.Background(), b.For(bridgeURL))
	require.NoError(t, err)
	assert.Equal(t, "0xAAA", account)
}

func TestHTTPProvider_RPCError(t *testing.T) {
	b := newTestBridges(t)

	httpmock.RegisterResponder(http.MethodPost, bridgeURL,
		httpmock.NewStringResponder(200, `{"jsonrpc":"2.0","id":1,"error":{"code":4001,"message":"User rejected the request."}}`))

	_, err := SendTransaction(context.Background(), b.For(bridgeURL), Transaction{From: "0xA", To: "0xB", Value: "0x1"})
	require.Error(t, err)
	assert.True(t, IsUserRejected(err))
}

func TestHTTPProvider_TransportFailures(t *testing.T) {
	b := newTestBridges(t)

	httpmock.RegisterResponder(http.MethodPost, bridgeURL, httpmock.NewStringResponder(502, `bad gateway`))
	_, err := b.For(bridgeURL).Request(context.Background(), "eth_requestAccounts")
	require.Error(t, err)
	assert.Equal(t, 0, Code(err))

	httpmock.RegisterResponder(http.MethodPost, bridgeURL, httpmock.NewStringResponder(200, `not json`))
	_, err = b.For(bridgeURL).Request(context.Background(), "eth_requestAccounts")
	assert.Error(t, err)
}

func TestHTTPProvider_RequestIDsIncrease(t *testing.T) {
	b := newTestBridges(t)

	var ids []float64
	httpmock.RegisterResponder(http.MethodPost, bridgeURL,
		func(req *http.Request) (*http.Response, error) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			ids = append(ids, body["id"].(float64))
			return httpmock.NewStringResponse(200, `{"result":null}`), nil
		})

	p := b.For(bridgeURL)
	require.NoError(t, SwitchNetwork(context.Background(), p, Polygon))
	_, err := p.Request(context.Background(), "wallet_switchEthereumChain", map[string]string{"chainId": "0x89"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, ids)
}
