package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/oasis-bot/internal/restclient"
	"github.com/Proton-105/oasis-bot/pkg/config"
)

const baseURL = "http://localhost:8082"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	rest := restclient.New("payment", config.ServiceEndpoint{BaseURL: baseURL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	httpmock.ActivateNonDefault(rest.Resty().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return New(rest)
}

func TestClient_CreateIntent(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/paymentIntents/intent",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			raw, _ := io.ReadAll(req.Body)
			assert.JSONEq(t, `{"postId": 7}`, string(raw))
			return httpmock.NewStringResponse(200, `{"paymentId":"p1","sellerWalletAddress":"0xSeller","amountWei":"1000000000000000000"}`), nil
		})

	intent, err := c.CreateIntent(context.Background(), "tok", "7")
	require.NoError(t, err)
	assert.Equal(t, &Intent{PaymentID: "p1", SellerWalletAddress: "0xSeller", AmountWei: "1000000000000000000"}, intent)
}

func TestIntent_AmountWeiForms(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{name: "string", body: `{"paymentId":"p1","amountWei":"2500000000000000000"}`, want: "2500000000000000000"},
		{name: "number", body: `{"paymentId":"p1","amountWei":2500000000000000000}`, want: "2500000000000000000"},
		{name: "missing", body: `{"paymentId":"p1"}`, want: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var intent Intent
			require.NoError(t, json.Unmarshal([]byte(tc.body), &intent))
			assert.Equal(t, "p1", intent.PaymentID)
			assert.Equal(t, tc.want, intent.AmountWei)
		})
	}
}

func TestClient_CreateIntentNumericAmount(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/paymentIntents/intent",
		httpmock.NewStringResponder(200, `{"paymentId":"p1","sellerWalletAddress":"0xSeller","amountWei":1000000000000000000}`))

	intent, err := c.CreateIntent(context.Background(), "tok", "7")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", intent.AmountWei)
}

func TestClient_CreateIntentErrors(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/paymentIntents/intent",
		httpmock.NewStringResponder(409, `sold out`))

	_, err := c.CreateIntent(context.Background(), "tok", "7")
	assert.Equal(t, 409, restclient.StatusOf(err))

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/paymentIntents/intent",
		httpmock.NewStringResponder(200, `{"paymentId":"p1"}`))
	_, err = c.CreateIntent(context.Background(), "tok", "7")
	assert.Error(t, err)
}

func TestClient_Confirm(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		want    ConfirmResult
		wantErr int
	}{
		{name: "confirmed", status: 200, want: Confirmed},
		{name: "pending", status: 202, want: Pending},
		{name: "rejected", status: 400, wantErr: 400},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t)
			httpmock.RegisterResponder(http.MethodPost, baseURL+"/payments/confirm",
				func(req *http.Request) (*http.Response, error) {
					var body map[string]string
					require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
					assert.Equal(t, map[string]string{"paymentId": "p1", "txHash": "0xabc"}, body)
					return httpmock.NewStringResponse(tc.status, ``), nil
				})

			got, err := c.Confirm(context.Background(), "tok", "p1", "0xabc")
			if tc.wantErr != 0 {
				assert.Equal(t, tc.wantErr, restclient.StatusOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
