package users

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

	"github.com/Proton-105/oasis-bot/internal/domain"
	"github.com/Proton-105/oasis-bot/internal/restclient"
	"github.com/Proton-105/oasis-bot/pkg/config"
)

const baseURL = "http://localhost:8080"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	rest := restclient.New("user", config.ServiceEndpoint{BaseURL: baseURL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	httpmock.ActivateNonDefault(rest.Resty().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return New(rest)
}

func TestClient_WalletStatus(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		body       string
		want       bool
		wantStatus int
		wantErr    bool
	}{
		{name: "verified", status: 200, body: "true", want: true},
		{name: "not verified", status: 200, body: "false", want: false},
		{name: "unauthorized", status: 401, body: "", wantStatus: 401, wantErr: true},
		{name: "server error", status: 500, body: "oops", wantStatus: 500, wantErr: true},
		{name: "garbage", status: 200, body: "{}", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t)
			httpmock.RegisterResponder(http.MethodGet, baseURL+"/users/pol-wallet-status",
				httpmock.NewStringResponder(tc.status, tc.body))

			got, err := c.WalletStatus(context.Background(), "tok")
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.wantStatus, restclient.StatusOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClient_PublicWalletAddress(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/users/public/pol-wallet-addres",
		map[string]string{"clerkId": "user_1"},
		httpmock.NewStringResponder(200, `"0xAbC123"`))

	got, err := c.PublicWalletAddress(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "0xAbC123", got)
}

func TestClient_PublicProfileAndNickname(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/users/public/user_1",
		httpmock.NewStringResponder(200, `{"nickname": "  beatmaker "}`))
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/users/public/by-nickname/beatmaker",
		httpmock.NewStringResponder(200, `user_1`))

	profile, err := c.PublicProfile(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "beatmaker", profile.Nickname)

	id, err := c.ClerkIDByNickname(context.Background(), "beatmaker")
	require.NoError(t, err)
	assert.Equal(t, "user_1", id)
}

func TestClient_Nickname(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/users/nickname",
		httpmock.NewStringResponder(404, ``))

	nick, err := c.Nickname(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, nick)

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/users/nickname",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "newname", body["nickname"])
			return httpmock.NewStringResponse(200, ``), nil
		})
	assert.NoError(t, c.SetNickname(context.Background(), "tok", "newname"))
}

func TestClient_Themes(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, baseURL+"/users/themes",
		httpmock.NewStringResponder(200, `["ART", null, "FONT"]`))
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/users/themes",
		func(req *http.Request) (*http.Response, error) {
			raw, _ := io.ReadAll(req.Body)
			assert.JSONEq(t, `["MUSIC", null, null]`, string(raw))
			return httpmock.NewStringResponse(200, ``), nil
		})

	slots, err := c.Themes(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, [domain.InterestSlots]string{"ART", "", "FONT"}, slots)

	require.NoError(t, c.SetThemes(context.Background(), "tok", [domain.InterestSlots]string{"MUSIC"}))
}

func TestClient_VerifyWallet(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/users/pol-verify-wallet",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, VerificationMessage, body["message"])
			assert.Equal(t, "0xsig", body["signature"])
			return httpmock.NewStringResponse(400, `bad signature`), nil
		})

	err := c.VerifyWallet(context.Background(), "tok", "0xabc", "0xsig")
	assert.Equal(t, 400, restclient.StatusOf(err))
}
