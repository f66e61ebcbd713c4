package listings

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/oasis-bot/internal/restclient"
	"github.com/Proton-105/oasis-bot/pkg/config"
)

const baseURL = "http://localhost:8081"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	rest := restclient.New("listing", config.ServiceEndpoint{BaseURL: baseURL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	httpmock.ActivateNonDefault(rest.Resty().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return New(rest)
}

func TestClient_Public(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/posts/public/7",
		httpmock.NewStringResponder(200, `{
			"post": {"id": 7, "title": "Lo-fi loops", "priceUSD": 12.5, "tags": ["MUSIC"], "copies": -1,
			         "sellerId": "user_s", "previewImages": ["p1.png"], "azBlobName": "loops.zip"},
			"ratingSummary": {"average": 4.5, "count": 2}
		}`))

	got, err := c.Public(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, ID("7"), got.Post.ID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Post.PriceUSD))
	assert.Equal(t, "MUSIC", got.Post.Category())
	assert.Equal(t, -1, got.Post.Copies)
	require.NotNil(t, got.RatingSummary)
	assert.Equal(t, 2, got.RatingSummary.Count)
}

func TestClient_GetWithBuyers(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/posts/7",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(200, `{"id": "7", "buyers": ["user_a", "user_b"]}`), nil
		})

	post, err := c.Get(context.Background(), "tok", "7")
	require.NoError(t, err)
	assert.True(t, post.HasBuyer("user_b"))
	assert.False(t, post.HasBuyer("user_c"))
	assert.False(t, post.HasBuyer(""))
}

func TestClient_SearchTitle(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/posts/search/title",
		map[string]string{"q": "synth pack", "page": "0", "size": "50"},
		httpmock.NewStringResponder(200, `[{"id": 1, "title": "Synth pack"}, {"id": 2, "title": "Synth pack 2"}]`))

	posts, err := c.SearchTitle(context.Background(), "synth pack", 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestClient_BlobSAS(t *testing.T) {
	testCases := []struct {
		name    string
		blob    string
		query   map[string]string
		status  int
		body    string
		want    string
		wantErr int
	}{
		{name: "main file strips quotes", status: 200, body: `"https://blob.example/file.zip?sig=abc"`, want: "https://blob.example/file.zip?sig=abc"},
		{name: "preview blob", blob: "p1.png", query: map[string]string{"blobName": "p1.png"}, status: 200, body: `https://blob.example/p1.png`, want: "https://blob.example/p1.png"},
		{name: "forbidden", status: 403, body: `not a buyer`, wantErr: 403},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t)
			if tc.query != nil {
				httpmock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/posts/7/blob-sas", tc.query, httpmock.NewStringResponder(tc.status, tc.body))
			} else {
				httpmock.RegisterResponder(http.MethodGet, baseURL+"/posts/7/blob-sas", httpmock.NewStringResponder(tc.status, tc.body))
			}

			got, err := c.BlobSAS(context.Background(), "tok", "7", tc.blob)
			if tc.wantErr != 0 {
				assert.Equal(t, tc.wantErr, restclient.StatusOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClient_BlobMetadataSize(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, baseURL+"/posts/7/blob-metadata",
		httpmock.NewStringResponder(200, `{"name": "loops.zip", "contentType": "application/zip", "sizeBytes": 2500000}`))

	meta, err := c.BlobMetadata(context.Background(), "", "7")
	require.NoError(t, err)
	assert.Equal(t, "2.5 MB", meta.Size())

	meta.SizeFormatted = "2.38 MB"
	assert.Equal(t, "2.38 MB", meta.Size())
}

func TestClient_UpdateAndStatus(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPut, baseURL+"/posts/7",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, 9.99, body["priceUSD"])
			assert.Equal(t, []any{"ART"}, body["tags"])
			return httpmock.NewStringResponse(200, `{}`), nil
		})
	httpmock.RegisterResponder(http.MethodPut, baseURL+"/posts/7/status",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "USER_DELETED", body["status"])
			return httpmock.NewStringResponse(204, ``), nil
		})

	err := c.Update(context.Background(), "tok", "7", Fields{
		Title:    "Poster",
		Tags:     []string{"ART"},
		PriceUSD: decimal.RequireFromString("9.99"),
		Copies:   3,
	})
	require.NoError(t, err)
	require.NoError(t, c.SetStatus(context.Background(), "tok", "7", StatusUserDeleted))
}

func TestClient_Create(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, baseURL+"/posts",
		func(req *http.Request) (*http.Response, error) {
			_, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
			require.NoError(t, err)

			reader := multipart.NewReader(req.Body, params["boundary"])
			names := map[string]int{}
			for {
				part, err := reader.NextPart()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				names[part.FormName()]++
			}
			assert.Equal(t, map[string]int{"post": 1, "file": 1, "previewImages": 2}, names)
			return httpmock.NewStringResponse(201, `{"id": 99, "title": "Font"}`), nil
		})

	post, err := c.Create(context.Background(), "tok",
		Fields{Title: "Font", PriceUSD: decimal.NewFromInt(5), Copies: -1},
		File{Name: "font.otf", Data: []byte("otf")},
		[]File{{Name: "a.png", ContentType: "image/png", Data: []byte("a")}, {Name: "b.png", Data: []byte("b")}},
	)
	require.NoError(t, err)
	assert.Equal(t, ID("99"), post.ID)
}

func TestID_JSON(t *testing.T) {
	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`[12, "ab", null]`), &ids))
	assert.Equal(t, []ID{"12", "ab", ""}, ids)

	out, err := json.Marshal(map[string]ID{"postId": "12", "other": "ab"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"postId": 12, "other": "ab"}`, string(out))
}
