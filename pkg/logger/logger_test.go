package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskingHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithCorrelationID(context.Background(), "corr-1")
	log.With(slog.String("session_id", "sess_123")).InfoContext(ctx, "linked",
		slog.String("token", "eyJhbGci"),
		slog.String("user_id", "user_1"),
		slog.Group("wallet", slog.String("signature", "0xdead"), slog.String("address", "0xabc")),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "***", record["token"])
	assert.Equal(t, "***", record["session_id"])
	assert.Equal(t, "user_1", record["user_id"])
	assert.Equal(t, "corr-1", record["correlation_id"])

	wallet, ok := record["wallet"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "***", wallet["signature"])
	assert.Equal(t, "0xabc", wallet["address"])
}

func TestParseLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for input, want := range testCases {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestMiddleware_PropagatesCorrelationID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(CorrelationHeader, "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(CorrelationHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "abc", seen)
}
