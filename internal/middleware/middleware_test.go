package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/oasis-bot/internal/idempotency"
	"github.com/Proton-105/oasis-bot/internal/ratelimit"
	"github.com/Proton-105/oasis-bot/internal/testutil"
	"github.com/Proton-105/oasis-bot/pkg/config"
	"github.com/Proton-105/oasis-bot/pkg/logger"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func counting(n *int) func(telebot.Context) error {
	return func(telebot.Context) error {
		*n++
		return nil
	}
}

func TestCommandName(t *testing.T) {
	photo := testutil.NewMessage(1, "")
	photo.Msg.Photo = &telebot.Photo{}

	testCases := []struct {
		name string
		ctx  telebot.Context
		want string
	}{
		{name: "command with args", ctx: testutil.NewMessage(1, "/search red lamp"), want: "/search"},
		{name: "command with bot name", ctx: testutil.NewMessage(1, "/upload@oasis_bot"), want: "/upload"},
		{name: "callback", ctx: testutil.NewCallback(1, 2, "buy:42"), want: "cb:buy"},
		{name: "free text", ctx: testutil.NewMessage(1, "a title"), want: "text"},
		{name: "upload", ctx: photo, want: "file"},
		{name: "empty", ctx: testutil.NewMessage(1, ""), want: "unknown"},
		{name: "nil", ctx: nil, want: "unknown"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CommandName(tc.ctx))
		})
	}
}

func TestIdempotency_SkipsRedeliveredUpdate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	manager := idempotency.NewManager(idempotency.NewRedisStore(rdb, discard), discard)
	calls := 0
	handler := Idempotency(manager, idempotency.DefaultTTL, discard)(counting(&calls))

	require.NoError(t, handler(testutil.NewMessage(7, "/home")))
	require.NoError(t, handler(testutil.NewMessage(7, "/home")))
	assert.Equal(t, 1, calls)

	// A second tap on the same button is a new callback query.
	require.NoError(t, handler(testutil.NewCallback(7, 3, "buy:1")))
	second := testutil.NewCallback(7, 3, "buy:1")
	second.CB.ID = "another-query"
	require.NoError(t, handler(second))
	assert.Equal(t, 3, calls)
}

func TestIdempotency_NilManagerPassesThrough(t *testing.T) {
	calls := 0
	handler := Idempotency(nil, 0, discard)(counting(&calls))

	require.NoError(t, handler(testutil.NewMessage(7, "/home")))
	require.NoError(t, handler(testutil.NewMessage(7, "/home")))
	assert.Equal(t, 2, calls)
}

func TestRateLimitMiddleware(t *testing.T) {
	rules, err := ratelimit.NewRules(config.RateLimitConfig{
		PerUser:   config.RateLimitRule{Limit: 100, Window: "1m"},
		Commands:  config.CommandRateLimits{Buy: config.RateLimitRule{Limit: 1, Window: "1m"}},
		Whitelist: []int64{99},
	})
	require.NoError(t, err)

	mw := NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(), rules, discard)

	t.Run("buy button is limited with an alert", func(t *testing.T) {
		calls := 0
		handler := mw.Handle(counting(&calls))

		require.NoError(t, handler(testutil.NewCallback(1, 2, "buy:1")))
		blocked := testutil.NewCallback(1, 2, "buy:1")
		require.NoError(t, handler(blocked))

		assert.Equal(t, 1, calls)
		require.NotNil(t, blocked.LastResponse())
		assert.True(t, blocked.LastResponse().ShowAlert)
	})

	t.Run("commands without a rule pass", func(t *testing.T) {
		calls := 0
		handler := mw.Handle(counting(&calls))
		for i := 0; i < 5; i++ {
			require.NoError(t, handler(testutil.NewMessage(2, "/home")))
		}
		assert.Equal(t, 5, calls)
	})

	t.Run("whitelisted users are never limited", func(t *testing.T) {
		calls := 0
		handler := mw.Handle(counting(&calls))
		for i := 0; i < 3; i++ {
			require.NoError(t, handler(testutil.NewCallback(99, 2, "buy:1")))
		}
		assert.Equal(t, 3, calls)
	})
}

func TestRequestLogger(t *testing.T) {
	handler := logger.Middleware(RequestLogger(discard)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, logger.CorrelationIDFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
