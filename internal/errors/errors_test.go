package errors

import (
	"context"
	stdErrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithRetry(t *testing.T) {
	testCases := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "succeeds first time", failures: 0, err: nil, wantCalls: 1},
		{name: "retryable then success", failures: 2, err: NewUpstreamError("listing", nil), wantCalls: 3},
		{name: "non retryable stops", failures: 5, err: NewValidationError("bad"), wantCalls: 1, wantErr: true},
		{name: "gives up after max retries", failures: 10, err: NewUpstreamError("listing", nil), wantCalls: MaxRetries + 1, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= tc.failures {
					return tc.err
				}
				return nil
			})

			assert.Equal(t, tc.wantCalls, calls)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := WithRetry(ctx, func() error {
		return NewUpstreamError("user", nil)
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := NewUpstreamError("payment", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upstream payment error")
	assert.True(t, IsRetryable(err))
}

func TestHandler_Handle(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)

	msg, retryable := h.Handle(context.Background(), NewAuthError("no session"))
	assert.Equal(t, "Please log in first with /login.", msg)
	assert.False(t, retryable)

	msg, retryable = h.Handle(context.Background(), stdErrors.New("boom"))
	assert.Equal(t, defaultUserMessage, msg)
	assert.False(t, retryable)

	msg, _ = h.Handle(context.Background(), nil)
	assert.Empty(t, msg)
}

func TestDo_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", NewUpstreamError("listing", nil)
		}
		return "post", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "post", v)
	assert.Equal(t, 2, calls)
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoff(attempt)
		assert.LessOrEqual(t, d, MaxBackoff)
		assert.GreaterOrEqual(t, d, InitialBackoff)
	}
}

func TestLevelOf(t *testing.T) {
	testCases := []struct {
		name      string
		severity  Severity
		cancelled bool
		want      slog.Level
	}{
		{name: "low", severity: SeverityLow, want: slog.LevelInfo},
		{name: "medium", severity: SeverityMedium, want: slog.LevelWarn},
		{name: "high", severity: SeverityHigh, want: slog.LevelError},
		{name: "critical", severity: SeverityCritical, want: slog.LevelError},
		{name: "cancelled wins", severity: SeverityCritical, cancelled: true, want: slog.LevelDebug},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, levelOf(tc.severity, tc.cancelled))
		})
	}
}
