package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/oasis-bot/pkg/logger"
	"github.com/Proton-105/oasis-bot/pkg/metrics"
)

const defaultUserMessage = "Something went wrong. Please try again later."

// Handler turns errors into log records, metrics, Sentry events and the
// text shown to the user.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle records err and returns the user message and whether retrying the
// same action may help. Errors that are not an AppError count as high
// severity with the generic message. A cancelled context is only logged.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr := &AppError{Code: "unknown", Message: err.Error(), Severity: SeverityHigh}
	var typed *AppError
	if errors.As(err, &typed) && typed != nil {
		appErr = typed
	}

	attrs := []slog.Attr{
		slog.String("code", appErr.Code),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
		slog.Any("error", err),
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	cancelled := errors.Is(err, context.Canceled)
	h.log.LogAttrs(ctx, levelOf(appErr.Severity, cancelled), "request failed", attrs...)
	metrics.RecordError(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && !cancelled && (appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical) {
		report(ctx, appErr, err)
	}

	if appErr.UserMessage == "" {
		return defaultUserMessage, appErr.Retryable
	}
	return appErr.UserMessage, appErr.Retryable
}

func levelOf(s Severity, cancelled bool) slog.Level {
	switch {
	case cancelled:
		return slog.LevelDebug
	case s == SeverityLow:
		return slog.LevelInfo
	case s == SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func report(ctx context.Context, appErr *AppError, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		sentry.CaptureException(err)
	})
}
