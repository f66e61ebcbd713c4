// Package restclient builds the resty clients used for every marketplace
// backend and the identity provider. Each client carries request logging,
// upstream metrics, idempotent-read retries and a per-service circuit breaker.
package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/Proton-105/oasis-bot/pkg/config"
	"github.com/Proton-105/oasis-bot/pkg/logger"
	"github.com/Proton-105/oasis-bot/pkg/metrics"
)

const (
	defaultTimeout      = 15 * time.Second
	retryWaitTime       = 200 * time.Millisecond
	retryMaxWaitTime    = 2 * time.Second
	breakerMaxRequests  = 3
	breakerInterval     = time.Minute
	breakerOpenTimeout  = 30 * time.Second
	breakerMinRequests  = 10
	breakerFailureRatio = 0.5
	maxErrorBodyLength  = 256
)

// ErrUnavailable is returned while a service's breaker is open.
var ErrUnavailable = errors.New("service unavailable")

// Client is a resty client bound to one upstream service.
type Client struct {
	service string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	log     *slog.Logger
}

// New creates a client for service using endpoint. Only GET requests are retried.
func New(service string, endpoint config.ServiceEndpoint, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("service", service))

	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(endpoint.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		log.DebugContext(req.Context(), "==> upstream request", slog.String("method", req.Method), slog.String("url", req.URL))
		return nil
	})
	httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		req := resp.Request
		metrics.RecordUpstream(service, req.Method, strconv.Itoa(resp.StatusCode()), resp.Time())
		log.DebugContext(req.Context(), "<== upstream response",
			slog.String("method", req.Method),
			slog.String("url", req.URL),
			slog.Int("status", resp.StatusCode()),
			slog.Duration("elapsed", resp.Time()),
		)
		return nil
	})
	httpClient.OnError(func(req *resty.Request, err error) {
		metrics.RecordUpstream(service, req.Method, "transport", time.Since(req.Time))
		log.WarnContext(req.Context(), "upstream request failed", slog.String("method", req.Method), slog.String("url", req.URL), slog.Any("error", err))
	})

	if endpoint.RetryCount > 0 {
		httpClient.
			SetRetryCount(endpoint.RetryCount).
			SetRetryWaitTime(retryWaitTime).
			SetRetryMaxWaitTime(retryMaxWaitTime).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
					return false
				}
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			})
	}

	c := &Client{service: service, http: httpClient, log: log}
	c.breaker = gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        service,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= breakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// A 4xx is the caller's problem, not the service's.
			status := StatusOf(err)
			return status > 0 && status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, breakerValue(to))
			log.Warn("circuit breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	metrics.SetBreakerState(service, breakerValue(gobreaker.StateClosed))

	return c
}

func breakerValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Service returns the service name used in logs and metrics.
func (c *Client) Service() string { return c.service }

// Resty exposes the underlying client, mainly for tests that mock transport.
func (c *Client) Resty() *resty.Client { return c.http }

// R starts a request carrying ctx and the caller's correlation id.
func (c *Client) R(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.SetHeader(logger.CorrelationHeader, id)
	}
	return req
}

// Do executes req through the breaker. Any non-2xx response is returned
// together with a *StatusError so callers can branch on the status.
func (c *Client) Do(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := req.Execute(method, path)
		if err != nil {
			return resp, err
		}
		if !resp.IsSuccess() {
			return resp, newStatusError(c.service, method, path, resp)
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", c.service, ErrUnavailable)
	}
	if err != nil && StatusOf(err) == 0 {
		return resp, fmt.Errorf("%s %s %s: %w", c.service, method, path, err)
	}
	return resp, err
}

// Get is Do with GET.
func (c *Client) Get(req *resty.Request, path string) (*resty.Response, error) {
	return c.Do(req, http.MethodGet, path)
}

// Post is Do with POST.
func (c *Client) Post(req *resty.Request, path string) (*resty.Response, error) {
	return c.Do(req, http.MethodPost, path)
}

// Put is Do with PUT.
func (c *Client) Put(req *resty.Request, path string) (*resty.Response, error) {
	return c.Do(req, http.MethodPut, path)
}

// Delete is Do with DELETE.
func (c *Client) Delete(req *resty.Request, path string) (*resty.Response, error) {
	return c.Do(req, http.MethodDelete, path)
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Service string
	Method  string
	Path    string
	Status  int
	Body    string
}

func newStatusError(service, method, path string, resp *resty.Response) *StatusError {
	body := resp.String()
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength] + "..."
	}
	return &StatusError{Service: service, Method: method, Path: path, Status: resp.StatusCode(), Body: body}
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s %s: status %d", e.Service, e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s %s: status %d: %s", e.Service, e.Method, e.Path, e.Status, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.Status }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// TrimQuoted strips whitespace and one pair of surrounding double quotes.
// Several endpoints answer with a bare JSON string instead of an object.
func TrimQuoted(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unquoted, err := strconv.Unquote(s); err == nil {
			return unquoted
		}
		return s[1 : len(s)-1]
	}
	return s
}

// Decode unmarshals a JSON response body into v.
func Decode(resp *resty.Response, v any) error {
	if resp == nil {
		return errors.New("empty response")
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("decode %s %s: %w", resp.Request.Method, resp.Request.URL, err)
	}
	return nil
}
