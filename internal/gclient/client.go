// Package gclient wraps the Google Workspace APIs with per-call service
// construction, token attachment, retry with backoff and error
// classification.
package gclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/auth"
)

// RetryPolicy bounds the retry loop: transient failures are retried with
// exponential backoff and jitter until either budget runs out.
type RetryPolicy struct {
	MaxAttempts     int
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	CallTimeout     time.Duration
}

// DefaultRetryPolicy bounds a request to four attempts inside 30 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		MaxElapsed:      30 * time.Second,
		InitialInterval: 500 * time.Millisecond,
		CallTimeout:     60 * time.Second,
	}
}

// Client issues authenticated calls on behalf of handlers. Tokens come from
// the manager's TokenSource; an expired token triggers its single-flight
// refresh before the request leaves.
type Client struct {
	tokens *auth.Manager
	policy RetryPolicy
	extra  []option.ClientOption
}

// Option configures the client.
type Option func(*Client)

// WithRetryPolicy overrides the default request budget.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithClientOptions appends Google API client options (endpoint and HTTP
// client overrides in tests).
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) { c.extra = append(c.extra, opts...) }
}

// New creates a client backed by the token manager.
func New(tokens *auth.Manager, opts ...Option) *Client {
	c := &Client{
		tokens: tokens,
		policy: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) apiOptions(ctx context.Context, accountID string) []option.ClientOption {
	opts := []option.ClientOption{
		option.WithTokenSource(c.tokens.TokenSource(ctx, accountID)),
	}
	return append(opts, c.extra...)
}

// call runs fn under the retry budget. Every attempt carries a deadline.
// HTTP 429 and 5xx plus transport errors are retried; everything else is
// surfaced immediately as a classified error.
func call[T any](ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialInterval
	bo.MaxElapsedTime = policy.MaxElapsed

	for attempt := 1; ; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if policy.CallTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.CallTimeout)
		}
		out, err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return out, nil
		}

		if !retryable(err) || attempt >= policy.MaxAttempts || ctx.Err() != nil {
			return zero, classify(op, err)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return zero, classify(op, err)
		}
		if ra, ok := retryAfter(err); ok && ra > delay {
			delay = ra
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, classify(op, ctx.Err())
		}
	}
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
	}
	if errors.Is(err, auth.ErrNoCredential) ||
		errors.Is(err, auth.ErrRefreshFailed) ||
		errors.Is(err, auth.ErrRevoked) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Timeouts and connection failures are transient by definition.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// retryAfter honors a server-supplied Retry-After header, in seconds or as
// an HTTP date.
func retryAfter(err error) (time.Duration, bool) {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return 0, false
	}

	raw := gerr.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}

	if secs, parseErr := strconv.Atoi(raw); parseErr == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, parseErr := http.ParseTime(raw); parseErr == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// classify maps a terminal call failure onto the dispatcher taxonomy.
func classify(op string, err error) *action.Error {
	switch {
	case errors.Is(err, auth.ErrNoCredential):
		return action.NewError(action.KindAuth, err, "%s: no valid credential", op).
			WithHint("call authenticate for this account, then complete_authentication")
	case errors.Is(err, auth.ErrRevoked):
		return action.NewError(action.KindAuth, err, "%s: credential revoked", op).
			WithHint("the grant was revoked; re-authenticate the account")
	case errors.Is(err, auth.ErrRefreshFailed):
		return action.NewError(action.KindAuth, err, "%s: token refresh failed", op).
			WithHint("re-authenticate the account if refreshing keeps failing")
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return action.NewError(action.KindAuth, err, "%s: access token rejected", op).
				WithHint("the token was rejected after refresh; re-authenticate the account")
		case gerr.Code == http.StatusForbidden:
			return action.NewError(action.KindAuth, err, "%s: permission denied", op).
				WithHint("the granted scopes do not cover this action; re-authenticate to grant them")
		case gerr.Code == http.StatusNotFound:
			return action.NewError(action.KindUpstream, err, "%s: resource not found", op).
				WithHint("check the identifier; the remote object may have been deleted")
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return action.NewError(action.KindUpstream, err, "%s: remote API kept failing (HTTP %d) after retries", op, gerr.Code).
				WithHint("the remote API is throttling or degraded; retry later")
		default:
			return action.NewError(action.KindUpstream, err, "%s: remote API returned HTTP %d", op, gerr.Code).
				WithHint("the request was rejected; check the error details")
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return action.NewError(action.KindTransient, err, "%s: timed out", op).
			WithHint("the remote API did not answer within the deadline; retry later")
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return action.NewError(action.KindTransient, err, "%s: network failure after retries", op).
			WithHint("connectivity to the remote API failed; retry later")
	}

	return action.NewError(action.KindUpstream, err, "%s failed", op).
		WithHint("unexpected failure in %s; check the error details", op)
}
