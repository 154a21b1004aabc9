package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type httpStatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is the server's requested wait; zero when absent.
	RetryAfter time.Duration
}

func newHTTPStatusError(resp *http.Response, body []byte) *httpStatusError {
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	return &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body)), RetryAfter: retryAfter}
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, snippet(e.Body))
}

func (e *httpStatusError) transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// emptyContentError is a 2xx reply with no usable text, usually a provider
// hiccup or a content filter. Retried like a transient failure.
type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

func (c *Client) retryAttempts() int {
	return max(c.retry.attempts, 1)
}

// retryDelay reports whether err after the given attempt is worth another try
// and how long to wait first. Cancellation and 4xx other than 408/429 are
// permanent.
func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var (
		statusErr *httpStatusError
		emptyErr  *emptyContentError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &statusErr):
		if !statusErr.transient() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return c.capDelay(statusErr.RetryAfter), true
		}
	case errors.As(err, &emptyErr):
	case errors.As(err, &netErr) && netErr.Timeout():
	default:
		return 0, false
	}
	return c.backoffDelay(attempt), true
}

// backoffDelay is base * 2^(attempt-1), capped at the max delay.
func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retry.baseDelay <= 0 {
		return 0
	}
	delay := c.retry.baseDelay
	for i := 1; i < attempt && (c.retry.maxDelay <= 0 || delay < c.retry.maxDelay); i++ {
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if c.retry.maxDelay > 0 {
		delay = min(delay, c.retry.maxDelay)
	}
	return max(delay, 0)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if c.retry.sleep != nil {
		c.retry.sleep(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}
