package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrRateLimited is returned when the local rate limiter rejects a call.
var ErrRateLimited = errors.New("rate limit exceeded")

// StatusError is a non-success response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
	Err      error
}

func (e *StatusError) Error() string {
	if e.Body == "" && e.Err != nil {
		return fmt.Sprintf("%s: API error (status %d): %v", e.Provider, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryable decides retry eligibility from the status carried by err.
// Transport failures without a status are retried unless the context ended.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
