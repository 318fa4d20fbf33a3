package provider

import (
	"fmt"
	"time"
)

// StatusError is an upstream HTTP failure carrying the response status and an
// optional server-supplied retry hint.
type StatusError struct {
	Code       int
	RetryAfter *time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Code)
}

// Retryable reports whether the failure class is worth retrying: rate limits,
// timeouts, and server errors. Everything else propagates immediately.
func (e *StatusError) Retryable() bool {
	if e.Code == 429 || e.Code == 408 {
		return true
	}
	return e.Code >= 500 && e.Code <= 599
}

// RateLimited reports whether the upstream asked the caller to slow down.
func (e *StatusError) RateLimited() bool {
	return e.Code == 429
}
