// Package fetch wraps upstream calls with classification-aware retry and
// full-jitter backoff shared by every provider call.
package fetch

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"tokenScope/internal/provider"
)

// Policy controls retry behavior for one wrapped call.
type Policy struct {
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff before jitter.
	MaxDelay time.Duration
	// MaxRetries bounds retries of timeouts, server errors, and network
	// failures. Rate-limit responses do not consume this budget.
	MaxRetries int
	// RateLimitCap optionally bounds rate-limit retries. Zero means
	// uncapped, matching upstreams that stop throttling once the caller
	// backs off.
	RateLimitCap int
	// OnRetry, when set, is invoked once per scheduled retry.
	OnRetry func()
}

// DefaultPolicy mirrors the worker defaults: 300ms base, 5s cap, 5 retries.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:  300 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		MaxRetries: 5,
	}
}

func (p Policy) normalized() Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 300 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// Do runs fn until it succeeds, a non-retryable failure surfaces, or the
// retry budget is spent. Rate-limit responses are treated as an external
// signal to slow down rather than a failure to give up on.
func Do[T any](ctx context.Context, policy Policy, logger *zap.Logger, fn func(context.Context) (T, error)) (T, error) {
	policy = policy.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}

	var zero T
	attempt := 0
	failures := 0
	rateLimited := 0

	for {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		class, hint := classify(err)
		switch class {
		case classFatal:
			return zero, err
		case classRateLimited:
			rateLimited++
			if policy.RateLimitCap > 0 && rateLimited > policy.RateLimitCap {
				return zero, err
			}
		default:
			failures++
			if failures > policy.MaxRetries {
				return zero, err
			}
		}

		delay := backoffDelay(policy, attempt, hint)
		if policy.OnRetry != nil {
			policy.OnRetry()
		}
		logger.Warn("upstream retry",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Bool("rate_limited", class == classRateLimited),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

type failureClass int

const (
	classFatal failureClass = iota
	classRetryable
	classRateLimited
)

// classify buckets a failure by response status: 429 is rate-limited,
// 408/5xx/no-status are retryable, anything else is fatal.
func classify(err error) (failureClass, *time.Duration) {
	var statusErr *provider.StatusError
	if !errors.As(err, &statusErr) {
		// No status at all: network-level failure.
		return classRetryable, nil
	}
	if statusErr.RateLimited() {
		return classRateLimited, statusErr.RetryAfter
	}
	if statusErr.Retryable() {
		return classRetryable, statusErr.RetryAfter
	}
	return classFatal, nil
}

// backoffDelay picks the server hint when present, else exponential backoff
// capped at MaxDelay, then uniformly randomizes in [0, delay] so concurrent
// callers do not retry in lockstep.
func backoffDelay(policy Policy, attempt int, hint *time.Duration) time.Duration {
	var delay time.Duration
	if hint != nil {
		delay = *hint
		if delay < 0 {
			delay = 0
		}
	} else {
		delay = policy.BaseDelay
		for i := 0; i < attempt && delay < policy.MaxDelay; i++ {
			delay *= 2
		}
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay) + 1))
}
