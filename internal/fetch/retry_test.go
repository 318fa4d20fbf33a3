package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokenScope/internal/provider"
)

func fastPolicy() Policy {
	return Policy{
		BaseDelay:  time.Microsecond,
		MaxDelay:   10 * time.Microsecond,
		MaxRetries: 5,
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), nil, func(context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 || calls != 1 {
		t.Fatalf("got %d after %d calls", got, calls)
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), nil, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &provider.StatusError{Code: 503}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestDoStopsAfterBudget(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 2

	calls := 0
	_, err := Do(context.Background(), policy, nil, func(context.Context) (int, error) {
		calls++
		return 0, &provider.StatusError{Code: 500}
	})

	var statusErr *provider.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != 500 {
		t.Fatalf("expected status error, got %v", err)
	}
	// Initial call plus two retries.
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), nil, func(context.Context) (int, error) {
		calls++
		return 0, &provider.StatusError{Code: 404}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected immediate failure, got err=%v calls=%d", err, calls)
	}
}

func TestDoRateLimitDoesNotConsumeBudget(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 1

	calls := 0
	got, err := Do(context.Background(), policy, nil, func(context.Context) (int, error) {
		calls++
		if calls < 5 {
			return 0, &provider.StatusError{Code: 429}
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 || calls != 5 {
		t.Fatalf("got %d after %d calls", got, calls)
	}
}

func TestDoRateLimitCap(t *testing.T) {
	policy := fastPolicy()
	policy.RateLimitCap = 3

	calls := 0
	_, err := Do(context.Background(), policy, nil, func(context.Context) (int, error) {
		calls++
		return 0, &provider.StatusError{Code: 429}
	})
	if err == nil {
		t.Fatalf("expected error once cap is spent")
	}
	// Initial call plus three capped retries.
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestDoRetriesNetworkFailures(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), nil, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})
	if err == nil {
		t.Fatalf("expected error after budget")
	}
	if calls != 6 {
		t.Fatalf("expected 6 calls, got %d", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, Policy{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxRetries: 5}, nil, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, &provider.StatusError{Code: 500}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	policy := Policy{BaseDelay: 300 * time.Millisecond, MaxDelay: 5 * time.Second}

	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 50; i++ {
			delay := backoffDelay(policy, attempt, nil)
			if delay < 0 || delay > policy.MaxDelay {
				t.Fatalf("attempt %d: delay %v outside [0, %v]", attempt, delay, policy.MaxDelay)
			}
		}
	}

	hint := 2 * time.Second
	for i := 0; i < 50; i++ {
		delay := backoffDelay(policy, 0, &hint)
		if delay < 0 || delay > hint {
			t.Fatalf("hinted delay %v outside [0, %v]", delay, hint)
		}
	}
}
