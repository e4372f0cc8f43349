package clients

import (
	"context"
	"time"
)

// CallPolicy defines the bounded retry behavior for outbound platform calls.
// Retries use a fixed sleep interval rather than adaptive backoff: callers
// are periodic batch jobs with small attempt budgets, not latency-sensitive
// paths. Sleep and Now are injectable for tests.
type CallPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	Now         func() time.Time
}

// DefaultCallPolicy returns the production policy: 3 attempts, 1s apart.
func DefaultCallPolicy() CallPolicy {
	return CallPolicy{
		MaxAttempts: 3,
		Interval:    1 * time.Second,
	}
}

// WithAttempts returns a copy of the policy with the attempt budget replaced.
func (p CallPolicy) WithAttempts(n int) CallPolicy {
	p.MaxAttempts = n
	return p
}

func (p CallPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Caller executes platform operations under a CallPolicy.
type Caller struct {
	policy CallPolicy
}

// NewCaller creates a caller with the given policy.
func NewCaller(policy CallPolicy) *Caller {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Caller{policy: policy}
}

// Call runs fn up to MaxAttempts times. Transient provider errors sleep the
// fixed interval and retry; authentication and request errors return on the
// first occurrence. When the budget is exhausted the distinct failure codes
// seen across all attempts are aggregated into a RetryExhaustedError.
func (c *Caller) Call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var failures []ProviderError
	seen := make(map[string]bool)

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		pe, ok := AsProviderError(err)
		if !ok || !pe.Transient() {
			return err
		}

		if !seen[pe.Code] {
			seen[pe.Code] = true
			failures = append(failures, *pe)
		}

		if attempt == c.policy.MaxAttempts {
			break
		}
		if serr := c.policy.sleep(ctx, c.policy.Interval); serr != nil {
			return serr
		}
	}

	return &RetryExhaustedError{
		Operation: operation,
		Attempts:  c.policy.MaxAttempts,
		Failures:  failures,
	}
}
