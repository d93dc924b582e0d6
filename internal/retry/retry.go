package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a small, composable retry policy: a bounded number of attempts
// with exponential backoff between them. Keeping failure semantics here (and
// out of the call sites) makes retry-then-degrade behavior testable alone.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Once retries a single time after the first failure.
func Once() Policy {
	return Policy{MaxAttempts: 2, InitialInterval: 200 * time.Millisecond, MaxInterval: 2 * time.Second}
}

// Do runs op under the policy, honoring ctx cancellation between attempts.
// The last error is returned when every attempt fails.
func Do(ctx context.Context, p Policy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, attempts-1), ctx))
}

// Permanent marks err so Do stops retrying immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
