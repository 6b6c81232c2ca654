// Package retry provides the bounded retry policy shared by outbound HTTP
// callers. Transient failures are retried with exponential backoff; failures
// wrapped with Permanent stop the attempt loop immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults applied by Default. Attempts counts the first try, so 3 attempts
// means at most 2 retries.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMultiplier   = 2.0
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// Default returns the policy used by all callers unless overridden.
func Default() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Multiplier:   DefaultMultiplier,
	}
}

// Do runs op, retrying after each transient failure until the attempt budget
// is exhausted or ctx is cancelled. The error from the last attempt is
// returned. Errors wrapped with Permanent are returned unwrapped without
// further attempts.
func (p Policy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(attempts-1)))
}

// Permanent marks err as non-retryable so Do stops without consuming the
// remaining attempt budget.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
