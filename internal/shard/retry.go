package shard

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/tidefeed/tidefeed/internal/ocf"
)

// ErrTransientFetch wraps a fetch failure that outlived the retry budget.
// The pull may be retried later from the same confirmed cursor.
var ErrTransientFetch = errors.New("shard: transient fetch failure")

// RetryPolicy bounds fetch retries. Backoff is exponential with full jitter,
// capped at Cap.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Factor      float64
	// Timeout bounds each individual fetch attempt.
	Timeout time.Duration
}

// DefaultRetryPolicy mirrors what the storage services tolerate well.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Base:        200 * time.Millisecond,
		Cap:         10 * time.Second,
		Factor:      2.0,
		Timeout:     30 * time.Second,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	if cap := float64(p.Cap); p.Cap > 0 && d > cap {
		d = cap
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// withRetry runs op under the policy, sleeping context-aware between
// attempts. Non-retriable errors pass through untouched.
func withRetry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		actx := ctx
		cancel := context.CancelFunc(func() {})
		if p.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err := op(actx)
		cancel()
		if err == nil {
			return nil
		}
		if !retriable(err) || ctx.Err() != nil {
			return err
		}
		last = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
	return fmt.Errorf("%w: %d attempts: %v", ErrTransientFetch, attempts, last)
}

func retriable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ocf.ErrCorruptBlock), errors.Is(err, ocf.ErrSchemaMismatch):
		return false
	}
	// Deadline overruns of a single attempt count as transient.
	return true
}
