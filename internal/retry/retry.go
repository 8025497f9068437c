// Package retry implements the bounded exponential-backoff-with-full-jitter
// policy providers use when an upstream call times out or returns a 5xx
// (spec §4.2), grounded on original_source/src/rtx/utils.py's AsyncRetry.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Policy configures a retry sequence.
type Policy struct {
	Attempts int           // total attempts including the first, >= 1
	Base     time.Duration // base delay for the backoff curve
	Max      time.Duration // cap on any single delay
}

// DefaultPolicy matches spec.md §4.2's defaults: 2 retries (3 attempts).
var DefaultPolicy = Policy{Attempts: 3, Base: 250 * time.Millisecond, Max: 5 * time.Second}

// Retryable classifies whether an error should trigger another attempt.
type Retryable func(error) bool

// Do runs fn up to Policy.Attempts times, sleeping a full-jitter
// exponential backoff between attempts, stopping early when ctx is done
// or fn returns a non-retryable error. It returns the last error seen.
func Do(ctx context.Context, policy Policy, retryable Retryable, fn func(context.Context) error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "retry: context done")
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == policy.Attempts-1 {
			break
		}

		delay := backoff(policy, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), "retry: context done while waiting")
		case <-timer.C:
		}
	}
	return errors.Wrap(lastErr, "retry: attempts exhausted")
}

// backoff computes a full-jitter exponential delay: a uniform draw from
// [0, min(max, base*2^attempt)].
func backoff(policy Policy, attempt int) time.Duration {
	ceiling := policy.Base << uint(attempt)
	if ceiling <= 0 || ceiling > policy.Max {
		ceiling = policy.Max
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling)))
}
