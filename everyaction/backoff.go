// ABOUTME: Exponential backoff schedule with jitter for API retries
// ABOUTME: Wraps sethvargo/go-retry with the factor*2^n plus full-jitter-and-half delay
package everyaction

import (
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultMaxAttempts is the total number of tries, including the first.
	DefaultMaxAttempts = 7
	// DefaultBackoffFactor is the delay before the first retry, before jitter.
	DefaultBackoffFactor = 2 * time.Second
)

// newBackoff returns a schedule allowing maxAttempts tries in total.
// Retry n (0-based) waits jitter(factor * 2^n).
func newBackoff(factor time.Duration, maxAttempts int, randN func(int64) int64) retry.Backoff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if randN == nil {
		randN = rand.Int64N
	}

	var n uint
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		d := factor << n
		// 2^30 keeps factor*2^n inside int64 for any sane factor
		if n < 30 {
			n++
		}
		return jitter(d, randN), false
	})

	return retry.WithMaxRetries(uint64(maxAttempts-1), next)
}

// jitter returns a uniformly random delay in [0, d) plus d/2.
func jitter(d time.Duration, randN func(int64) int64) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(randN(int64(d))) + d/2
}
