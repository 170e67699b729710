// Package retry provides a generic retry-with-exponential-backoff
// combinator. It wraps cenkalti/backoff so every fallible operation in the
// codebase shares one policy shape: a total try count, an initial delay and
// a multiplier (delays run d, d*b, d*b^2, ...).
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxTries is the number of times to try (not retry) before giving up.
	MaxTries uint
	// InitialDelay is the delay between the first and second attempt.
	InitialDelay time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
}

// DefaultPolicy mirrors the RPC call policy: three tries total, half a
// second before the second attempt, doubling after that.
func DefaultPolicy() Policy {
	return Policy{
		MaxTries:     3,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// Do invokes op up to p.MaxTries times, sleeping between attempts per the
// policy's schedule, and returns the last error once all tries are
// exhausted. Errors wrapped with Permanent stop the retries immediately.
// The schedule has no jitter so tests can assert exact delays.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.Multiplier = p.Multiplier
	bo.RandomizationFactor = 0

	notify := func(err error, delay time.Duration) {
		if logger != nil {
			logger.Warn("operation failed, retrying",
				"error", err,
				"delay", delay,
			)
		}
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(p.MaxTries),
		backoff.WithNotify(notify),
	)
}

// Permanent marks err as non-retryable so Do returns it without further
// attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
