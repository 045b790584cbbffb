package broker

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy returns the exponential-backoff policy callers should apply
// when a broker operation returns ErrBrokerUnavailable: base 250ms, cap
// 30s, full jitter, retried until ctx is cancelled.
func RetryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // caller's context governs the retry lifetime
	b.RandomizationFactor = 1.0
	return backoff.WithContext(b, ctx)
}

// WithRetry runs op, retrying on ErrBrokerUnavailable using RetryPolicy.
// Any other error — including ErrNoJobAvailable — is returned immediately,
// since those are not transient broker failures.
func WithRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrBrokerUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, RetryPolicy(ctx))
}
