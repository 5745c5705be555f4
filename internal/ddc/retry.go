package ddc

import (
	"context"
	"time"
)

const baseBackoff = 300 * time.Millisecond

// retryTransport decorates a Transport with bounded retries for
// transient failures. Definitive "not supported" replies pass through
// on the first attempt.
type retryTransport struct {
	inner      Transport
	attempts   int
	multiplier float64
}

func withRetry(inner Transport, attempts int, multiplier float64) Transport {
	if attempts < 1 {
		attempts = 1
	}
	if multiplier <= 0 {
		multiplier = 1.0
	}

	return &retryTransport{
		inner:      inner,
		attempts:   attempts,
		multiplier: multiplier,
	}
}

func (r *retryTransport) backoff(attempt int) time.Duration {
	return time.Duration(float64(attempt+1) * r.multiplier * float64(baseBackoff))
}

func (r *retryTransport) Get(ctx context.Context, feature Feature) (FeatureValue, error) {
	var value FeatureValue
	err := r.do(ctx, func() error {
		var getErr error
		value, getErr = r.inner.Get(ctx, feature)
		return getErr
	})

	return value, err
}

func (r *retryTransport) Set(ctx context.Context, feature Feature, value int) error {
	return r.do(ctx, func() error {
		return r.inner.Set(ctx, feature, value)
	})
}

func (r *retryTransport) Capabilities(ctx context.Context) (string, error) {
	var raw string
	err := r.do(ctx, func() error {
		var capErr error
		raw, capErr = r.inner.Capabilities(ctx)
		return capErr
	})

	return raw, err
}

func (r *retryTransport) do(ctx context.Context, call func() error) error {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if err = call(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == r.attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}

	return err
}
