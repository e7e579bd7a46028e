package blob

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// readRetries is how many times a failed read is retried (after 100ms, then 200ms).
const readRetries = 2

// newReadBackOff is replaced in tests.
var newReadBackOff = func() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     100 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Second,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// GetWithRetry opens key, retrying transient failures twice. ErrNotFound is returned at once.
func GetWithRetry(ctx context.Context, store Store, key string) (*Object, error) {
	var obj *Object
	op := func() error {
		o, err := store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		obj = o
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(newReadBackOff(), readRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return obj, nil
}
