package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryConnect runs op until it succeeds or tries attempts are used up,
// backing off exponentially between attempts.
func retryConnect(ctx context.Context, tries uint, op func() error) error {
	if tries == 0 {
		tries = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	return err
}
