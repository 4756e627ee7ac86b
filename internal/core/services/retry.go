package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Backoff bounds.
const (
	DefaultRetryBaseDelay = 200 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
)

// Retrier retries transient failures with capped exponential backoff.
// Input, consistency and data errors are returned immediately.
type Retrier struct {
	// Retries is the number of attempts after the first.
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewRetrier creates a retrier with the default backoff bounds.
func NewRetrier(retries int) Retrier {
	return Retrier{
		Retries:   retries,
		BaseDelay: DefaultRetryBaseDelay,
		MaxDelay:  DefaultRetryMaxDelay,
	}
}

// Backoff returns the delay before retry n (0-based): base<<n, capped.
func (r Retrier) Backoff(n int) time.Duration {
	if n > 30 {
		return r.MaxDelay
	}
	d := r.BaseDelay << n
	if d <= 0 || d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// Do runs op until it succeeds, fails with a non-transient error, or the
// retries are used up. A provider-supplied retry-after replaces the computed
// delay for that attempt.
func (r Retrier) Do(ctx context.Context, what string, op func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = op(ctx)
		if err == nil || !domain.IsTransient(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt >= r.Retries {
			break
		}

		delay := r.Backoff(attempt)
		if after, ok := domain.RetryAfter(err); ok {
			delay = after
		}
		logger.Debug("%s: transient failure (attempt %d/%d), retrying in %s: %v",
			what, attempt+1, r.Retries+1, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", what, r.Retries+1, err)
}
