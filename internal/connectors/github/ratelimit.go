package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ProactiveRate keeps a long fetch under the authenticated 5000 requests
// per hour.
const ProactiveRate = 1.2

// reserve is the remaining quota below which Wait holds until the reset.
const reserve = 5

// maxResetWait caps a reset wait; anything longer is left to the retry loop.
const maxResetWait = time.Minute

const (
	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset" // Unix seconds
)

// Quota is the request allowance GitHub last reported. Limit and Remaining
// are -1 until a response has been seen.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// exhausted reports whether the quota is spent and not yet reset at now.
func (q Quota) exhausted(now time.Time) bool {
	return q.Remaining == 0 && now.Before(q.Reset)
}

// RateLimiter spaces requests with a token bucket and holds back when the
// reported quota runs low.
type RateLimiter struct {
	bucket *rate.Limiter

	mu    sync.Mutex
	quota Quota
}

// NewRateLimiter allows rps requests per second; rps <= 0 disables spacing.
func NewRateLimiter(rps float64) *RateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimiter{
		bucket: rate.NewLimiter(limit, 1),
		quota:  Quota{Limit: -1, Remaining: -1},
	}
}

// Wait blocks until the next request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}
	q := r.Quota()
	if q.Remaining < 0 || q.Remaining >= reserve {
		return nil
	}
	wait := min(time.Until(q.Reset), maxResetWait)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observe records the quota headers of resp. Missing or malformed headers
// leave the previous values.
func (r *RateLimiter) Observe(resp *http.Response) {
	if resp == nil {
		return
	}
	h := resp.Header
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, err := strconv.Atoi(h.Get(HeaderRateLimit)); err == nil {
		r.quota.Limit = v
	}
	if v, err := strconv.Atoi(h.Get(HeaderRateRemaining)); err == nil {
		r.quota.Remaining = v
	}
	if v, err := strconv.ParseInt(h.Get(HeaderRateReset), 10, 64); err == nil {
		r.quota.Reset = time.Unix(v, 0)
	}
}

func (r *RateLimiter) Quota() Quota {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quota
}
