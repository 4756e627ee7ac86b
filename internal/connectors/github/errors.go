package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

var (
	// ErrRepoNotFound covers a missing repository, a missing branch and a
	// private repository the token cannot see; GitHub answers 404 for all three.
	ErrRepoNotFound = errors.New("github: repository or branch not found")

	ErrUnsafeArchive = errors.New("github: archive entry escapes the snapshot root")
)

// RateLimitError reports a spent quota.
type RateLimitError struct {
	Quota Quota
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit of %d exceeded, resets at %s",
		e.Quota.Limit, e.Quota.Reset.Format(time.RFC3339))
}

// APIError is a non-success GitHub reply.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: %s returned %d: %s", e.URL, e.StatusCode, e.Message)
}

// IsNotFound reports whether err means the repository or branch is missing.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	return errors.Is(err, ErrRepoNotFound)
}

func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

func transient(operation string, err error) error {
	return fmt.Errorf("%s: %w: %w", operation, domain.ErrTransient, err)
}

func retryAt(reset time.Time, err error) error {
	return &domain.RetryAfterError{After: time.Until(reset), Err: err}
}

// classify maps a go-github or transport failure onto the domain errors.
// Rate limits carry the wait until their reset.
func classify(err error, operation string, limiter *RateLimiter) error {
	var (
		primary   *gh.RateLimitError
		secondary *gh.AbuseRateLimitError
		reply     *gh.ErrorResponse
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &primary):
		q := Quota{Limit: primary.Rate.Limit, Remaining: primary.Rate.Remaining, Reset: primary.Rate.Reset.Time}
		return retryAt(q.Reset, transient(operation, &RateLimitError{Quota: q}))
	case errors.As(err, &secondary):
		return &domain.RetryAfterError{After: secondary.GetRetryAfter(), Err: transient(operation, err)}
	case errors.As(err, &reply) && reply.Response != nil:
		apiErr := &APIError{StatusCode: reply.Response.StatusCode, Message: reply.Message}
		if reply.Response.Request != nil {
			apiErr.URL = reply.Response.Request.URL.String()
		}
		return statusError(operation, apiErr, limiter)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrTransient):
		return fmt.Errorf("%s: %w", operation, err)
	default:
		// network failures and timeouts
		return transient(operation, err)
	}
}

// statusError classifies an HTTP status. GitHub signals a spent primary
// quota with 403, so a 403 is only retried when the limiter saw the quota
// reach zero.
func statusError(operation string, apiErr *APIError, limiter *RateLimiter) error {
	q := Quota{Remaining: -1, Reset: time.Now()}
	if limiter != nil {
		q = limiter.Quota()
	}
	switch code := apiErr.StatusCode; {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w: %w", operation, domain.ErrInvalidInput, ErrRepoNotFound, apiErr)
	case code == http.StatusTooManyRequests, code == http.StatusForbidden && q.exhausted(time.Now()):
		return retryAt(q.Reset, transient(operation, apiErr))
	case code >= http.StatusInternalServerError:
		return transient(operation, apiErr)
	default:
		return fmt.Errorf("%s: %w: %w", operation, domain.ErrInvalidInput, apiErr)
	}
}
