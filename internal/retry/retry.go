// Package retry provides the single retry policy shared by the news
// providers and the verifier, so backoff behavior lives in one place.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// sleepFunc is the sleep function used between attempts (injectable for tests)
var sleepFunc = time.Sleep

// Policy describes a bounded-retry operation.
type Policy struct {
	MaxAttempts int           // Attempt ceiling, including the first try
	BaseDelay   time.Duration // First backoff delay; doubles each attempt
	MaxDelay    time.Duration // Backoff cap; 0 means uncapped
	Sleep       func(time.Duration) // Overrides the package sleep when set
}

// DefaultPolicy matches the provider-call contract: three attempts with
// exponential backoff starting at one second.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 8 * time.Second}
}

// Do runs op until it succeeds, exhausts the attempt ceiling, or returns an
// error the predicate classifies as permanent. The context is checked
// between attempts; in-flight operations are not interrupted.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = op()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt < attempts-1 {
			sleep := p.Sleep
			if sleep == nil {
				sleep = sleepFunc
			}
			sleep(p.delay(attempt))
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	d = d << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// StatusError carries an HTTP status through the retry predicate.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Status)
}

// IsTransient classifies an error as a transient failure worth retrying:
// HTTP 429 and 5xx, timeouts, and connection resets.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == 429 || (statusErr.Status >= 500 && statusErr.Status < 600)
	}

	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "deadline exceeded") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
