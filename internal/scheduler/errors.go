package scheduler

import (
	"errors"
	"fmt"
)

// ErrNoWorkers is returned by Run before anything is started when the
// configured worker count is not at least 1.
var ErrNoWorkers = errors.New("scheduler: worker count must be >= 1")

// Transient marks an error as retryable.
//
// The downloader wraps transport-level failures with Transient so the
// scheduler reschedules the job instead of aborting the run. Anything not
// marked Transient or RateLimited is treated as fatal.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// RateLimited marks an error as retryable and caused by remote throttling.
//
// Besides rescheduling the job, the worker that observed it sleeps through
// the backoff before taking more work: when the API throttles one request,
// the next request would almost certainly be throttled too.
func RateLimited(err error) error {
	if err == nil {
		return nil
	}
	return rateLimitError{err: err}
}

// IsRetryable reports whether err is marked Transient or RateLimited.
func IsRetryable(err error) bool {
	var t transientError
	var r rateLimitError
	return errors.As(err, &t) || errors.As(err, &r)
}

// IsRateLimited reports whether err is marked RateLimited.
func IsRateLimited(err error) bool {
	var r rateLimitError
	return errors.As(err, &r)
}

type transientError struct{ err error }

func (e transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }
func (e transientError) Unwrap() error { return e.err }

type rateLimitError struct{ err error }

func (e rateLimitError) Error() string { return fmt.Sprintf("rate limited: %v", e.err) }
func (e rateLimitError) Unwrap() error { return e.err }
