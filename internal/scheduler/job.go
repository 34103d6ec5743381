package scheduler

import (
	"fmt"
	"time"
)

// Job is one (account, day) download-and-persist unit of work.
//
// A job lives in exactly one place at a time: the job queue, a worker's
// current attempt, or the retry queue. Tries is bumped by the worker
// immediately before each attempt and never decreases.
type Job struct {
	AccountID   string
	Date        time.Time // calendar day; only the date part is meaningful
	Destination string

	Tries int
}

func (j *Job) String() string {
	return fmt.Sprintf("act_%s %s", j.AccountID, j.Date.Format("2006-01-02"))
}

// jobLess orders the job queue: jobs that already failed are retried ahead
// of fresh ones, and recent days are preferred over older backfill.
// Kept as a pure function so the ordering is testable on its own.
func jobLess(a, b *Job) bool {
	if a.Tries != b.Tries {
		return a.Tries > b.Tries
	}
	return a.Date.After(b.Date)
}

// retryEntry is a job parked until dueAt.
type retryEntry struct {
	dueAt time.Time
	job   *Job
}

// retryBefore orders the retry queue by earliest due time.
func retryBefore(a, b retryEntry) bool {
	return a.dueAt.Before(b.dueAt)
}
