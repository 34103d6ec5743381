package scheduler

import (
	"context"
	"fmt"
	"time"

	logx "fbdownloader/pkg/logx"
)

// worker drains the job queue until shutdown. Each attempt bumps the job's
// try count first, so the count is strictly ordered within one job's
// lifetime (a job instance is never held by two workers at once).
func (s *Scheduler) worker(ctx context.Context, idx int, queue *jobQueue, retries *retryQueue, state *runState, stop <-chan struct{}) {
	log := s.log.With(logx.Int("worker", idx))

	for {
		job, ok := queue.Pop()
		if !ok {
			return
		}

		job.Tries++
		start := time.Now()
		err := s.exec.FetchAndPersist(ctx, job)

		switch {
		case err == nil:
			log.Debug("job done",
				logx.String("job", job.String()),
				logx.Int("tries", job.Tries),
				logx.Duration("dur", time.Since(start)))
			state.jobDone()

		case IsRetryable(err) && job.Tries <= s.cfg.RetryMax:
			delay := s.backoff(job.Tries)
			retries.Schedule(job, time.Now().Add(delay))
			log.Warn("job failed, retry scheduled",
				logx.String("job", job.String()),
				logx.Int("attempt", job.Tries),
				logx.Duration("delay", delay),
				logx.Err(err))

			if IsRateLimited(err) {
				// The API throttled us, so more requests from this worker
				// would be throttled too: sit out the backoff before taking
				// the next job. Other workers keep running and may still hit
				// the limit on their own.
				if !sleep(delay, stop) {
					return
				}
			}

		case IsRetryable(err):
			state.fail(fmt.Errorf("job %s: retries exhausted after %d attempts: %w", job, job.Tries, err))

		default:
			state.fail(fmt.Errorf("job %s: %w", job, err))
		}
	}
}

// backoff returns the delay before re-attempting a job that has failed
// `tries` times: RetryBase doubled per previous attempt.
func (s *Scheduler) backoff(tries int) time.Duration {
	d := s.cfg.RetryBase
	for i := 1; i < tries; i++ {
		d *= 2
	}
	return d
}

// sleep waits for d, returning false if stop closes first.
func sleep(d time.Duration, stop <-chan struct{}) bool {
	tmr := time.NewTimer(d)
	select {
	case <-stop:
		if !tmr.Stop() {
			<-tmr.C
		}
		return false
	case <-tmr.C:
		return true
	}
}
