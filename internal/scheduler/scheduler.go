// Package scheduler runs a fixed pool of workers over a priority job queue
// with time-ordered retries.
//
// One Run covers one batch of (account, day) download jobs. Failed-before
// jobs are retried ahead of fresh ones, retries back off exponentially, and
// the first fatal error abandons the whole run. All coordination state lives
// for exactly one Run call.
package scheduler

import (
	"context"
	"sync"
	"time"

	logx "fbdownloader/pkg/logx"
)

// Config controls one scheduling run.
//
// RetryMax counts additional attempts after the first one, so the default 7
// allows 8 attempts in total before a job escalates to fatal. RetryBase is
// the backoff unit: attempt n that fails retryably is re-queued after
// RetryBase * 2^(n-1).
type Config struct {
	Workers   int
	RetryMax  int
	RetryBase time.Duration
}

const (
	defaultRetryMax  = 7
	defaultRetryBase = time.Minute
)

func (c Config) withDefaults() Config {
	if c.RetryMax <= 0 {
		c.RetryMax = defaultRetryMax
	}
	if c.RetryBase <= 0 {
		c.RetryBase = defaultRetryBase
	}
	return c
}

// Executor performs the download+persist side effect for one job.
//
// Implementations classify their failures with Transient or RateLimited;
// unmarked errors abort the run.
type Executor interface {
	FetchAndPersist(ctx context.Context, job *Job) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, job *Job) error

func (f ExecutorFunc) FetchAndPersist(ctx context.Context, job *Job) error { return f(ctx, job) }

type Scheduler struct {
	cfg  Config
	exec Executor
	log  logx.Logger
}

func New(cfg Config, exec Executor, log logx.Logger) *Scheduler {
	return &Scheduler{cfg: cfg.withDefaults(), exec: exec, log: log}
}

// runState is the shared per-run state: the remaining-job count, the first
// fatal error, and the stopping flag. It is guarded by its own lock,
// independent of the two queue locks.
type runState struct {
	mu   sync.Mutex
	cond *sync.Cond

	remaining int
	err       error
	stopping  bool
}

func newRunState(remaining int) *runState {
	st := &runState{remaining: remaining}
	st.cond = sync.NewCond(&st.mu)
	return st
}

// jobDone records one terminal success and wakes the controller when the
// last job resolves.
func (st *runState) jobDone() {
	st.mu.Lock()
	st.remaining--
	done := st.remaining == 0
	st.mu.Unlock()
	if done {
		st.cond.Broadcast()
	}
}

// fail records the first fatal error; later ones are dropped.
func (st *runState) fail(err error) {
	st.mu.Lock()
	if st.err == nil {
		st.err = err
	}
	st.mu.Unlock()
	st.cond.Broadcast()
}

// wait blocks until the run reaches a terminal condition and returns the
// fatal error, if any.
func (st *runState) wait() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for st.remaining > 0 && st.err == nil && !st.stopping {
		st.cond.Wait()
	}
	return st.err
}

func (st *runState) beginShutdown() {
	st.mu.Lock()
	st.stopping = true
	st.mu.Unlock()
	st.cond.Broadcast()
}

// Run executes all jobs and blocks until every one resolved successfully or
// a fatal error abandoned the run. On a fatal error the first cause is
// returned and the remaining jobs are dropped without further attempts.
//
// Cancelling ctx aborts the run like a fatal error.
func (s *Scheduler) Run(ctx context.Context, jobs []*Job) error {
	if s.cfg.Workers < 1 {
		return ErrNoWorkers
	}
	if len(jobs) == 0 {
		return nil
	}

	queue := newJobQueue()
	retries := newRetryQueue()
	state := newRunState(len(jobs))
	stop := make(chan struct{})

	for _, j := range jobs {
		queue.Push(j)
	}

	s.log.Info("scheduling run started",
		logx.Int("jobs", len(jobs)),
		logx.Int("workers", s.cfg.Workers))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		retries.dispatch(queue, stop)
	}()
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			s.worker(ctx, idx, queue, retries, state, stop)
		}(i)
	}

	// Propagate external cancellation into the run. The watcher exits with
	// the run so it never outlives Run.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			state.fail(ctx.Err())
		case <-watchDone:
		}
	}()

	err := state.wait()

	// Terminal: wake both wait points exactly once, then join everything.
	// Workers blocked in Pop see the closed queue; the dispatcher and any
	// worker sleeping through a rate-limit pause see the closed stop channel.
	state.beginShutdown()
	close(stop)
	queue.Close()
	close(watchDone)
	wg.Wait()

	if err != nil {
		s.log.Error("scheduling run failed", logx.Err(err))
		return err
	}
	s.log.Info("scheduling run completed", logx.Int("jobs", len(jobs)))
	return nil
}
