package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// retryQueue holds jobs that failed retryably, ordered by due time.
//
// A single dispatcher loop (see dispatch) moves due jobs back into the job
// queue. The loop sleeps for exactly the time until the nearest deadline and
// is woken early by new insertions or shutdown; it never ticks on a fixed
// interval.
type retryQueue struct {
	mu    sync.Mutex
	items retryHeap

	// wake is buffered so Schedule never blocks on a busy dispatcher.
	wake chan struct{}
}

func newRetryQueue() *retryQueue {
	return &retryQueue{wake: make(chan struct{}, 1)}
}

// Schedule parks a job until dueAt and nudges the dispatcher, which may now
// have an earlier deadline to sleep toward.
func (q *retryQueue) Schedule(j *Job, dueAt time.Time) {
	q.mu.Lock()
	heap.Push(&q.items, retryEntry{dueAt: dueAt, job: j})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *retryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// next reports the earliest due time, if any entry is pending.
func (q *retryQueue) next() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].dueAt, true
}

// popDue removes and returns every entry whose due time has passed.
func (q *retryQueue) popDue(now time.Time) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*Job
	for len(q.items) > 0 && !q.items[0].dueAt.After(now) {
		e := heap.Pop(&q.items).(retryEntry)
		due = append(due, e.job)
	}
	return due
}

// dispatch runs until stop closes, promoting due retries into dst.
//
// Lock order: the retry lock is always released before dst.Push takes the
// job queue lock, so the two locks are never held together.
func (q *retryQueue) dispatch(dst *jobQueue, stop <-chan struct{}) {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		for _, j := range q.popDue(time.Now()) {
			dst.Push(j)
		}

		dueAt, ok := q.next()
		if !ok {
			// Nothing pending: sleep until a new entry or shutdown.
			select {
			case <-stop:
				return
			case <-q.wake:
			}
			continue
		}

		timer.Reset(time.Until(dueAt))
		select {
		case <-stop:
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-q.wake:
			// A new entry may be due earlier; recompute the deadline.
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

type retryHeap []retryEntry

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return retryBefore(h[i], h[j]) }
func (h retryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)        { *h = append(*h, x.(retryEntry)) }
func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = retryEntry{}
	*h = old[:n-1]
	return it
}
