package scheduler

import (
	"container/heap"
	"sync"
)

// jobQueue is a blocking priority queue of runnable jobs.
//
// Pop suspends the caller while the queue is empty and returns (nil, false)
// once the queue is closed, regardless of remaining contents: after a run
// reaches a terminal state, queued jobs are abandoned, not drained.
type jobQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  jobHeap
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *jobQueue) Push(j *Job) {
	q.mu.Lock()
	heap.Push(&q.items, j)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop returns the highest-priority job, blocking while the queue is empty.
// The second return is false when the queue has been closed.
func (q *jobQueue) Pop() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && len(q.items) == 0 {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	return heap.Pop(&q.items).(*Job), true
}

// Close wakes every blocked Pop. Idempotent.
func (q *jobQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// jobHeap implements heap.Interface over jobLess.
type jobHeap []*Job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return jobLess(h[i], h[j]) }
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)        { *h = append(*h, x.(*Job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
