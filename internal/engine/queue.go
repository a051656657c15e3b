package engine

import (
	"sync"
)

// groupQueue is an unbounded FIFO of jobs drained by one goroutine, so jobs for
// the same group never overlap.
type groupQueue struct {
	mu     sync.Mutex
	jobs   []func()
	closed bool
	signal chan struct{} // buffered, size 1
}

func newGroupQueue() *groupQueue {
	return &groupQueue{signal: make(chan struct{}, 1)}
}

// enqueue adds a job. Returns false once the queue is closed.
func (q *groupQueue) enqueue(job func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, job)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *groupQueue) tryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job, true
}

// run drains the queue until it is closed and empty.
func (q *groupQueue) run() {
	for {
		if job, ok := q.tryDequeue(); ok {
			job()
			continue
		}

		q.mu.Lock()
		done := q.closed && len(q.jobs) == 0
		q.mu.Unlock()
		if done {
			return
		}
		<-q.signal
	}
}

func (q *groupQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// queues owns one groupQueue per group ID, started on first use.
type queues struct {
	mu      sync.Mutex
	byGroup map[string]*groupQueue
	closed  bool
	wg      sync.WaitGroup
}

func newQueues() *queues {
	return &queues{byGroup: make(map[string]*groupQueue)}
}

// do runs fn on the group's queue and waits for it to finish. Jobs already
// queued for the group run first.
func (qs *queues) do(groupID string, fn func()) error {
	qs.mu.Lock()
	if qs.closed {
		qs.mu.Unlock()
		return ErrClosed
	}
	q, ok := qs.byGroup[groupID]
	if !ok {
		q = newGroupQueue()
		qs.byGroup[groupID] = q
		qs.wg.Add(1)
		go func() {
			defer qs.wg.Done()
			q.run()
		}()
	}
	qs.mu.Unlock()

	done := make(chan struct{})
	if !q.enqueue(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

// close stops accepting jobs and waits for queued jobs to finish.
func (qs *queues) close() {
	qs.mu.Lock()
	if qs.closed {
		qs.mu.Unlock()
		return
	}
	qs.closed = true
	for _, q := range qs.byGroup {
		q.close()
	}
	qs.mu.Unlock()

	qs.wg.Wait()
}
