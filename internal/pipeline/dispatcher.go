package pipeline

import (
	"context"
	"sync"
)

// Dispatcher delivers job callbacks. The engine hands it callbacks of a
// job in order and never hands over a later job's callbacks for a page
// before the earlier job's terminal callback, so a dispatcher that keeps
// FIFO order preserves the per-page ordering guarantee.
type Dispatcher interface {
	Dispatch(fn func())
}

// DirectDispatcher runs callbacks on the worker goroutine that produced
// them. Callbacks of unrelated jobs may then run concurrently.
type DirectDispatcher struct{}

// Dispatch calls fn.
func (DirectDispatcher) Dispatch(fn func()) { fn() }

// QueueDispatcher runs every callback on the goroutine that calls Run, one
// at a time and in the order they were dispatched. It is the bridge to a
// single-threaded presentation layer.
type QueueDispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
}

// NewQueueDispatcher creates an empty QueueDispatcher.
func NewQueueDispatcher() *QueueDispatcher {
	q := &QueueDispatcher{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Dispatch appends fn to the queue. It never blocks on the consumer.
func (q *QueueDispatcher) Dispatch(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.queue = append(q.queue, fn)
	q.cond.Signal()
}

// Run executes queued callbacks until ctx is done or Close is called and
// the queue is drained.
func (q *QueueDispatcher) Run(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.closed = true
		q.queue = nil
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	for {
		q.mu.Lock()
		for len(q.queue) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.queue) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.queue[0]
		q.queue[0] = nil
		q.queue = q.queue[1:]
		q.mu.Unlock()
		fn()
	}
}

// Drain runs the callbacks queued so far on the calling goroutine and
// returns how many ran.
func (q *QueueDispatcher) Drain() int {
	q.mu.Lock()
	pending := q.queue
	q.queue = nil
	q.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
	return len(pending)
}

// Close stops accepting callbacks. Run returns once the queue is empty.
func (q *QueueDispatcher) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
