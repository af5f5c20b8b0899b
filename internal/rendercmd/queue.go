// Package rendercmd provides the render command queue: a single goroutine,
// pinned to one OS thread, that owns GPU command recording and submission.
//
// Callers hand work to the queue and either forget about it (Enqueue) or
// block until it has run (SubmitAndWait, Flush). Work runs strictly in
// submission order.
package rendercmd

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when work is submitted to a closed queue.
var ErrClosed = errors.New("rendercmd: queue is closed")

// defaultQueueSize is the buffer size of the work channel.
const defaultQueueSize = 64

// Queue is a single-threaded render command queue.
//
// Thread safety: Queue is safe for concurrent use. The work itself always
// executes on the queue's goroutine, which is locked to its OS thread for
// the lifetime of the queue.
type Queue struct {
	// work holds pending work items in FIFO order.
	work chan func()

	// done signals the worker to stop.
	done chan struct{}

	// wg waits for the worker to finish.
	wg sync.WaitGroup

	// mu orders sends against Close so nothing is stranded in work after
	// the worker has drained it.
	mu sync.RWMutex

	// running indicates whether the queue is accepting work.
	running atomic.Bool

	// executed counts work items that have run.
	executed atomic.Uint64
}

// New creates a queue with the given buffer size and starts its worker.
// If size is 0 or negative, a default of 64 is used.
func New(size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}

	q := &Queue{
		work: make(chan func(), size),
		done: make(chan struct{}),
	}
	q.running.Store(true)

	q.wg.Add(1)
	go q.loop()

	return q
}

// loop is the worker goroutine.
func (q *Queue) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer q.wg.Done()

	for {
		select {
		case <-q.done:
			q.drain()
			return
		case fn := <-q.work:
			q.run(fn)
		}
	}
}

// drain executes all remaining queued work.
func (q *Queue) drain() {
	for {
		select {
		case fn := <-q.work:
			q.run(fn)
		default:
			return
		}
	}
}

func (q *Queue) run(fn func()) {
	if fn == nil {
		return
	}
	fn()
	q.executed.Add(1)
}

// Enqueue schedules fn on the render thread without waiting for it.
// It blocks only while the queue buffer is full.
func (q *Queue) Enqueue(fn func()) error {
	if fn == nil {
		return nil
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running.Load() {
		return ErrClosed
	}
	q.work <- fn
	return nil
}

// SubmitAndWait schedules fn on the render thread and blocks until it has
// run, returning its error.
//
// ctx bounds only the caller's wait: once fn has been queued it runs even if
// ctx is cancelled.
// SubmitAndWait must not be called from work already running on the queue.
func (q *Queue) SubmitAndWait(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result := make(chan error, 1)
	err := q.Enqueue(func() {
		result <- fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every piece of work enqueued before the call has run.
func (q *Queue) Flush(ctx context.Context) error {
	return q.SubmitAndWait(ctx, func() error { return nil })
}

// Close stops accepting work, runs everything already queued and stops the
// worker. Close is safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.running.CompareAndSwap(true, false) {
		q.mu.Unlock()
		return
	}
	close(q.done)
	q.mu.Unlock()
	q.wg.Wait()
}

// IsRunning returns true if the queue is still accepting work.
func (q *Queue) IsRunning() bool {
	return q.running.Load()
}

// Executed returns the number of work items that have run.
func (q *Queue) Executed() uint64 {
	return q.executed.Load()
}

// Pending returns the approximate number of queued work items.
func (q *Queue) Pending() int {
	return len(q.work)
}
