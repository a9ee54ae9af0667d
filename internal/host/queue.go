package host

import "sync"

// taskQueue is an unbounded FIFO of tasks for the Run loop.
//
// Post may be called from any goroutine. The signal channel has a buffer
// of one so repeated posts coalesce into a single wake-up; closing it wakes
// the loop for shutdown.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a task. Returns false if the queue is closed.
func (q *taskQueue) Enqueue(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, task)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front task without blocking.
func (q *taskQueue) TryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	task := q.tasks[0]
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return task, true
}

// Wait returns a channel that signals when tasks may be available.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops accepting tasks and wakes the loop.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
