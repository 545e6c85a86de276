package queue

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrQueueClosed = errors.New("queue is closed")

// Task is one product refresh. Attempt counts previous tries of the same URL.
type Task struct {
	ID         string
	ProductID  uuid.UUID
	URL        string
	Priority   int
	Attempt    int
	EnqueuedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue hands out tasks highest priority first, FIFO within a
// priority. After Close, Pop drains what is left before reporting
// ErrQueueClosed.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	ready  chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
		ready: make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	i, _ := slices.BinarySearchFunc(q.tasks, task, func(queued, t *Task) int {
		// insert after every task with priority >= t.Priority
		if queued.Priority >= t.Priority {
			return -1
		}
		return 1
	})
	q.tasks = slices.Insert(q.tasks, i, task)
	q.wake()
	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ready:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		q.wake()
	}
	return nil
}

// wake releases every waiting Pop. Callers hold mu.
func (q *InMemoryQueue) wake() {
	close(q.ready)
	q.ready = make(chan struct{})
}
