// Package queue carries user-facing notices from pipelines to the dispatcher.
//
// Producers are pipeline transitions, which must never block, so Enqueue
// fails fast when the buffer is full.
package queue

import (
	"context"
	"sync"

	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Notice is the payload flowing through the queue.
type Notice = model.Notice

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a notice. Returns ErrFull or ErrClosed when it was not queued.
	Enqueue(ctx context.Context, n Notice) error

	// Dequeue returns the channel notices arrive on. It is closed by Close.
	Dequeue(ctx context.Context) <-chan Notice

	// Len returns the current number of queued notices.
	Len(ctx context.Context) int

	// Close stops accepting notices and closes the dequeue channel.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	notices  chan Notice
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.notices = make(chan Notice, q.capacity)
	metrics.UpdateNoticeQueueSize(0)
	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notice) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNoticeDropped()
		return ErrClosed
	}

	select {
	case q.notices <- n:
		metrics.UpdateNoticeQueueSize(len(q.notices))
		return nil
	case <-ctx.Done():
		metrics.RecordNoticeDropped()
		return ctx.Err()
	default:
		metrics.RecordNoticeDropped()
		return ErrFull
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(context.Context) <-chan Notice {
	return q.notices
}

// Len implements Queue.
func (q *InMemoryQueue) Len(context.Context) int {
	size := len(q.notices)
	metrics.UpdateNoticeQueueSize(size)
	return size
}

// Close implements Queue. Closing twice is a no-op.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.notices)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
