// Package worker dispatches queued notices to session inboxes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/pkg/logger"
	"github.com/okian/breedid/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrStopped is returned by Shutdown when called twice.
var ErrStopped = errors.New("worker stopped")

// Sink receives dispatched notices.
type Sink interface {
	Deliver(ctx context.Context, n model.Notice) error
}

// Queue defines how workers receive notices.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Notice
}

// Worker drains the queue into a sink.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called,
	// or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sink  Sink
	name  string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(queue Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	notices := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			if err := w.dispatch(ctx, n); err != nil {
				w.logger.Debug(ctx, "notice not delivered", logger.Error(err))
			}
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	stopped := true
	w.shutdownOnce.Do(func() {
		close(w.shutdown)
		stopped = false
	})
	if stopped {
		return ErrStopped
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) dispatch(ctx context.Context, n model.Notice) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	if err := w.sink.Deliver(ctx, n); err != nil {
		metrics.RecordNoticeDropped()
		return fmt.Errorf("deliver %s to %s: %w", n.Kind, n.SessionID, err)
	}
	metrics.RecordNoticeDispatched(string(n.Kind))
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers, runtime.NumCPU() when < 1.
func NewPool(workerCount int, queue Queue, sink Sink) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Named("notice-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(queue, sink, WithName("notice-worker-"+strconv.Itoa(i)))
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue if it can be closed, so buffered notices drain,
// then waits for workers until ctx or poolShutdownTimeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		for _, w := range p.workers {
			_ = w.Shutdown(shutdownCtx)
		}
		p.logger.Warn(ctx, "notice pool shutdown timed out")
		return fmt.Errorf("notice pool shutdown: %w", shutdownCtx.Err())
	}
}
