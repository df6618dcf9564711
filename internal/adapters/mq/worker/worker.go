// Package worker renders queued animation frames and acknowledges them.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/epidash/internal/adapters/mq/queue"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount  = 1 // one worker keeps frames in order
	poolShutdownTimeout = 30 * time.Second
)

// ErrRunEnded acks a job whose run ended before a worker picked it up.
var ErrRunEnded = errors.New("run ended before render")

// Renderer draws a frame. It returns once the frame is visible to every
// consumer.
type Renderer interface {
	Render(ctx context.Context, frame model.AnimationFrame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, frame model.AnimationFrame) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, frame model.AnimationFrame) error {
	return f(ctx, frame)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes frame jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for rendering frames.
type InMemoryWorker struct {
	queue    Queue
	renderer Renderer
	name     string

	processed atomic.Int64

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, renderer Renderer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		renderer: renderer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) signal() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Processed returns the number of jobs handled, failures included.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// process renders one job and sends exactly one ack.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	if ended(job.Done) {
		metrics.RecordErrorByComponent("worker", "run_ended")
		w.logger.Debug(ctx, "dropping frame of ended run",
			logger.String("run_id", job.RunID),
			logger.Int("frame", job.Frame.Index),
		)
		w.ack(ctx, job, ErrRunEnded)
		return
	}

	start := time.Now()
	err := w.renderer.Render(ctx, job.Frame)
	latency := time.Since(start).Milliseconds()
	metrics.RecordWorkerProcessingLatency(float64(latency))
	w.processed.Add(1)

	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "render_error")
		metrics.RecordErrorByType("render_error", "high")
		w.logger.Error(ctx, "render failed",
			logger.String("run_id", job.RunID),
			logger.Int("frame", job.Frame.Index),
			logger.Error(err),
		)
		err = fmt.Errorf("render frame %d: %w", job.Frame.Index, err)
	}
	w.ack(ctx, job, err)
}

func ended(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

func (w *InMemoryWorker) ack(ctx context.Context, job queue.Job, err error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	if job.Ack == nil {
		return
	}
	select {
	case job.Ack <- err:
	default:
		w.logger.Warn(ctx, "ack dropped, channel not ready",
			logger.String("run_id", job.RunID),
			logger.Int("frame", job.Frame.Index),
		)
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses a single
// worker so frames are rendered in enqueue order.
func NewPool(workerCount int, q Queue, renderer Renderer) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			renderer,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs handled by all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for every worker to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for _, w := range p.workers {
		w.signal()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)

	return nil
}
