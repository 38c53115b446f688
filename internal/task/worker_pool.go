package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ProcessFunc handles one dequeued task on behalf of a worker.
type ProcessFunc func(ctx context.Context, task *Task, workerID int)

// WorkerPool manages a pool of worker goroutines that pull tasks from a
// queue. Each worker processes one task fully before taking the next.
type WorkerPool struct {
	// queue provides the tasks to be processed
	queue Queue

	// process is invoked for every dequeued task
	process ProcessFunc

	// workerCount is the number of concurrent workers to start
	workerCount int

	// errorBackoff is how long a worker waits after a dequeue error
	errorBackoff time.Duration

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int

	// ErrorBackoff is the pause after a failed dequeue. Defaults to one second.
	ErrorBackoff time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:  2,
		ErrorBackoff: time.Second,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(queue Queue, process ProcessFunc, config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	backoff := config.ErrorBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:        queue,
		process:      process,
		workerCount:  workerCount,
		errorBackoff: backoff,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Start launches the worker goroutines.
func (p *WorkerPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.workerCount)
}

// Stop signals all workers to finish and waits for them. In-flight
// handlers see their context cancelled.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Context is cancelled when the pool stops.
func (p *WorkerPool) Context() context.Context {
	return p.ctx
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		task, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			switch {
			case p.ctx.Err() != nil:
				p.logger.Debug("stopping worker", "worker_id", id)
				return
			case errors.Is(err, ErrQueueClosed):
				p.logger.Debug("task queue closed, stopping worker", "worker_id", id)
				return
			}

			p.logger.Error("failed to dequeue task", "worker_id", id, "error", err)
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.errorBackoff):
			}
			continue
		}

		p.process(p.ctx, task, id)
	}
}
