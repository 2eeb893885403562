package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrPipelineBusy reports that the task queue is full and the submission was
// rejected rather than queued.
var ErrPipelineBusy = errors.New("task pipeline busy")

// Task is one fire-and-forget unit of work, typically a deferred restart.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool is a fixed-size worker pool for long-running lifecycle operations.
// Submissions queue up to the configured depth when all workers are busy;
// beyond that Submit fails fast instead of blocking the caller. Task
// failures are logged, not propagated: the submitter has already answered
// its own caller by the time the task runs.
type Pool struct {
	workers int
	tasks   chan Task
	logger  *slog.Logger
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewPool builds a pool with the given worker count and queue depth.
func NewPool(workers, queueDepth int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 32
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan Task, queueDepth),
		logger:  logger,
		cancel:  func() {},
	}
}

// Start launches the workers. Tasks run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			p.run(ctx, id, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, worker int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task", task.Name, "worker", worker, "panic", fmt.Sprint(r))
		}
	}()
	if err := task.Run(ctx); err != nil {
		p.logger.Error("task failed", "task", task.Name, "worker", worker, "err", err)
		return
	}
	p.logger.Info("task done", "task", task.Name, "worker", worker)
}

// Submit enqueues the task and returns immediately. An accepted task
// executes at most once, eventually, on some worker; when the queue is
// saturated Submit returns ErrPipelineBusy and the task is not queued.
func (p *Pool) Submit(task Task) error {
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPipelineBusy
	}
}

// Stop cancels the workers and waits for in-flight tasks to finish. Queued
// tasks that have not started are abandoned.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
