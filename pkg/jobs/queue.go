// Package jobs runs background work on a bounded in-memory worker pool.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of background work. ID points at the domain record the
// handler operates on; Attempt counts delivery attempts so handlers can give
// up on poisoned work.
type Task struct {
	ID         string
	Kind       string
	Payload    interface{}
	Attempt    int
	EnqueuedAt time.Time
}

// TaskHandler processes one task. A returned error triggers a retry until
// the queue's retry budget runs out.
type TaskHandler func(ctx context.Context, task Task) error

// Options tunes the worker pool. Zero values fall back to safe defaults.
type Options struct {
	Workers      int
	Buffer       int
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *zap.Logger
}

// Queue fans tasks out to a fixed set of worker goroutines. Enqueue blocks
// when the buffer is full, which applies backpressure to producers instead
// of growing without bound.
type Queue struct {
	name    string
	handler TaskHandler
	opts    Options
	logger  *zap.Logger

	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewQueue builds a stopped queue; call Start to begin consumption.
func NewQueue(name string, handler TaskHandler, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = opts.Workers * 4
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		opts:    opts,
		logger:  logger,
		tasks:   make(chan Task, opts.Buffer),
	}
}

// Start launches the workers. Calling Start on a running queue is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.consume()
	}
	q.running = true
	q.logger.Info("worker queue started",
		zap.String("queue", q.name),
		zap.Int("workers", q.opts.Workers),
	)
}

// Stop cancels the workers and blocks until every in-flight task returns.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("worker queue stopped", zap.String("queue", q.name))
}

// Enqueue submits a task. It fails when the queue has not been started or is
// shutting down; tasks accepted before Stop still drain.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	ctx, running := q.ctx, q.running
	q.mu.Unlock()

	if !running {
		return fmt.Errorf("queue %s is not running", q.name)
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s shutting down: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	}
}

func (q *Queue) consume() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			if err := q.handler(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

// retry schedules redelivery after the backoff. The timer runs outside the
// worker so a failing task never stalls its sibling workers.
func (q *Queue) retry(task Task, cause error) {
	task.Attempt++
	if task.Attempt > q.opts.MaxRetries {
		q.logger.Error("task dropped after retry budget",
			zap.String("queue", q.name),
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Error(cause),
		)
		return
	}
	q.logger.Warn("task failed, scheduling retry",
		zap.String("queue", q.name),
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		zap.Int("attempt", task.Attempt),
		zap.Error(cause),
	)

	go func() {
		timer := time.NewTimer(q.opts.RetryBackoff)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(task); err != nil {
				q.logger.Error("task redelivery failed",
					zap.String("queue", q.name),
					zap.String("task_id", task.ID),
					zap.Error(err),
				)
			}
		}
	}()
}
