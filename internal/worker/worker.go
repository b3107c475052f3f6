// Package worker runs best-effort delivery tasks (notifications, sheet
// mirroring) off the request path. Failures never reach API clients;
// tasks are retried with backoff and dropped after the retry budget.
package worker

import (
	"context"
	"sync"
	"time"

	"agendo/internal/models"

	"github.com/rs/zerolog"
)

// Task is one unit of async work. The alias keeps Enqueue compatible
// with plain function literals at call sites.
type Task = func(ctx context.Context) error

// Worker consumes tasks from a buffered queue.
type Worker struct {
	queue       chan Task
	retryPolicy RetryPolicy
	logger      *zerolog.Logger
	wg          sync.WaitGroup
	stopOnce    sync.Once
	stopped     chan struct{}
}

// New builds a worker with sane retry defaults.
func New(retry RetryPolicy, logger *zerolog.Logger) *Worker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &Worker{
		queue:       make(chan Task, models.WorkerQueueSize),
		retryPolicy: retry,
		logger:      logger,
		stopped:     make(chan struct{}),
	}
}

// Start launches the consume loop. It returns when ctx is canceled or
// Stop is called; pending queued tasks are drained first.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case task := <-w.queue:
				w.run(ctx, task)
			case <-ctx.Done():
				w.drain(ctx)
				return
			case <-w.stopped:
				w.drain(ctx)
				return
			}
		}
	}()
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case task := <-w.queue:
			w.run(ctx, task)
		default:
			return
		}
	}
}

// Enqueue schedules a task. Returns false when the queue is full; the
// task is dropped rather than blocking the caller.
func (w *Worker) Enqueue(task Task) bool {
	select {
	case w.queue <- task:
		return true
	default:
		w.logger.Warn().Msg("Worker queue full, dropping task")
		return false
	}
}

// Stop signals the consume loop to drain and exit, then waits for it.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopped) })
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, task Task) {
	var err error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		if err = task(ctx); err == nil {
			return
		}
		if attempt == w.retryPolicy.MaxRetries {
			break
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).
			Msg("Task failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
	w.logger.Error().Err(err).Int("attempts", w.retryPolicy.MaxRetries).
		Msg("Task dropped after retries")
}
