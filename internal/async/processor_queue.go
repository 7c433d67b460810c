package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/metrics"
)

// ProcessorQueue caps how many documents run at once across all callers.
type ProcessorQueue struct {
	runner   Runner
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	failFast bool

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithFailFast makes Submit return ErrQueueFull instead of waiting for room.
func WithFailFast() Option {
	return func(q *ProcessorQueue) {
		q.failFast = true
	}
}

func NewProcessorQueue(runner Runner, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		runner:  runner,
		logger:  logger,
		workers: 2,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 32),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					metrics.QueueDepth.Dec()
					job.result <- q.process(workerID, job)
					close(job.result)
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) (out Outcome) {
	out = Outcome{JobID: job.ID}
	defer func() {
		if r := recover(); r != nil {
			out.Status = constants.JobStatusFailed
			out.Err = fmt.Errorf("%w: worker panic: %v", common.ErrInternal, r)
			q.logger.Error("queue.job.panic", "worker_id", workerID, "job_id", job.ID, "panic", r)
		}
	}()

	if err := job.ctx.Err(); err != nil {
		out.Status = constants.JobStatusFailed
		out.Err = err
		q.logger.Info("queue.job.abandoned", "job_id", job.ID, "session_id", job.SessionID)
		return out
	}

	ctx, cancel := context.WithTimeout(job.ctx, q.timeout)
	defer cancel()

	start := time.Now()
	q.logger.Info("queue.job.running",
		"worker_id", workerID,
		"job_id", job.ID,
		"session_id", job.SessionID,
		"waited_ms", start.Sub(job.SubmittedAt).Milliseconds(),
	)
	res, err := q.runner.Run(ctx, job.Document, job.OnProgress)
	out.Result = res
	if err != nil {
		out.Status = constants.JobStatusFailed
		out.Err = err
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.ID, "session_id", job.SessionID, "error", err)
		return out
	}
	out.Status = constants.JobStatusExtracted
	q.logger.Info("queue.job.done",
		"worker_id", workerID,
		"job_id", job.ID,
		"session_id", job.SessionID,
		"records", len(res.Records),
		"skipped_units", len(res.SkippedUnits),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// Submit enqueues job and returns the channel its Outcome will arrive on.
// ctx bounds both the wait for a queue slot and the job's execution.
func (q *ProcessorQueue) Submit(ctx context.Context, job Job) (<-chan Outcome, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, common.ErrQueueClosed
	}

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.SubmittedAt = time.Now()
	job.ctx = ctx
	job.result = make(chan Outcome, 1)

	metrics.QueueDepth.Inc()
	select {
	case q.ch <- job:
		q.logger.Info("queue.job.queued", "job_id", job.ID, "session_id", job.SessionID)
		return job.result, nil
	default:
	}

	if q.failFast {
		metrics.QueueDepth.Dec()
		q.logger.Warn("queue.full", "job_id", job.ID, "session_id", job.SessionID)
		return nil, common.ErrQueueFull
	}

	q.logger.Warn("queue.full.waiting", "job_id", job.ID, "session_id", job.SessionID)
	select {
	case q.ch <- job:
		q.logger.Info("queue.job.queued", "job_id", job.ID, "session_id", job.SessionID)
		return job.result, nil
	case <-ctx.Done():
		metrics.QueueDepth.Dec()
		return nil, ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
