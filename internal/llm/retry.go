package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/metrics"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrying retries transient extraction failures with exponential backoff.
// Every call starts with a fresh attempt budget.
type Retrying struct {
	next        Extractor
	maxAttempts int
	baseDelay   time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
}

// RetryOption configures a Retrying extractor.
type RetryOption func(*Retrying)

func WithMaxAttempts(n int) RetryOption {
	return func(r *Retrying) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d >= 0 {
			r.baseDelay = d
		}
	}
}

func WithSleep(fn SleepFunc) RetryOption {
	return func(r *Retrying) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// NewRetrying wraps next. Defaults: 3 attempts, waits of 1s then 2s.
func NewRetrying(next Extractor, logger *slog.Logger, opts ...RetryOption) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retrying{
		next:        next,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepCtx,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extract calls the wrapped extractor until it succeeds, fails with a
// non-retryable error, or runs out of attempts. The wait after failed attempt
// k is baseDelay * 2^(k-1).
func (r *Retrying) Extract(ctx context.Context, unit segment.Unit) (string, error) {
	var lastErr error
	attempt := 1
	for ; attempt <= r.maxAttempts; attempt++ {
		raw, err := r.next.Extract(ctx, unit)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("llm.retry.recovered", "unit", unit.Index, "attempt", attempt)
			}
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !IsRetryable(err) || attempt == r.maxAttempts {
			break
		}

		wait := r.baseDelay << (attempt - 1)
		r.logger.Warn("llm.retry.wait",
			"unit", unit.Index,
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		metrics.ExtractionRetries.Inc()
		if err := r.sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	if attempt > r.maxAttempts {
		attempt = r.maxAttempts
	}
	r.logger.Error("llm.retry.gave_up", "unit", unit.Index, "attempts", attempt, "retryable", IsRetryable(lastErr), "error", lastErr)
	return "", fmt.Errorf("%w after %d attempt(s): %w", common.ErrExtractionFailed, attempt, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
