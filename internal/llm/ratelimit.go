package llm

import (
	"context"
	"log/slog"

	"github.com/juju/ratelimit"

	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

// RateLimited gates calls through a token bucket shared by every document.
type RateLimited struct {
	next   Extractor
	bucket *ratelimit.Bucket
	logger *slog.Logger
}

// NewRateLimited allows ratePerSec calls on average with bursts up to burst.
func NewRateLimited(next Extractor, ratePerSec float64, burst int64, logger *slog.Logger) *RateLimited {
	if logger == nil {
		logger = slog.Default()
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:   next,
		bucket: ratelimit.NewBucketWithRate(ratePerSec, burst),
		logger: logger,
	}
}

func (r *RateLimited) Extract(ctx context.Context, unit segment.Unit) (string, error) {
	if wait := r.bucket.Take(1); wait > 0 {
		r.logger.Debug("llm.ratelimit.wait", "unit", unit.Index, "wait_ms", wait.Milliseconds())
		if err := sleepCtx(ctx, wait); err != nil {
			return "", err
		}
	}
	return r.next.Extract(ctx, unit)
}
