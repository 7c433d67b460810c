package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
	"github.com/joseph-ayodele/pharma-quotes/internal/llm"
	"github.com/joseph-ayodele/pharma-quotes/internal/metrics"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

// DefaultUnitDelay is the pause between consecutive units of one document.
const DefaultUnitDelay = 500 * time.Millisecond

// Segmenter splits a document into units.
type Segmenter interface {
	CountUnits(doc segment.Document) (int, error)
	ExtractUnit(doc segment.Document, index int) (segment.Unit, error)
}

// ProgressFunc is called with (current, total) before each unit, current being 1-based.
type ProgressFunc func(current, total int)

// Result is the outcome of one document run.
type Result struct {
	Records    []entity.MedicationRecord
	TotalUnits int
	// SkippedUnits lists 0-based indexes whose extraction failed.
	SkippedUnits []int
}

// Pipeline drives segmentation, extraction and parsing across a document's units.
type Pipeline struct {
	logger    *slog.Logger
	segmenter Segmenter
	extractor llm.Extractor
	unitDelay time.Duration
	sleep     llm.SleepFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithUnitDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.unitDelay = d
		}
	}
}

func WithSleep(fn llm.SleepFunc) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

func New(segmenter Segmenter, extractor llm.Extractor, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		logger:    logger,
		segmenter: segmenter,
		extractor: extractor,
		unitDelay: DefaultUnitDelay,
		sleep:     sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes units strictly in order. A failing unit is logged, recorded
// in SkippedUnits and skipped; only document-level errors (unreadable or
// unsupported input) and context cancellation are returned.
func (p *Pipeline) Run(ctx context.Context, doc segment.Document, onProgress ProgressFunc) (Result, error) {
	total, err := p.segmenter.CountUnits(doc)
	if err != nil {
		p.logger.Error("pipeline.count.failed", "mime", doc.MIMEType, "error", err)
		return Result{}, err
	}

	start := time.Now()
	res := Result{TotalUnits: total, Records: make([]entity.MedicationRecord, 0)}
	p.logger.Info("pipeline.start", "mime", doc.MIMEType, "units", total)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if onProgress != nil {
			onProgress(i+1, total)
		}

		records, err := p.runUnit(ctx, doc, i)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			metrics.UnitsProcessed.WithLabelValues("failed").Inc()
			p.logger.Warn("pipeline.unit.failed", "unit", i, "units", total, "error", err)
			res.SkippedUnits = append(res.SkippedUnits, i)
		} else {
			metrics.UnitsProcessed.WithLabelValues("ok").Inc()
			metrics.RecordsExtracted.Add(float64(len(records)))
			p.logger.Info("pipeline.unit.ok", "unit", i, "units", total, "records", len(records))
			res.Records = append(res.Records, records...)
		}

		if i < total-1 && p.unitDelay > 0 {
			if err := p.sleep(ctx, p.unitDelay); err != nil {
				return res, err
			}
		}
	}

	p.logger.Info("pipeline.done",
		"units", total,
		"skipped", len(res.SkippedUnits),
		"records", len(res.Records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Pipeline) runUnit(ctx context.Context, doc segment.Document, index int) ([]entity.MedicationRecord, error) {
	unit, err := p.segmenter.ExtractUnit(doc, index)
	if err != nil {
		return nil, err
	}
	raw, err := p.extractor.Extract(ctx, unit)
	if err != nil {
		return nil, err
	}
	records := llm.ParseMedications(raw, p.logger)
	for _, r := range records {
		if r.Degraded {
			metrics.DegradedRecords.Inc()
			p.logger.Warn("pipeline.unit.degraded", "unit", index)
		}
	}
	return records, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
