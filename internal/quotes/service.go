// Package quotes ties extraction, the pending-session store, price
// comparison and export into the two-step quote flow: upload a document,
// then export it with or without provider prices.
package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pharma-quotes/internal/async"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
	"github.com/joseph-ayodele/pharma-quotes/internal/export"
	"github.com/joseph-ayodele/pharma-quotes/internal/pipeline"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
	"github.com/joseph-ayodele/pharma-quotes/internal/session"
)

// Comparator enriches records with provider codes and prices.
type Comparator interface {
	Compare(ctx context.Context, records []entity.MedicationRecord) []entity.MedicationRecord
	Providers() []string
}

// Exporter renders records as a workbook.
type Exporter interface {
	MedicationsXLSX(records []entity.MedicationRecord, providers []string) ([]byte, error)
}

// Summary describes one finished extraction.
type Summary struct {
	SessionID    string                    `json:"session_id"`
	JobID        uuid.UUID                 `json:"job_id"`
	TotalUnits   int                       `json:"total_units"`
	SkippedUnits []int                     `json:"skipped_units"`
	Records      []entity.MedicationRecord `json:"records"`
}

// Workbook is an exported quote ready to send.
type Workbook struct {
	FileName string
	Data     []byte
	Records  int
	Compared bool
}

type Service struct {
	queue      async.Queue
	store      *session.Store
	comparator Comparator
	exporter   Exporter
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the quote flow. comparator may be nil when no catalog is
// configured; Finish then refuses compare requests.
func NewService(queue async.Queue, store *session.Store, comparator Comparator, exporter Exporter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		queue:      queue,
		store:      store,
		comparator: comparator,
		exporter:   exporter,
		logger:     logger,
		now:        time.Now,
	}
}

// CanCompare reports whether price comparison is available.
func (s *Service) CanCompare() bool {
	return s.comparator != nil
}

// Extract runs doc through the admission queue and keeps the records under
// sessionID until Finish or Discard. An empty sessionID gets a fresh one.
// A new extraction replaces whatever the session held before.
func (s *Service) Extract(ctx context.Context, sessionID string, doc segment.Document, onProgress pipeline.ProgressFunc) (Summary, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := validateSession(sessionID); err != nil {
		return Summary{}, err
	}
	v := common.NewValidator().Field("file", doc.Data, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return Summary{}, err
	}

	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	ch, err := s.queue.Submit(ctx, async.Job{
		SessionID:  sessionID,
		Document:   doc,
		OnProgress: onProgress,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("submit: %w", err)
	}

	var out async.Outcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
	if out.Err != nil {
		return Summary{}, out.Err
	}

	s.store.Put(sessionID, session.Pending{
		Records:      out.Result.Records,
		TotalUnits:   out.Result.TotalUnits,
		SkippedUnits: out.Result.SkippedUnits,
	})
	s.logger.Info("quotes.extract.ok",
		"session_id", sessionID,
		"job_id", out.JobID,
		"records", len(out.Result.Records),
		"total_units", out.Result.TotalUnits,
		"skipped_units", len(out.Result.SkippedUnits),
	)

	skipped := out.Result.SkippedUnits
	if skipped == nil {
		skipped = []int{}
	}
	return Summary{
		SessionID:    sessionID,
		JobID:        out.JobID,
		TotalUnits:   out.Result.TotalUnits,
		SkippedUnits: skipped,
		Records:      out.Result.Records,
	}, nil
}

// Finish exports the pending records of sessionID, compared against the
// provider catalogs when compare is set, and releases the session.
func (s *Service) Finish(ctx context.Context, sessionID string, compare bool) (Workbook, error) {
	if err := validateSession(sessionID); err != nil {
		return Workbook{}, err
	}
	p, ok := s.store.Get(sessionID)
	if !ok || len(p.Records) == 0 {
		return Workbook{}, common.ErrNoPending
	}
	if compare && s.comparator == nil {
		return Workbook{}, common.NewAppError("COMPARISON_UNAVAILABLE", "price comparison is not configured", common.ErrCatalogLookup)
	}

	records := p.Records
	var providers []string
	if compare {
		records = s.comparator.Compare(ctx, records)
		providers = s.comparator.Providers()
	}

	data, err := s.exporter.MedicationsXLSX(records, providers)
	if err != nil {
		return Workbook{}, fmt.Errorf("%w: export: %w", common.ErrInternal, err)
	}
	s.store.Release(sessionID)

	s.logger.Info("quotes.finish.ok",
		"session_id", sessionID,
		"records", len(records),
		"compared", compare,
		"bytes", len(data),
	)
	return Workbook{
		FileName: export.FileName(s.now()),
		Data:     data,
		Records:  len(records),
		Compared: compare,
	}, nil
}

// Discard drops the pending records of sessionID, reporting whether any existed.
func (s *Service) Discard(sessionID string) bool {
	ok := s.store.Release(sessionID)
	if ok {
		s.logger.Info("quotes.discard", "session_id", sessionID)
	}
	return ok
}

func validateSession(id string) error {
	v := common.NewValidator().Field("session", id, common.Required, common.SessionKey, common.MaxLength(128))
	return common.ValidateAndReturnError(v)
}
