// Package app wires configuration into the quote flow components shared by
// the daemon and the command-line tools.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/pharma-quotes/internal/async"
	"github.com/joseph-ayodele/pharma-quotes/internal/catalog"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/compare"
	"github.com/joseph-ayodele/pharma-quotes/internal/export"
	"github.com/joseph-ayodele/pharma-quotes/internal/llm"
	"github.com/joseph-ayodele/pharma-quotes/internal/llm/gemini"
	"github.com/joseph-ayodele/pharma-quotes/internal/llm/openai"
	"github.com/joseph-ayodele/pharma-quotes/internal/pipeline"
	"github.com/joseph-ayodele/pharma-quotes/internal/quotes"
	"github.com/joseph-ayodele/pharma-quotes/internal/repository"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
	"github.com/joseph-ayodele/pharma-quotes/internal/session"
)

// NewExtractor builds the configured provider client behind the shared token
// bucket and the retry policy.
func NewExtractor(cfg common.LLMConfig, logger *slog.Logger) (llm.Extractor, error) {
	var client llm.Extractor
	switch cfg.Provider {
	case "gemini":
		client = gemini.NewClient(gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.Timeout,
		}, logger)
	case "openai":
		client = openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", common.ErrInvalidInput, cfg.Provider)
	}
	logger.Info("llm.client.ready", "provider", cfg.Provider)

	limited := llm.NewRateLimited(client, cfg.RatePerSec, cfg.Burst, logger)
	return llm.NewRetrying(limited, logger, llm.WithMaxAttempts(cfg.MaxAttempts)), nil
}

// NewPipeline builds the per-document orchestrator.
func NewPipeline(cfg *common.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	ex, err := NewExtractor(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(segment.New(logger), ex, logger,
		pipeline.WithUnitDelay(cfg.Pipeline.UnitDelay),
	), nil
}

// OpenCatalog connects to the catalog database and returns a comparator over
// it. A missing catalog table is logged, not fatal: lookups against it fail
// per provider and the affected cells keep their sentinels.
func OpenCatalog(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*repository.DB, *compare.Comparator, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	store := catalog.NewSQLStore(db.SQL, db.Dialect, logger)
	if ok, err := store.Ready(ctx); err != nil {
		logger.Warn("catalog.ready.check_failed", "error", err)
	} else if !ok {
		logger.Warn("catalog.not_ready", "hint", "run import-catalog to create and load provider tables")
	}

	cmp := compare.New(store, catalog.DefaultProviders(),
		compare.WithThreshold(cfg.Pipeline.SimilarityThreshold),
		compare.WithLogger(logger),
	)
	return db, cmp, nil
}

// App is the assembled quote flow.
type App struct {
	Quotes   *quotes.Service
	Queue    *async.ProcessorQueue
	Sessions *session.Store
	DB       *repository.DB
}

// Build assembles the quote flow. withCatalog controls whether the catalog
// database is opened; without it exports never carry provider prices.
func Build(ctx context.Context, cfg *common.Config, withCatalog bool, logger *slog.Logger) (*App, error) {
	pipe, err := NewPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		Sessions: session.NewStore(logger,
			session.WithTTL(cfg.Session.TTL),
			session.WithCapacity(cfg.Session.Capacity),
		),
	}

	var cmp quotes.Comparator
	if withCatalog {
		db, c, err := OpenCatalog(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.DB, cmp = db, c
	}

	a.Queue = async.NewProcessorQueue(pipe, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.JobTimeout),
	)
	a.Quotes = quotes.NewService(a.Queue, a.Sessions, cmp, export.NewService(logger), logger)
	return a, nil
}

// Close drains the queue, stops the sweeper and closes the database.
func (a *App) Close(ctx context.Context, logger *slog.Logger) {
	if a.Queue != nil {
		a.Queue.Shutdown(ctx)
	}
	if a.Sessions != nil {
		a.Sessions.Stop()
	}
	repository.Close(a.DB, logger)
}
