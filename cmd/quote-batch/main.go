package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/pharma-quotes/internal/app"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/ingest"
	"github.com/joseph-ayodele/pharma-quotes/internal/quotes"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type batch struct {
	quotes   *quotes.Service
	out      string
	compare  bool
	maxBytes int64
	logger   *slog.Logger
}

// process extracts one document and writes its workbook next to out.
func (b *batch) process(ctx context.Context, path string) error {
	doc, err := ingest.LoadDocument(path, b.maxBytes)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	summary, err := b.quotes.Extract(ctx, "", doc, func(current, total int) {
		b.logger.Info("batch.progress", "file", filepath.Base(path), "unit", current, "total", total)
	})
	if err != nil {
		return err
	}
	if len(summary.SkippedUnits) > 0 {
		b.logger.Warn("batch.units.skipped", "file", path, "skipped", summary.SkippedUnits, "total", summary.TotalUnits)
	}
	if len(summary.Records) == 0 {
		b.quotes.Discard(summary.SessionID)
		b.logger.Warn("batch.no_records", "file", path)
		return nil
	}
	wb, err := b.quotes.Finish(ctx, summary.SessionID, b.compare)
	if err != nil {
		return err
	}
	target := filepath.Join(b.out, name+".xlsx")
	if err := os.WriteFile(target, wb.Data, 0644); err != nil {
		return err
	}
	b.logger.Info("batch.file.done", "file", path, "output", target, "records", wb.Records, "compared", wb.Compared)
	return nil
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory to process quote documents from (required)")
		out      = flag.String("out", "", "output directory for XLSX files (optional, defaults to --dir)")
		compare  = flag.Bool("compare", false, "compare against provider catalogs (requires DB_URL)")
		watch    = flag.Bool("watch", false, "keep running and process documents as they appear")
		debounce = flag.Duration("debounce", 2*time.Second, "quiet period before a new file is processed in --watch mode")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = *dir
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	validate := cfg.ValidateLLM
	if *compare {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := 0
	defer func() {
		if code != 0 {
			os.Exit(code)
		}
	}()
	a, err := app.Build(ctx, cfg, *compare, logger)
	if err != nil {
		logger.Error("failed to build quote flow", "error", err)
		os.Exit(1)
	}
	defer a.Close(context.Background(), logger)

	b := &batch{
		quotes:   a.Quotes,
		out:      *out,
		compare:  *compare,
		maxBytes: cfg.Server.MaxUploadBytes,
		logger:   logger,
	}

	if *watch {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{*dir},
			InitialScan: true,
			Debounce:    *debounce,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			for err := range errs {
				logger.Warn("watcher error", "error", err)
			}
		}()
		for path := range events {
			if err := b.process(ctx, path); err != nil {
				logger.Error("failed to process file", "file", path, "error", err)
			}
		}
		logger.Info("watcher stopped")
		return
	}

	files, stats, err := ingest.ScanDirectory(*dir, true, logger)
	if err != nil {
		logger.Error("failed to scan directory", "error", err)
		os.Exit(1)
	}

	processed, failures := 0, 0
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		logger.Info("processing file", "file", f.Path, "size", f.Size)
		if err := b.process(ctx, f.Path); err != nil {
			logger.Error("failed to process file", "file", f.Path, "error", err)
			failures++
			continue
		}
		processed++
	}

	logger.Info("batch processing complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"processed", processed,
		"failures", failures)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files found: %d\n", len(files))
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
	if failures > 0 {
		code = 1
	}
}
