package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/pharma-quotes/internal/catalog"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		provider = flag.String("provider", "", "catalog table to load (proveedor_general, proveedor_bogota)")
		file     = flag.String("file", "", "XLSX workbook with Código, Producto and Precio columns (required)")
		replace  = flag.Bool("replace", false, "delete existing rows before loading")
	)
	flag.Parse()

	if *file == "" || *provider == "" {
		printError("Error: --provider and --file are required\n")
		os.Exit(1)
	}
	table, err := catalog.ParseTable(*provider)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.ValidateDatabase(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	store := catalog.NewSQLStore(db.SQL, db.Dialect, logger)
	if err := store.EnsureTables(ctx); err != nil {
		logger.Error("failed to create catalog tables", "error", err)
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("failed to open workbook", "file", *file, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	start := time.Now()
	stats, err := catalog.NewImporter(db.SQL, db.Dialect, logger).Import(ctx, table, f, *replace)
	if err != nil {
		logger.Error("import failed", "table", string(table), "error", err)
		os.Exit(1)
	}

	fmt.Printf("Catalog import complete!\n")
	fmt.Printf("- Table: %s\n", table)
	fmt.Printf("- Rows read: %d\n", stats.Rows)
	fmt.Printf("- Upserted: %d\n", stats.Inserted)
	fmt.Printf("- Rejected: %d\n", stats.Errors)
	fmt.Printf("- Took: %s\n", time.Since(start).Round(time.Millisecond))
}
