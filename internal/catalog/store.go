package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
	"github.com/joseph-ayodele/pharma-quotes/internal/trigram"
)

// Searcher finds the best fuzzy match for a product name in one catalog.
// A nil match with a nil error means no row reached the threshold.
type Searcher interface {
	BestMatch(ctx context.Context, table Table, name string, threshold float64) (*entity.CatalogMatch, error)
}

// Scorer returns the similarity of two product names in [0, 1].
type Scorer func(a, b string) float64

// SQLStore serves catalog lookups from a relational database.
type SQLStore struct {
	db      *sql.DB
	dialect string
	scorer  Scorer
	logger  *slog.Logger
}

// StoreOption configures an SQLStore.
type StoreOption func(*SQLStore)

// WithScorer replaces the in-process similarity used by the sqlite dialect.
func WithScorer(s Scorer) StoreOption {
	return func(st *SQLStore) {
		if s != nil {
			st.scorer = s
		}
	}
}

// NewSQLStore wraps db. dialectName is an entgo dialect (postgres or sqlite3).
func NewSQLStore(db *sql.DB, dialectName string, logger *slog.Logger, opts ...StoreOption) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLStore{
		db:      db,
		dialect: dialectName,
		scorer:  trigram.Similarity,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BestMatch returns the highest-similarity row of table whose similarity to
// name is at least threshold.
func (s *SQLStore) BestMatch(ctx context.Context, table Table, name string, threshold float64) (*entity.CatalogMatch, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("%w: unknown table %q", common.ErrCatalogLookup, table)
	}
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	var (
		m   *entity.CatalogMatch
		err error
	)
	switch s.dialect {
	case dialect.Postgres:
		m, err = s.bestMatchPostgres(ctx, table, name, threshold)
	case dialect.SQLite:
		m, err = s.bestMatchScored(ctx, table, name, threshold)
	default:
		err = fmt.Errorf("unsupported dialect %q", s.dialect)
	}
	if err != nil {
		s.logger.Warn("catalog.search.failed", "table", table, "error", err)
		return nil, fmt.Errorf("%w: %s: %w", common.ErrCatalogLookup, table, err)
	}
	return m, nil
}

// Ready reports whether every catalog table exists.
func (s *SQLStore) Ready(ctx context.Context) (bool, error) {
	for _, t := range Tables() {
		var (
			exists bool
			err    error
		)
		switch s.dialect {
		case dialect.Postgres:
			err = s.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, string(t)).Scan(&exists)
		case dialect.SQLite:
			var n int
			err = s.db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, string(t)).Scan(&n)
			exists = n > 0
		default:
			err = fmt.Errorf("unsupported dialect %q", s.dialect)
		}
		if err != nil {
			return false, fmt.Errorf("%w: check %s: %w", common.ErrDatabase, t, err)
		}
		if !exists {
			s.logger.Info("catalog.table.missing", "table", t)
			return false, nil
		}
	}
	return true, nil
}

// EnsureTables creates the catalog tables if they do not exist. On postgres
// it also enables pg_trgm and adds a trigram index on the product name.
func (s *SQLStore) EnsureTables(ctx context.Context) error {
	if s.dialect == dialect.Postgres {
		if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`); err != nil {
			return fmt.Errorf("%w: enable pg_trgm: %w", common.ErrDatabase, err)
		}
	}
	for _, t := range Tables() {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (code VARCHAR(50) NOT NULL, product VARCHAR(500) NOT NULL, price DECIMAL(12,2) NOT NULL DEFAULT 0, PRIMARY KEY (code))`, quote(t))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("%w: create %s: %w", common.ErrDatabase, t, err)
		}
		if s.dialect == dialect.Postgres {
			idx := pgx.Identifier{"idx_" + string(t) + "_product_trgm"}.Sanitize()
			stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (LOWER(product) gin_trgm_ops)`, idx, quote(t))
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%w: index %s: %w", common.ErrDatabase, t, err)
			}
		}
		s.logger.Info("catalog.table.ready", "table", t)
	}
	return nil
}

func quote(t Table) string {
	return pgx.Identifier{string(t)}.Sanitize()
}
