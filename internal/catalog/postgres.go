package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
)

// pg_trgm's % operator uses the session threshold and the trigram index; the
// explicit similarity bound keeps the threshold inclusive regardless.
const bestMatchPostgresSQL = `SELECT code, product, price::float8, similarity(LOWER(product), LOWER($1)) AS sim
FROM %s
WHERE LOWER(product) %% LOWER($1) AND similarity(LOWER(product), LOWER($1)) >= $2
ORDER BY sim DESC
LIMIT 1`

func (s *SQLStore) bestMatchPostgres(ctx context.Context, table Table, name string, threshold float64) (*entity.CatalogMatch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// set_config(..., true) scopes the threshold to this transaction.
	if _, err := tx.ExecContext(ctx, `SELECT set_config('pg_trgm.similarity_threshold', $1, true)`,
		strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("set threshold: %w", err)
	}

	var m entity.CatalogMatch
	err = tx.QueryRowContext(ctx, fmt.Sprintf(bestMatchPostgresSQL, quote(table)), name, threshold).
		Scan(&m.Code, &m.Product, &m.Price, &m.Similarity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return &m, tx.Commit()
}
