package catalog

import (
	"context"
	"fmt"
	"strings"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
)

// bestMatchScored scans the table and scores rows in process. Ties keep the
// first row in the store's order.
func (s *SQLStore) bestMatchScored(ctx context.Context, table Table, name string, threshold float64) (*entity.CatalogMatch, error) {
	query, args := entsql.Dialect(s.dialect).
		Select("code", "product", "price").
		From(entsql.Table(string(table))).
		Query()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(name)
	var best *entity.CatalogMatch
	for rows.Next() {
		var e entity.CatalogEntry
		if err := rows.Scan(&e.Code, &e.Product, &e.Price); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sim := s.scorer(strings.ToLower(e.Product), needle)
		if !Eligible(sim, threshold) {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &entity.CatalogMatch{CatalogEntry: e, Similarity: sim}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return best, nil
}
