package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
)

// importBatchSize bounds the rows per INSERT statement.
const importBatchSize = 200

// ImportStats summarizes one import run.
type ImportStats struct {
	Rows     int
	Inserted int
	Errors   int
}

// Importer loads provider price lists from XLSX workbooks into catalog tables.
type Importer struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

func NewImporter(db *sql.DB, dialectName string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{db: db, dialect: dialectName, logger: logger}
}

// ReadEntries parses the first sheet of a workbook. The header row must carry
// CODIGO, PRODUCTO and PRECIO columns (any case, accents ignored). Rows
// missing a code or product are counted as errors and skipped.
func ReadEntries(r io.Reader) ([]entity.CatalogEntry, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open workbook: %v", common.ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, fmt.Errorf("%w: workbook has no sheets", common.ErrInvalidInput)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read rows: %v", common.ErrInvalidInput, err)
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	codeCol, productCol, priceCol := -1, -1, -1
	for i, h := range rows[0] {
		switch normalizeHeader(h) {
		case "CODIGO":
			codeCol = i
		case "PRODUCTO":
			productCol = i
		case "PRECIO":
			priceCol = i
		}
	}
	if codeCol < 0 || productCol < 0 {
		return nil, 0, fmt.Errorf("%w: header must include CODIGO and PRODUCTO", common.ErrInvalidInput)
	}

	var (
		entries []entity.CatalogEntry
		bad     int
	)
	for _, row := range rows[1:] {
		code := strings.TrimSpace(cell(row, codeCol))
		product := strings.TrimSpace(cell(row, productCol))
		if code == "" && product == "" && strings.TrimSpace(cell(row, priceCol)) == "" {
			continue
		}
		if code == "" || product == "" {
			bad++
			continue
		}
		price, err := parsePrice(cell(row, priceCol))
		if err != nil {
			bad++
			continue
		}
		entries = append(entries, entity.CatalogEntry{Code: code, Product: product, Price: price})
	}
	return entries, bad, nil
}

// Import reads r and upserts its rows into table. With replace set, existing
// rows are removed first in the same transaction.
func (im *Importer) Import(ctx context.Context, table Table, r io.Reader, replace bool) (ImportStats, error) {
	if !table.Valid() {
		return ImportStats{}, fmt.Errorf("%w: unknown table %q", common.ErrInvalidInput, table)
	}
	start := time.Now()

	entries, bad, err := ReadEntries(r)
	if err != nil {
		return ImportStats{}, err
	}
	stats := ImportStats{Rows: len(entries) + bad, Errors: bad}

	tx, err := im.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("%w: begin: %w", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		query, args := entsql.Dialect(im.dialect).Delete(string(table)).Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return stats, fmt.Errorf("%w: clear %s: %w", common.ErrDatabase, table, err)
		}
	}

	for i := 0; i < len(entries); i += importBatchSize {
		batch := dedupe(entries[i:min(i+importBatchSize, len(entries))])
		query, args := upsertQuery(im.dialect, table, batch)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return stats, fmt.Errorf("%w: upsert %s: %w", common.ErrDatabase, table, err)
		}
		stats.Inserted += len(batch)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("%w: commit: %w", common.ErrDatabase, err)
	}

	im.logger.Info("catalog.import.ok",
		"table", table,
		"rows", stats.Rows,
		"inserted", stats.Inserted,
		"errors", stats.Errors,
		"replace", replace,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}

func upsertQuery(dialectName string, table Table, entries []entity.CatalogEntry) (string, []any) {
	ins := entsql.Dialect(dialectName).
		Insert(string(table)).
		Columns("code", "product", "price")
	for _, e := range entries {
		ins.Values(e.Code, e.Product, e.Price)
	}
	return ins.OnConflict(
		entsql.ConflictColumns("code"),
		entsql.ResolveWithNewValues(),
	).Query()
}

// dedupe keeps the last row per code; one INSERT cannot touch a key twice.
func dedupe(entries []entity.CatalogEntry) []entity.CatalogEntry {
	idx := make(map[string]int, len(entries))
	out := make([]entity.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := idx[e.Code]; ok {
			out[i] = e
			continue
		}
		idx[e.Code] = len(out)
		out = append(out, e)
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

var headerReplacer = strings.NewReplacer("Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U")

func normalizeHeader(h string) string {
	return headerReplacer.Replace(strings.ToUpper(strings.TrimSpace(h)))
}

// parsePrice accepts raw numeric cells and simple currency text such as "$ 12,500.50".
func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(strings.NewReplacer("$", "", " ", "", ",", "").Replace(s))
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
