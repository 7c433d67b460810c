package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/pharma-quotes/internal/common"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func seed(t *testing.T, db *sql.DB, table Table, rows ...[]any) {
	t.Helper()
	all := append([][]any{{"CODIGO", "PRODUCTO", "PRECIO"}}, rows...)
	_, err := NewImporter(db, dialect.SQLite, nil).Import(context.Background(), table, workbook(t, all...), false)
	require.NoError(t, err)
}

func TestSQLiteReadyAndEnsureTables(t *testing.T) {
	db := openSQLite(t)
	store := NewSQLStore(db, dialect.SQLite, nil)

	ok, err := store.Ready(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.EnsureTables(context.Background()))
	require.NoError(t, store.EnsureTables(context.Background()), "idempotent")

	ok, err = store.Ready(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteBestMatchTrigram(t *testing.T) {
	db := openSQLite(t)
	store := NewSQLStore(db, dialect.SQLite, nil)
	require.NoError(t, store.EnsureTables(context.Background()))

	seed(t, db, TableGeneral,
		[]any{"G-10", "IBUPROFENO 400 MG", 8500},
		[]any{"G-20", "ACETAMINOFEN 500 MG TAB", 125000},
		[]any{"G-30", "ACETAMINOFEN JARABE 150 ML", 9900},
	)

	m, err := store.BestMatch(context.Background(), TableGeneral, "Acetaminofen 500mg", DefaultThreshold)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "G-20", m.Code)
	assert.InDelta(t, 125000, m.Price, 1e-9)
	assert.Greater(t, m.Similarity, 0.5)

	m, err = store.BestMatch(context.Background(), TableGeneral, "Salbutamol inhalador", DefaultThreshold)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestSQLiteThresholdBoundary(t *testing.T) {
	db := openSQLite(t)
	scores := map[string]float64{"at threshold": 0.15, "just below": 0.149}
	store := NewSQLStore(db, dialect.SQLite, nil, WithScorer(func(product, _ string) float64 {
		return scores[product]
	}))
	require.NoError(t, store.EnsureTables(context.Background()))

	seed(t, db, TableBogota, []any{"B-1", "just below", 100})
	m, err := store.BestMatch(context.Background(), TableBogota, "query", 0.15)
	require.NoError(t, err)
	assert.Nil(t, m, "0.149 is excluded")

	seed(t, db, TableBogota, []any{"B-2", "at threshold", 200})
	m, err = store.BestMatch(context.Background(), TableBogota, "query", 0.15)
	require.NoError(t, err)
	require.NotNil(t, m, "0.15 is eligible")
	assert.Equal(t, "B-2", m.Code)
}

func TestSQLiteMissingTableIsLookupError(t *testing.T) {
	store := NewSQLStore(openSQLite(t), dialect.SQLite, nil)
	_, err := store.BestMatch(context.Background(), TableGeneral, "x", 0.15)
	assert.ErrorIs(t, err, common.ErrCatalogLookup)
}

func TestImporterUpsertsAndCountsErrors(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, NewSQLStore(db, dialect.SQLite, nil).EnsureTables(context.Background()))
	im := NewImporter(db, dialect.SQLite, nil)

	stats, err := im.Import(context.Background(), TableGeneral, workbook(t,
		[]any{"Código", "Producto", "Precio"},
		[]any{"A1", "AMOXICILINA 500 MG", 12000},
		[]any{"", "SIN CODIGO", 1},
		[]any{"A2", "", 1},
		[]any{"A1", "AMOXICILINA 500 MG CAP", 13000},
		[]any{"A3", "LORATADINA 10 MG", "$ 4,500"},
	), false)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Rows: 5, Inserted: 2, Errors: 2}, stats)

	var product string
	var price float64
	require.NoError(t, db.QueryRow("SELECT product, price FROM proveedor_general WHERE code = 'A1'").Scan(&product, &price))
	assert.Equal(t, "AMOXICILINA 500 MG CAP", product)
	assert.InDelta(t, 13000, price, 1e-9)

	stats, err = im.Import(context.Background(), TableGeneral, workbook(t,
		[]any{"CODIGO", "PRODUCTO", "PRECIO"},
		[]any{"Z9", "OMEPRAZOL 20 MG", 3000},
	), true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Inserted)

	var n int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM proveedor_general").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestReadEntriesRequiresHeader(t *testing.T) {
	_, _, err := ReadEntries(workbook(t, []any{"foo", "bar"}, []any{"1", "2"}))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = ReadEntries(bytes.NewReader([]byte("not a workbook")))
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestImporterRejectsUnknownTable(t *testing.T) {
	_, err := NewImporter(openSQLite(t), dialect.SQLite, nil).Import(context.Background(), Table("x"), workbook(t), false)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
