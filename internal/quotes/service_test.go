package quotes

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/async"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
	"github.com/joseph-ayodele/pharma-quotes/internal/export"
	"github.com/joseph-ayodele/pharma-quotes/internal/pipeline"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
	"github.com/joseph-ayodele/pharma-quotes/internal/session"
)

type runnerFunc func(ctx context.Context, doc segment.Document, onProgress pipeline.ProgressFunc) (pipeline.Result, error)

func (f runnerFunc) Run(ctx context.Context, doc segment.Document, onProgress pipeline.ProgressFunc) (pipeline.Result, error) {
	return f(ctx, doc, onProgress)
}

type stubComparator struct {
	calls int
}

func (c *stubComparator) Compare(_ context.Context, records []entity.MedicationRecord) []entity.MedicationRecord {
	c.calls++
	out := make([]entity.MedicationRecord, len(records))
	for i, r := range records {
		r = r.Clone()
		r.ProviderCodes = map[string]string{"Proveedor General": "G-2"}
		r.ProviderPrices = map[string]string{"Proveedor General": "$125.000"}
		out[i] = r
	}
	return out
}

func (c *stubComparator) Providers() []string { return []string{"Proveedor General"} }

func twoRecords(_ context.Context, _ segment.Document, onProgress pipeline.ProgressFunc) (pipeline.Result, error) {
	onProgress(1, 2)
	onProgress(2, 2)
	a, b := entity.NewMedicationRecord(), entity.NewMedicationRecord()
	a.Name, b.Name = "Acetaminofen 500mg", "Ibuprofeno 400mg"
	return pipeline.Result{Records: []entity.MedicationRecord{a, b}, TotalUnits: 2}, nil
}

func newService(t *testing.T, r async.Runner, cmp Comparator) (*Service, *session.Store) {
	t.Helper()
	q := async.NewProcessorQueue(r, nil, async.WithWorkers(1))
	t.Cleanup(func() { q.Shutdown(context.Background()) })
	store := session.NewStore(nil)
	return NewService(q, store, cmp, export.NewService(nil), nil), store
}

func pdfDoc() segment.Document {
	return segment.Document{Data: []byte("%PDF-1.4"), MIMEType: constants.MIMEPDF}
}

func TestExtractStoresPending(t *testing.T) {
	svc, store := newService(t, runnerFunc(twoRecords), nil)

	var progress [][2]int
	sum, err := svc.Extract(context.Background(), "573001234567@c.us", pdfDoc(), func(c, n int) {
		progress = append(progress, [2]int{c, n})
	})
	require.NoError(t, err)
	assert.Equal(t, "573001234567@c.us", sum.SessionID)
	assert.Equal(t, 2, sum.TotalUnits)
	assert.Empty(t, sum.SkippedUnits)
	assert.NotNil(t, sum.SkippedUnits)
	assert.Len(t, sum.Records, 2)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)

	p, ok := store.Get("573001234567@c.us")
	require.True(t, ok)
	assert.Len(t, p.Records, 2)
}

func TestExtractGeneratesSessionID(t *testing.T) {
	svc, _ := newService(t, runnerFunc(twoRecords), nil)
	sum, err := svc.Extract(context.Background(), "", pdfDoc(), nil)
	require.NoError(t, err)
	assert.Len(t, sum.SessionID, 36)
}

func TestExtractValidation(t *testing.T) {
	svc, _ := newService(t, runnerFunc(twoRecords), nil)

	_, err := svc.Extract(context.Background(), "bad id!", pdfDoc(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.Extract(context.Background(), "s1", segment.Document{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestExtractFailureKeepsNothing(t *testing.T) {
	svc, store := newService(t, runnerFunc(func(context.Context, segment.Document, pipeline.ProgressFunc) (pipeline.Result, error) {
		return pipeline.Result{}, common.ErrMalformedDocument
	}), nil)

	_, err := svc.Extract(context.Background(), "s1", pdfDoc(), nil)
	assert.ErrorIs(t, err, common.ErrMalformedDocument)
	assert.Equal(t, 0, store.Len())
}

func TestFinishPlain(t *testing.T) {
	cmp := &stubComparator{}
	svc, store := newService(t, runnerFunc(twoRecords), cmp)
	svc.now = func() time.Time { return time.UnixMilli(42) }

	_, err := svc.Extract(context.Background(), "s1", pdfDoc(), nil)
	require.NoError(t, err)

	wb, err := svc.Finish(context.Background(), "s1", false)
	require.NoError(t, err)
	assert.Equal(t, "medicamentos_42.xlsx", wb.FileName)
	assert.Equal(t, 2, wb.Records)
	assert.False(t, wb.Compared)
	assert.Zero(t, cmp.calls)
	assert.Equal(t, 0, store.Len(), "session released")

	rows := readRows(t, wb.Data)
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 7)
}

func TestFinishCompared(t *testing.T) {
	cmp := &stubComparator{}
	svc, _ := newService(t, runnerFunc(twoRecords), cmp)
	require.True(t, svc.CanCompare())

	_, err := svc.Extract(context.Background(), "s1", pdfDoc(), nil)
	require.NoError(t, err)

	wb, err := svc.Finish(context.Background(), "s1", true)
	require.NoError(t, err)
	assert.True(t, wb.Compared)
	assert.Equal(t, 1, cmp.calls)

	rows := readRows(t, wb.Data)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Código Proveedor General", "Precio Proveedor General"}, rows[0][7:])
	assert.Equal(t, []string{"G-2", "$125.000"}, rows[1][7:])

	_, err = svc.Finish(context.Background(), "s1", true)
	assert.ErrorIs(t, err, common.ErrNoPending, "second export finds nothing")
}

func TestFinishWithoutPending(t *testing.T) {
	svc, _ := newService(t, runnerFunc(twoRecords), nil)
	_, err := svc.Finish(context.Background(), "nobody", false)
	assert.ErrorIs(t, err, common.ErrNoPending)
}

func TestFinishEmptyExtraction(t *testing.T) {
	svc, _ := newService(t, runnerFunc(func(context.Context, segment.Document, pipeline.ProgressFunc) (pipeline.Result, error) {
		return pipeline.Result{TotalUnits: 1, SkippedUnits: []int{0}}, nil
	}), nil)

	sum, err := svc.Extract(context.Background(), "s1", pdfDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, sum.SkippedUnits)

	_, err = svc.Finish(context.Background(), "s1", false)
	assert.ErrorIs(t, err, common.ErrNoPending)
}

func TestFinishCompareUnavailable(t *testing.T) {
	svc, store := newService(t, runnerFunc(twoRecords), nil)
	assert.False(t, svc.CanCompare())

	_, err := svc.Extract(context.Background(), "s1", pdfDoc(), nil)
	require.NoError(t, err)

	_, err = svc.Finish(context.Background(), "s1", true)
	assert.ErrorIs(t, err, common.ErrCatalogLookup)
	assert.Equal(t, 1, store.Len(), "records stay pending")
}

func TestDiscard(t *testing.T) {
	svc, _ := newService(t, runnerFunc(twoRecords), nil)
	_, err := svc.Extract(context.Background(), "s1", pdfDoc(), nil)
	require.NoError(t, err)

	assert.True(t, svc.Discard("s1"))
	assert.False(t, svc.Discard("s1"))
	_, err = svc.Finish(context.Background(), "s1", false)
	assert.ErrorIs(t, err, common.ErrNoPending)
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	return rows
}
