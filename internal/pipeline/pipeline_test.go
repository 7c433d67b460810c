package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/llm"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment/segmenttest"
)

type fakeSegmenter struct {
	units    int
	countErr error
	unitErrs map[int]error
}

func (f *fakeSegmenter) CountUnits(segment.Document) (int, error) {
	return f.units, f.countErr
}

func (f *fakeSegmenter) ExtractUnit(_ segment.Document, index int) (segment.Unit, error) {
	if err := f.unitErrs[index]; err != nil {
		return segment.Unit{}, err
	}
	return segment.Unit{Index: index, Data: []byte{byte(index)}, MIMEType: "application/pdf"}, nil
}

// pageExtractor answers with the page number in the record names.
func pageExtractor(perPage int, failing map[int]error) llm.Extractor {
	return llm.ExtractorFunc(func(_ context.Context, u segment.Unit) (string, error) {
		if err := failing[u.Index]; err != nil {
			return "", err
		}
		out := "["
		for j := 0; j < perPage; j++ {
			if j > 0 {
				out += ","
			}
			out += fmt.Sprintf(`{"nombre":"p%d-r%d"}`, u.Index+1, j+1)
		}
		return out + "]", nil
	})
}

type sleeps struct{ waits []time.Duration }

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func names(res Result) []string {
	out := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		out = append(out, r.Name)
	}
	return out
}

func TestRunPreservesOrder(t *testing.T) {
	sl := &sleeps{}
	p := New(&fakeSegmenter{units: 3}, pageExtractor(2, nil), nil, WithSleep(sl.sleep))

	var progress [][2]int
	res, err := p.Run(context.Background(), segment.Document{}, func(cur, total int) {
		progress = append(progress, [2]int{cur, total})
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"p1-r1", "p1-r2", "p2-r1", "p2-r2", "p3-r1", "p3-r2"}, names(res))
	assert.Equal(t, 3, res.TotalUnits)
	assert.Empty(t, res.SkippedUnits)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sl.waits)
}

func TestRunSkipsFailedUnit(t *testing.T) {
	sl := &sleeps{}
	failing := map[int]error{1: fmt.Errorf("%w: bad request", common.ErrExtractionFailed)}
	p := New(&fakeSegmenter{units: 3}, pageExtractor(1, failing), nil, WithSleep(sl.sleep))

	res, err := p.Run(context.Background(), segment.Document{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1-r1", "p3-r1"}, names(res))
	assert.Equal(t, 3, res.TotalUnits)
	assert.Equal(t, []int{1}, res.SkippedUnits)
	assert.Len(t, sl.waits, 2)
}

func TestRunSkipsSegmenterUnitError(t *testing.T) {
	seg := &fakeSegmenter{units: 2, unitErrs: map[int]error{0: common.ErrMalformedDocument}}
	p := New(seg, pageExtractor(1, nil), nil, WithUnitDelay(0))

	res, err := p.Run(context.Background(), segment.Document{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2-r1"}, names(res))
	assert.Equal(t, []int{0}, res.SkippedUnits)
}

func TestRunCountFailureIsFatal(t *testing.T) {
	seg := &fakeSegmenter{countErr: common.ErrMalformedDocument}
	p := New(seg, pageExtractor(1, nil), nil)

	_, err := p.Run(context.Background(), segment.Document{}, nil)
	assert.ErrorIs(t, err, common.ErrMalformedDocument)
}

func TestRunStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(&fakeSegmenter{units: 3}, pageExtractor(1, nil), nil, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	res, err := p.Run(ctx, segment.Document{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"p1-r1"}, names(res))
}

func TestRunKeepsDegradedRecord(t *testing.T) {
	ext := llm.ExtractorFunc(func(context.Context, segment.Unit) (string, error) {
		return "no JSON here", nil
	})
	p := New(&fakeSegmenter{units: 1}, ext, nil)

	res, err := p.Run(context.Background(), segment.Document{}, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Degraded)
	assert.Equal(t, "no JSON here", res.Records[0].Name)
}

func TestSingleImageScenario(t *testing.T) {
	var seen []segment.Unit
	ext := llm.ExtractorFunc(func(_ context.Context, u segment.Unit) (string, error) {
		seen = append(seen, u)
		return "```json\n[{\"nombre\":\"Loratadina 10mg Tab x 10\",\"valorUnitario\":\"3.500\"}]\n```", nil
	})
	sl := &sleeps{}
	p := New(segment.New(nil), ext, nil, WithSleep(sl.sleep))

	img := segmenttest.PNG()
	res, err := p.Run(context.Background(), segment.NewDocument(img, "image/png"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalUnits)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Loratadina 10mg Tab x 10", res.Records[0].Name)
	assert.Equal(t, "0", res.Records[0].Tax)
	require.Len(t, seen, 1)
	assert.Equal(t, img, seen[0].Data)
	assert.Empty(t, sl.waits)
}

func TestThreePagePDFWithFailingSecondPage(t *testing.T) {
	calls := 0
	ext := llm.ExtractorFunc(func(_ context.Context, u segment.Unit) (string, error) {
		calls++
		if u.Index == 1 {
			return "", &llm.StatusError{Code: http.StatusBadRequest, Body: "invalid page"}
		}
		assert.Equal(t, "application/pdf", u.MIMEType)
		return fmt.Sprintf(`[{"nombre":"page %d"}]`, u.Index+1), nil
	})
	retrying := llm.NewRetrying(ext, nil, llm.WithSleep(func(context.Context, time.Duration) error { return nil }))
	p := New(segment.New(nil), retrying, nil, WithUnitDelay(0))

	res, err := p.Run(context.Background(), segment.NewDocument(segmenttest.PDF(3), "application/pdf"), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalUnits)
	assert.Equal(t, []string{"page 1", "page 3"}, names(res))
	assert.Equal(t, []int{1}, res.SkippedUnits)
	assert.Equal(t, 3, calls, "non-retryable failure is attempted once")
}

func TestMalformedPDFIsFatal(t *testing.T) {
	p := New(segment.New(nil), pageExtractor(1, nil), nil)
	_, err := p.Run(context.Background(), segment.NewDocument([]byte("%PDF-broken"), "application/pdf"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMalformedDocument))
}
