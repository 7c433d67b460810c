package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/entity"
	"github.com/joseph-ayodele/pharma-quotes/internal/export"
	"github.com/joseph-ayodele/pharma-quotes/internal/pipeline"
	"github.com/joseph-ayodele/pharma-quotes/internal/quotes"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

type fakeQuotes struct {
	extractErr error
	finishErr  error
	gotDoc     segment.Document
	gotSession string
	gotCompare bool
	discarded  map[string]bool
}

func (f *fakeQuotes) Extract(_ context.Context, sessionID string, doc segment.Document, onProgress pipeline.ProgressFunc) (quotes.Summary, error) {
	f.gotDoc, f.gotSession = doc, sessionID
	if f.extractErr != nil {
		return quotes.Summary{}, f.extractErr
	}
	onProgress(1, 1)
	rec := entity.NewMedicationRecord()
	rec.Name = "Acetaminofen 500mg"
	if sessionID == "" {
		sessionID = "generated"
	}
	return quotes.Summary{SessionID: sessionID, TotalUnits: 1, SkippedUnits: []int{}, Records: []entity.MedicationRecord{rec}}, nil
}

func (f *fakeQuotes) Finish(_ context.Context, sessionID string, compare bool) (quotes.Workbook, error) {
	f.gotSession, f.gotCompare = sessionID, compare
	if f.finishErr != nil {
		return quotes.Workbook{}, f.finishErr
	}
	return quotes.Workbook{FileName: "medicamentos_1.xlsx", Data: []byte("xlsx-bytes"), Records: 1, Compared: compare}, nil
}

func (f *fakeQuotes) Discard(sessionID string) bool { return f.discarded[sessionID] }

func (f *fakeQuotes) CanCompare() bool { return true }

func newTestServer(svc QuoteService, check Checker) *Server {
	return New(Config{MaxUploadBytes: 1 << 20}, svc, check, nil)
}

func upload(t *testing.T, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/quotes", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestExtractEndpoint(t *testing.T) {
	svc := &fakeQuotes{}
	srv := newTestServer(svc, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, upload(t, "factura.PDF", "", []byte("%PDF-1.4"), map[string]string{"session": "573001234567@c.us"}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, constants.MIMEPDF, svc.gotDoc.MIMEType)
	assert.Equal(t, "573001234567@c.us", svc.gotSession)

	var got struct {
		SessionID    string                    `json:"session_id"`
		TotalUnits   int                       `json:"total_units"`
		SkippedUnits []int                     `json:"skipped_units"`
		Records      []entity.MedicationRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "573001234567@c.us", got.SessionID)
	assert.Equal(t, 1, got.TotalUnits)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Acetaminofen 500mg", got.Records[0].Name)
	assert.Equal(t, "N/A", got.Records[0].RegulatoryCode)
}

func TestExtractUsesPartContentType(t *testing.T) {
	svc := &fakeQuotes{}
	rec := httptest.NewRecorder()
	newTestServer(svc, nil).Handler().ServeHTTP(rec, upload(t, "blob", "image/png", []byte("png"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", svc.gotDoc.MIMEType)
}

func TestExtractRejections(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeQuotes
		req  func(t *testing.T) *http.Request
		want int
	}{
		{
			name: "missing file",
			svc:  &fakeQuotes{},
			req:  func(t *testing.T) *http.Request { return upload(t, "", "", nil, map[string]string{"session": "x"}) },
			want: http.StatusBadRequest,
		},
		{
			name: "unsupported extension",
			svc:  &fakeQuotes{},
			req:  func(t *testing.T) *http.Request { return upload(t, "lista.docx", "", []byte("x"), nil) },
			want: http.StatusUnsupportedMediaType,
		},
		{
			name: "malformed document",
			svc:  &fakeQuotes{extractErr: fmt.Errorf("count: %w", common.ErrMalformedDocument)},
			req:  func(t *testing.T) *http.Request { return upload(t, "a.pdf", "", []byte("junk"), nil) },
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "queue full",
			svc:  &fakeQuotes{extractErr: fmt.Errorf("submit: %w", common.ErrQueueFull)},
			req:  func(t *testing.T) *http.Request { return upload(t, "a.jpg", "", []byte("x"), nil) },
			want: http.StatusServiceUnavailable,
		},
		{
			name: "too large",
			svc:  &fakeQuotes{},
			req: func(t *testing.T) *http.Request {
				return upload(t, "a.pdf", "", bytes.Repeat([]byte("a"), 2<<20), nil)
			},
			want: http.StatusRequestEntityTooLarge,
		},
		{
			name: "not multipart",
			svc:  &fakeQuotes{},
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewBufferString("{}"))
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestServer(tt.svc, nil).Handler().ServeHTTP(rec, tt.req(t))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestExportEndpoint(t *testing.T) {
	svc := &fakeQuotes{}
	srv := newTestServer(svc, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/quotes/s1/export?compare=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="medicamentos_1.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "xlsx-bytes", rec.Body.String())
	assert.Equal(t, "s1", svc.gotSession)
	assert.True(t, svc.gotCompare)
}

func TestExportErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeQuotes{}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/quotes/s1/export?compare=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	newTestServer(&fakeQuotes{finishErr: common.ErrNoPending}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/quotes/s1/export", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	unavailable := common.NewAppError("COMPARISON_UNAVAILABLE", "price comparison is not configured", common.ErrCatalogLookup)
	newTestServer(&fakeQuotes{finishErr: unavailable}, nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/quotes/s1/export?compare=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "COMPARISON_UNAVAILABLE", body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestDiscardEndpoint(t *testing.T) {
	srv := newTestServer(&fakeQuotes{discarded: map[string]bool{"s1": true}}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/quotes/s1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/quotes/s2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeQuotes{}, func(context.Context) error { return nil })
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	resp, err := srv.health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	srv = newTestServer(&fakeQuotes{}, func(context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp, err = srv.health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeQuotes{}, nil)
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_request_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(common.NewAppError("VALIDATION_ERROR", "x", common.ErrInvalidInput)))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(fmt.Errorf("run: %w", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
