package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/pharma-quotes/constants"
	"github.com/joseph-ayodele/pharma-quotes/internal/common"
	"github.com/joseph-ayodele/pharma-quotes/internal/export"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

type healthResponse struct {
	Status     string `json:"status"`
	Catalog    string `json:"catalog"`
	Comparison bool   `json:"comparison"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Catalog: "ok", Comparison: s.svc.CanCompare()}
	code := http.StatusOK
	if s.check == nil {
		resp.Catalog = "disabled"
	} else if err := s.Ready(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Catalog = "unavailable"
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, resp)
}

// handleExtract accepts a multipart upload with a "file" part and an optional
// "session" field.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.respondWithError(w, r, err)
			return
		}
		s.respondWithError(w, r, fmt.Errorf("%w: multipart form: %v", common.ErrInvalidInput, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondWithError(w, r, common.NewAppError("VALIDATION_ERROR", "file part is required", common.ErrInvalidInput))
		return
	}
	defer func() { _ = file.Close() }()

	mimeType := segment.DetectMIME(header.Filename)
	if mimeType == "" && constants.FormatForMIME(header.Header.Get("Content-Type")) != "" {
		mimeType = header.Header.Get("Content-Type")
	}
	if mimeType == "" {
		s.respondWithError(w, r, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, header.Filename))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondWithError(w, r, fmt.Errorf("%w: read upload: %v", common.ErrInvalidInput, err))
		return
	}

	sessionID := strings.TrimSpace(r.FormValue("session"))
	reqID := common.RequestIDFromContext(r.Context())
	r = r.WithContext(common.WithSessionID(r.Context(), sessionID))

	summary, err := s.svc.Extract(r.Context(), sessionID, segment.NewDocument(data, mimeType), func(current, total int) {
		s.logger.Info("quotes.progress", "req_id", reqID, "session_id", sessionID, "unit", current, "total", total)
	})
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session")
	r = r.WithContext(common.WithSessionID(r.Context(), sessionID))

	compare := false
	if raw := r.URL.Query().Get("compare"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondWithError(w, r, common.NewAppError("VALIDATION_ERROR", "compare must be true or false", common.ErrInvalidInput))
			return
		}
		compare = v
	}

	wb, err := s.svc.Finish(r.Context(), sessionID, compare)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", wb.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(wb.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wb.Data)
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Discard(chi.URLParam(r, "session")) {
		s.respondWithError(w, r, common.ErrNoPending)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
