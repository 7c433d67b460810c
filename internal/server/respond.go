package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joseph-ayodele/pharma-quotes/internal/common"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("http.response.marshal_failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), RequestID: common.RequestIDFromContext(r.Context())}

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Error = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.request.failed", "req_id", body.RequestID, "session_id", common.SessionIDFromContext(r.Context()), "status", status, "error", err)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	} else {
		s.logger.Info("http.request.rejected", "req_id", body.RequestID, "session_id", common.SessionIDFromContext(r.Context()), "status", status, "error", err)
	}
	respondWithJSON(w, status, body)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrMalformedDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNoPending), errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrQueueFull), errors.Is(err, common.ErrQueueClosed),
		errors.Is(err, common.ErrCatalogLookup), errors.Is(err, common.ErrDatabase):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
