package llm

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// StatusError is a non-2xx reply from an extraction service.
type StatusError struct {
	Code   int    // HTTP status
	Status string // provider status name, e.g. RESOURCE_EXHAUSTED
	Body   string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("extraction service status %d (%s): %s", e.Code, e.Status, truncate(e.Body, 256))
	}
	return fmt.Sprintf("extraction service status %d: %s", e.Code, truncate(e.Body, 256))
}

// IsRetryable reports whether err is a rate-limit, overload or unavailable
// reply. All three are handled the same way.
func IsRetryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	switch se.Status {
	case "RESOURCE_EXHAUSTED", "UNAVAILABLE", "INTERNAL":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
