package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/archivia/internal/common"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnavailable  = "STORE_UNAVAILABLE"
	CodeInternal     = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps an error to its HTTP status and error code. Partial batch
// failures are not handled here; they carry a report body.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, common.ErrStoreUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope. Server-side failures get a generic
// message so store internals do not leak to clients.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		h.log.Warn(r.Context(), "store unavailable", "path", r.URL.Path, "error", err)
		msg = "a backing store is unavailable, retry later"
	case http.StatusInternalServerError:
		h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}
