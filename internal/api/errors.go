package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/ingestion"
	"github.com/rpattn/projectledger/internal/middleware"
	"github.com/rpattn/projectledger/internal/search"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

var (
	errUnsupportedMediaType = errors.New("unsupported media type")
	errMethodNotAllowed     = errors.New("method not allowed")
	errRouteNotFound        = errors.New("no such route")
)

type errorMapping struct {
	target error
	status int
	code   string
}

// statusTable is checked in order; the first sentinel found in the chain wins.
var statusTable = []errorMapping{
	{domain.ErrInvalidFilter, http.StatusBadRequest, "INVALID_FILTER"},
	{domain.ErrDuplicateIdentity, http.StatusBadRequest, "DUPLICATE_IDENTITY"},
	{domain.ErrMissingIdentity, http.StatusBadRequest, "MISSING_IDENTITY"},
	{domain.ErrIdentityMismatch, http.StatusBadRequest, "IDENTITY_MISMATCH"},
	{domain.ErrUnknownIdentity, http.StatusBadRequest, "UNKNOWN_IDENTITY"},
	{domain.ErrMissingOwner, http.StatusBadRequest, "MISSING_OWNER"},
	{domain.ErrIdentityImmutable, http.StatusBadRequest, "IDENTITY_IMMUTABLE"},
	{domain.ErrOwnerReassigned, http.StatusBadRequest, "OWNER_REASSIGNED"},
	{domain.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{errRouteNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrReferenced, http.StatusConflict, "REFERENCED"},
	{errMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	{errUnsupportedMediaType, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
	{ingestion.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"},
}

func classify(err error) (int, string) {
	for _, m := range statusTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	var ie *search.IndexError
	if errors.As(err, &ie) {
		return http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// writeError maps err onto a status and writes the error body. Server-side
// failures are logged; their message is not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, code := classify(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}

	writeJSON(w, status, ErrorResponse{
		Status:    "error",
		ErrorCode: code,
		Message:   message,
		RequestID: middleware.RequestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
