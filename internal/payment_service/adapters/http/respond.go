package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

const (
	MaxRequestBodySize = 1 << 20  // 1 MB
	MaxPaymentBodySize = 10 << 20 // proof images ride along base64 encoded
)

var errBodyTooLarge = errors.New("request body too large")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readBody returns the raw body, which HMAC checks need, and decodes it into dst.
func readBody(w http.ResponseWriter, r *http.Request, limit int64, dst any) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return nil, domain.NewValidationError("body", "invalid JSON")
	}
	return body, nil
}

// validationFailure turns the first validator field error into a domain
// validation error.
func validationFailure(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(fe.Field(), "failed "+fe.Tag())
	}
	return domain.NewValidationError("body", err.Error())
}

// writeError maps domain errors onto status codes. Persistence failures get
// a generic message; the cause is logged only.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		vErr   *domain.ValidationError
		dupErr *domain.DuplicateTransactionError
	)
	switch {
	case errors.Is(err, errBodyTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body_too_large"})
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_failed", Message: vErr.Reason, Field: vErr.Field})
	case errors.Is(err, domain.ErrAuthentication):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	case errors.As(err, &dupErr):
		writeJSON(w, http.StatusConflict, DuplicatePaymentResponse{Error: "duplicate_transaction", ExistingPaymentID: dupErr.ExistingID})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not_found"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "conflict"})
	default:
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "an internal error occurred"})
	}
}
