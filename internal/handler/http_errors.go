package handler

import (
	"errors"
	"net/http"

	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
)

// statusFor maps the service error taxonomy onto HTTP. The fallthrough
// is 500; handlers that need a richer body (the offset conflict) handle
// that case before calling this.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, maxmeet_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, maxmeet_errors.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, maxmeet_errors.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "CHUNK_TOO_LARGE"
	case errors.Is(err, maxmeet_errors.ErrUploadConflict):
		return http.StatusConflict, "OFFSET_CONFLICT"
	case errors.Is(err, maxmeet_errors.ErrUploadClosed):
		return http.StatusConflict, "UPLOAD_CLOSED"
	case errors.Is(err, maxmeet_errors.ErrChecksumMismatch):
		return http.StatusUnprocessableEntity, "CHECKSUM_MISMATCH"
	case errors.Is(err, maxmeet_errors.ErrRetryExhausted):
		return http.StatusConflict, "RETRY_EXHAUSTED"
	case errors.Is(err, maxmeet_errors.ErrAlreadyExists), errors.Is(err, maxmeet_errors.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
