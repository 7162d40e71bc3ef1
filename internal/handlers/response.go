package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"excursion-booking/internal/middleware"
	"excursion-booking/internal/models"
)

const maxBodyBytes = 1 << 20

// statusForError maps an error category to an HTTP status code
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSignatureVerification):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrExternalDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error response for err. Client errors carry the
// domain message; server errors are logged and answered generically.
func respondError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status := statusForError(err)

	if status >= http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Int("status", status).
			Msg("Request failed")

		message := http.StatusText(status)
		if status == http.StatusBadGateway {
			message = "An external service is unavailable, please try again later"
		}
		middleware.WriteError(w, status, message)
		return
	}

	message := err.Error()
	var domainErr *models.Error
	if errors.As(err, &domainErr) {
		message = domainErr.Error()
	}
	middleware.WriteError(w, status, message)
}

// decodeJSON decodes a JSON request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return &models.Error{Kind: models.ErrInvalidInput, Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}

// int64Param reads a positive integer URL parameter
func int64Param(r *http.Request, name string) (int64, error) {
	value, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || value <= 0 {
		return 0, &models.Error{Kind: models.ErrInvalidInput, Message: fmt.Sprintf("invalid %s", name)}
	}
	return value, nil
}
