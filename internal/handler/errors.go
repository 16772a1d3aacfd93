package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"datum/internal/domain"
	"datum/internal/httputil"
)

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		// ErrUpstream and anything unanticipated
		return http.StatusInternalServerError
	}
}

// handleError converts domain errors to HTTP responses. Server errors are
// logged with the request id and answered without internal detail.
func handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := errorStatus(err)
	if status < http.StatusInternalServerError {
		httputil.RespondError(w, status, err.Error())
		return
	}

	logger.Error("request failed",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", httputil.GetRequestID(r.Context()),
	)

	var upstream *domain.UpstreamError
	if errors.As(err, &upstream) {
		httputil.RespondErrorWithExtras(w, status, "upstream service failure", map[string]any{
			"service": upstream.Service,
		})
		return
	}
	httputil.RespondError(w, status, "internal server error")
}

// handleDocumentError is handleError for document edits, where changing a
// purchase that left DRAFT is forbidden rather than a bad request.
func handleDocumentError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, domain.ErrInvalidState) {
		httputil.RespondError(w, http.StatusForbidden, err.Error())
		return
	}
	handleError(w, r, logger, err)
}
