package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

// classifyError maps a service error onto an HTTP status and error code.
func classifyError(err error) (int, string) {
	var provErr *avatar.ProviderError
	switch {
	case errors.Is(err, avatar.ErrTimeout):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, avatar.ErrInvalidInput):
		return http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, avatar.ErrNoAudioTrack):
		return http.StatusUnprocessableEntity, "NO_AUDIO_TRACK"
	case errors.Is(err, avatar.ErrNoOutputProduced):
		return http.StatusInternalServerError, "NO_OUTPUT"
	case errors.Is(err, avatar.ErrNoProviderConfigured), errors.Is(err, avatar.ErrProviderUnconfigured):
		return http.StatusInternalServerError, "NO_PROVIDER"
	case errors.As(err, &provErr):
		return http.StatusInternalServerError, "PROVIDER_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeServiceError classifies err, logs server-side failures, and writes
// the error body.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		requestID, _ := r.Context().Value(RequestIDKey).(string)
		logger.Error("request failed", "path", r.URL.Path, "code", code, "error", err, "request_id", requestID)
	}
	WriteError(w, status, err.Error(), code)
}
