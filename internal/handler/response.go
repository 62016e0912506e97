package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kvshvl/platform-core/internal/domain"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// Error writes an error JSON response. Refusals carry their stable reason
// code; anything else collapses to a generic 500 so no internal detail
// leaks to the caller.
func Error(w http.ResponseWriter, err error) {
	if appErr, ok := domain.AsAppError(err); ok {
		body := map[string]string{"error": appErr.Message}
		if appErr.Reason != "" {
			body["reason"] = appErr.Reason
		}
		if appErr.Code >= http.StatusInternalServerError {
			slog.Error("request failed", "error", appErr.Error())
			body = map[string]string{"error": appErr.Message}
		}
		JSON(w, appErr.Code, body)
		return
	}
	slog.Error("unhandled error", "error", err)
	JSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}
