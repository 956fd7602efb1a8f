package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/neuralos/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Detail string `json:"detail"`
}

func errorBody(msg string) errResponse {
	return errResponse{Detail: msg}
}

// writeError maps a service error to its status. notFound is the detail
// reported for apperr.ErrNotFound; other failures expose the error text.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(notFound))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}

// decodeJSON reads a JSON body into v and runs its validation rules.
// Both failures are reported as 422.
func decodeJSON(w http.ResponseWriter, r *http.Request, v validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("invalid JSON body: "+err.Error()))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		return false
	}
	return true
}
