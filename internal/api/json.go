package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/float/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported as 500.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("version mismatch"))
	case errors.Is(err, apperr.ErrInFlight):
		writeJSON(w, http.StatusConflict, errorBody("execution already in flight"))
	case errors.Is(err, apperr.ErrContentTooLong):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("content exceeds block limit"))
	case errors.Is(err, apperr.ErrNotExecutable):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("block is not executable"))
	case errors.Is(err, apperr.ErrInvalidType):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid block type"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
