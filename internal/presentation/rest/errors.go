package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/port"
	"github.com/cschwartz85032/loanserve-sub001/internal/domain/service"
	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
	pgshared "github.com/cschwartz85032/loanserve-sub001/pkg/postgres"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps domain errors to HTTP responses. Anything unrecognized is
// logged in full and answered with an opaque 500; internals never reach the
// response body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var invalid *service.InvalidEnvelopeError
	switch {
	case errors.Is(err, port.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
	case errors.Is(err, pgshared.ErrNoTenant):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing tenant", Code: "missing_tenant"})
	case errors.Is(err, usecase.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorBody{Error: "a servicing run is already active", Code: "run_in_progress"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: invalid.Error(), Code: invalid.Code()})
	default:
		logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}
