package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
)

// ServicingHandler exposes the daily cycle's control surface: start a run,
// inspect it, cancel it, execute it, and replay a single loan.
type ServicingHandler struct {
	start  *usecase.StartServicingRunUseCase
	get    *usecase.GetServicingRunUseCase
	cancel *usecase.CancelServicingRunUseCase
	cycle  *usecase.RunServicingCycleUseCase
	logger *slog.Logger
}

// NewServicingHandler creates a servicing-run HTTP handler.
func NewServicingHandler(
	start *usecase.StartServicingRunUseCase,
	get *usecase.GetServicingRunUseCase,
	cancel *usecase.CancelServicingRunUseCase,
	cycle *usecase.RunServicingCycleUseCase,
	logger *slog.Logger,
) *ServicingHandler {
	return &ServicingHandler{start: start, get: get, cancel: cancel, cycle: cycle, logger: logger}
}

// RegisterRoutes attaches servicing routes to the given mux.
func (h *ServicingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /v1/servicing/runs", WithTenant(http.HandlerFunc(h.startRun)))
	mux.Handle("GET /v1/servicing/runs/{id}", WithTenant(http.HandlerFunc(h.getRun)))
	mux.Handle("POST /v1/servicing/runs/{id}/cancel", WithTenant(http.HandlerFunc(h.cancelRun)))
	mux.Handle("POST /v1/servicing/runs/{id}/execute", WithTenant(http.HandlerFunc(h.executeRun)))
	mux.Handle("POST /v1/servicing/runs/{id}/loans/{loanID}/reprocess", WithTenant(http.HandlerFunc(h.reprocessLoan)))
}

func (h *ServicingHandler) startRun(w http.ResponseWriter, r *http.Request) {
	var cmd dto.StartServicingRunCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if cmd.ValuationDate == "" {
		badRequest(w, "valuation_date is required")
		return
	}

	resp, err := h.start.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *ServicingHandler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "malformed run id")
		return
	}

	resp, err := h.get.Execute(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ServicingHandler) cancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "malformed run id")
		return
	}

	resp, err := h.cancel.Execute(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ServicingHandler) executeRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "malformed run id")
		return
	}

	resp, err := h.cycle.Execute(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ServicingHandler) reprocessLoan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "malformed run id")
		return
	}
	loanID := r.PathValue("loanID")
	if loanID == "" {
		badRequest(w, "loan id is required")
		return
	}

	resp, err := h.cycle.ReprocessLoan(r.Context(), id, loanID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
