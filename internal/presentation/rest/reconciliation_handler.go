package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/dto"
	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
)

// ReconciliationHandler records bank-vs-ledger comparisons submitted by the
// treasury side after each statement import.
type ReconciliationHandler struct {
	record *usecase.RecordReconciliationUseCase
	logger *slog.Logger
}

// NewReconciliationHandler creates a reconciliation HTTP handler.
func NewReconciliationHandler(record *usecase.RecordReconciliationUseCase, logger *slog.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{record: record, logger: logger}
}

// RegisterRoutes attaches reconciliation routes to the given mux.
func (h *ReconciliationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("PUT /v1/reconciliations", WithTenant(http.HandlerFunc(h.recordReconciliation)))
}

func (h *ReconciliationHandler) recordReconciliation(w http.ResponseWriter, r *http.Request) {
	var cmd dto.RecordReconciliationCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if cmd.Channel == "" || cmd.PeriodStart == "" || cmd.PeriodEnd == "" {
		badRequest(w, "channel, period_start and period_end are required")
		return
	}

	resp, err := h.record.Execute(r.Context(), cmd)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
