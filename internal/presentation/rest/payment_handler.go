package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/application/usecase"
)

// PaymentHandler exposes payment reads and manual reversals. Payment intake
// itself arrives over the broker, not HTTP.
type PaymentHandler struct {
	get     *usecase.GetPaymentUseCase
	reverse *usecase.ReversePaymentUseCase
	logger  *slog.Logger
}

// NewPaymentHandler creates a payment HTTP handler.
func NewPaymentHandler(get *usecase.GetPaymentUseCase, reverse *usecase.ReversePaymentUseCase, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{get: get, reverse: reverse, logger: logger}
}

// RegisterRoutes attaches payment routes to the given mux.
func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /v1/payments/{id}", WithTenant(http.HandlerFunc(h.getPayment)))
	mux.Handle("POST /v1/payments/{id}/reverse", WithTenant(http.HandlerFunc(h.reversePayment)))
}

func (h *PaymentHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "malformed payment id")
		return
	}

	resp, err := h.get.Execute(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

func (h *PaymentHandler) reversePayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		badRequest(w, "malformed payment id")
		return
	}

	var req reverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		badRequest(w, "reason is required")
		return
	}

	resp, err := h.reverse.Execute(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
