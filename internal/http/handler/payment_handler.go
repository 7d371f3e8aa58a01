package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go-report-access-service/internal/http/response"
	"go-report-access-service/internal/observability"
	"go-report-access-service/internal/service"
)

type PaymentHandler struct {
	payments service.PaymentServiceInterface
}

func NewPaymentHandler(payments service.PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type confirmPaymentRequest struct {
	SessionID string `json:"sessionId"`
}

// Confirm turns a paid checkout session into exactly one report token.
// Duplicate deliveries of the same session id replay the first outcome.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "sessionId is required", nil)
		return
	}

	result, err := h.payments.Confirm(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotCompleted):
			response.Error(w, r, http.StatusPaymentRequired, "PAYMENT_REQUIRED", "payment is not completed", nil)
		case errors.Is(err, service.ErrPaymentConfirmInFlight):
			response.Error(w, r, http.StatusConflict, "CONFLICT", "confirmation already in progress", nil)
		case errors.Is(err, service.ErrPaymentSessionNotFound):
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "payment session not found", nil)
		case errors.Is(err, service.ErrPaymentUpstream):
			response.Error(w, r, http.StatusBadGateway, "BAD_GATEWAY", "payment provider unavailable", nil)
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to confirm payment", nil)
		}
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "payment.confirm",
		TargetType: "payment_session",
		TargetID:   req.SessionID,
		Action:     "confirm",
		Outcome:    "success",
		Reason:     "token_minted",
	}, "replayed", result.Replayed)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"reportUrl": result.ReportURL,
		"replayed":  result.Replayed,
	})
}
