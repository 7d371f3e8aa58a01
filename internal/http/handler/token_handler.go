package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go-report-access-service/internal/http/response"
	"go-report-access-service/internal/observability"
	"go-report-access-service/internal/service"
)

type TokenHandler struct {
	tokens service.TokenServiceInterface
}

func NewTokenHandler(tokens service.TokenServiceInterface) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type createTokenRequest struct {
	Email   string `json:"email"`
	OrderID string `json:"orderId"`
}

func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.Email == "" || req.OrderID == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "email and orderId are required", nil)
		return
	}

	issued, err := h.tokens.Issue(r.Context(), req.Email, req.OrderID, 0)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create token", nil)
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "token.issue",
		TargetType: "access_token",
		TargetID:   req.OrderID,
		Action:     "create",
		Outcome:    "success",
		Reason:     "token_issued",
	}, "email", req.Email, "expires_at", issued.ExpiresAt)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"reportUrl": issued.ReportURL,
	})
}

// Check reports the precise rejection reason. Finalise deliberately does
// not; the read-only probe is where the frontend differentiates messaging.
func (h *TokenHandler) Check(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "key is required", nil)
		return
	}

	check, err := h.tokens.Check(r.Context(), key)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to check token", nil)
		return
	}
	switch check.Status {
	case service.TokenStatusValid:
		response.JSON(w, r, http.StatusOK, map[string]any{
			"ok":        true,
			"expiresAt": check.ExpiresAt.Format(time.RFC3339),
		})
	case service.TokenStatusNotFound:
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "token not found", nil)
	case service.TokenStatusUsed:
		response.Error(w, r, http.StatusConflict, "CONFLICT", "token already used", nil)
	case service.TokenStatusExpired:
		response.Error(w, r, http.StatusGone, "GONE", "token expired", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to check token", nil)
	}
}

func (h *TokenHandler) Finalise(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "key is required", nil)
		return
	}

	if err := h.tokens.Finalise(r.Context(), key); err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			response.Error(w, r, http.StatusBadRequest, "INVALID_TOKEN", "token invalid or already used", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to finalise token", nil)
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "token.finalise",
		TargetType: "access_token",
		TargetID:   "redacted",
		Action:     "consume",
		Outcome:    "success",
		Reason:     "token_consumed",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{"finalised": true})
}
