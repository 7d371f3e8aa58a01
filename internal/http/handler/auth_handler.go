package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go-report-access-service/internal/http/middleware"
	"go-report-access-service/internal/http/response"
	"go-report-access-service/internal/observability"
	"go-report-access-service/internal/repository"
	"go-report-access-service/internal/security"
	"go-report-access-service/internal/service"
)

type AuthHandler struct {
	auth       *service.AuthService
	users      repository.UserRepository
	cookies    *security.CookieManager
	sessionTTL time.Duration
}

func NewAuthHandler(auth *service.AuthService, users repository.UserRepository, cookies *security.CookieManager, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, cookies: cookies, sessionTTL: sessionTTL}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "email and password are required", nil)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			response.Error(w, r, http.StatusConflict, "CONFLICT", "email already registered", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to register", nil)
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "user.register",
		Actor:      user.Email,
		TargetType: "user",
		TargetID:   strconv.FormatUint(uint64(user.ID), 10),
		Action:     "create",
		Outcome:    "success",
		Reason:     "user_created",
	})
	response.JSON(w, r, http.StatusCreated, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to log in", nil)
		return
	}

	h.cookies.SetSessionCookie(w, token, h.sessionTTL)
	observability.EmitAudit(r, observability.AuditInput{
		EventName:  "user.login",
		Actor:      user.Email,
		TargetType: "user",
		TargetID:   strconv.FormatUint(uint64(user.ID), 10),
		Action:     "login",
		Outcome:    "success",
		Reason:     "credentials_verified",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{
		"id":    user.ID,
		"email": user.Email,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearSessionCookie(w)
	response.JSON(w, r, http.StatusOK, map[string]any{"loggedOut": true})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	id64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session subject", nil)
		return
	}
	user, err := h.users.FindByID(r.Context(), uint(id64))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load user", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}
