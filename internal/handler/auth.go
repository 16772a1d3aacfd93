package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"datum/internal/domain"
	"datum/internal/domain/services"
	"datum/internal/httputil"
)

// AuthHandler handles login and self-service password changes
type AuthHandler struct {
	accountService services.AccountService
	logger         *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accountService services.AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		logger:         logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// accountResponse is the {success, message} body of the auth endpoints
type accountResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Login exchanges credentials for tokens
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	result, err := h.accountService.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, domain.ErrUnauthorized) {
		httputil.RespondJSON(w, http.StatusUnauthorized, accountResponse{Message: "Invalid username or password"})
		return
	}
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// ChangePassword replaces the caller's temporary password
// POST /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, err := principal(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req changePasswordRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.accountService.ChangePassword(r.Context(), caller.Subject, req.NewPassword); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, accountResponse{Success: true, Message: "Password changed successfully"})
}
