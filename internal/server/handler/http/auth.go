// Package http provides the catalog server's HTTP handlers and routing.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/middleware"
	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/repository"
	"github.com/atinyakov/GophShop/internal/service"
)

// AuthService defines the authentication operations required by the
// HTTP handlers.
type AuthService interface {
	// Login returns service.ErrInvalidCredentials for a bad username or password.
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	Register(ctx context.Context, profile models.User, password string) (*models.User, error)
	Me(ctx context.Context, claims *service.Claims) (*models.User, error)
}

// AuthHandler handles login, registration and profile requests.
type AuthHandler struct {
	AuthService AuthService
	Logger      *zap.Logger
}

// RegisterRequest is the JSON payload for user registration.
type RegisterRequest struct {
	models.User
	Password string `json:"password"`
}

// Login handles POST /auth/login. Bad credentials answer 400 with
// {"message": "Invalid credentials"}.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Username and password required")
		return
	}

	resp, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if err != nil {
		h.internalError(w, "login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	u, err := h.AuthService.Register(r.Context(), req.User, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrConflict):
		writeMessage(w, http.StatusConflict, "user already exists")
	case err != nil:
		h.internalError(w, "register failed", err)
	default:
		writeJSON(w, http.StatusCreated, u)
	}
}

// Me handles GET /auth/me for the bearer token holder.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Access Token is required")
		return
	}
	u, err := h.AuthService.Me(r.Context(), claims)
	switch {
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusUnauthorized, "Invalid/Expired Token!")
	case err != nil:
		h.internalError(w, "load profile failed", err)
	default:
		writeJSON(w, http.StatusOK, u)
	}
}

func (h *AuthHandler) internalError(w http.ResponseWriter, msg string, err error) {
	logError(h.Logger, msg, err)
	writeMessage(w, http.StatusInternalServerError, "internal error")
}

func logError(log *zap.Logger, msg string, err error) {
	if log != nil {
		log.Error(msg, zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
