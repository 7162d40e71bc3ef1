package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"excursion-booking/internal/middleware"
	"excursion-booking/internal/models"
	"excursion-booking/internal/services"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService services.AuthServiceInterface
	logger      zerolog.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService services.AuthServiceInterface, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register creates an account and returns a token pair
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	resp, err := h.authService.Register(r.Context(), &req, clientMeta(r))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, resp)
}

// Login authenticates by email and password
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	resp, err := h.authService.Login(r.Context(), &req, clientMeta(r))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Refresh exchanges a refresh token for a new pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	tokens, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, tokens)
}

// Logout ends the session of a refresh token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func clientMeta(r *http.Request) services.ClientMeta {
	return services.ClientMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}
