package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/middleware"
	"github.com/upb/coffee-main-api/models"
	"github.com/upb/coffee-main-api/utils"
)

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Username string `json:"username" validate:"max=255,nocontrol"`
	Password string `json:"password" validate:"max=72"`
}

// LoginResponse is returned on a successful login
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator exchanges credentials for an access token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.AccessToken, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service Authenticator
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service Authenticator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.logger.Debug("invalid login request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	// Empty fields are left to the service so they map to ErrInvalidInput
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	token, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, LoginResponse{
		Token:     token.Value,
		TokenType: token.TokenType,
		ExpiresAt: token.ExpiresAt.UTC(),
	}); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}
