package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/middleware"
	"github.com/upb/coffee-main-api/utils"
)

// CurrentUserResponse describes the caller's identity
type CurrentUserResponse struct {
	Username      string   `json:"username"`
	Roles         []string `json:"roles"`
	Authenticated bool     `json:"authenticated"`
}

// UserHandler serves identity information to authenticated callers
type UserHandler struct {
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(logger *zap.Logger) *UserHandler {
	return &UserHandler{logger: logger}
}

// HandleMe handles GET /api/v1/users/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}

	if err := utils.WriteOK(w, CurrentUserResponse{
		Username:      identity.Username,
		Roles:         roles,
		Authenticated: true,
	}); err != nil {
		h.logger.Error("failed to write current user response", zap.Error(err))
	}
}
