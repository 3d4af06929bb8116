package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/coffee-main-api/middleware"
	"github.com/upb/coffee-main-api/models"
)

func TestHandleMe(t *testing.T) {
	handler := NewUserHandler(zap.NewNop())

	t.Run("returns 200 with user info when authenticated", func(t *testing.T) {
		identity := models.NewIdentity("testuser", []string{models.RoleUser})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
		rec := httptest.NewRecorder()

		handler.HandleMe(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body struct {
			Data CurrentUserResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "testuser", body.Data.Username)
		assert.Equal(t, []string{models.RoleUser}, body.Data.Roles)
		assert.True(t, body.Data.Authenticated)
	})

	t.Run("roles serialize as an empty list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), &models.Identity{Username: "barista"}))
		rec := httptest.NewRecorder()

		handler.HandleMe(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"roles":[]`)
	})

	t.Run("returns 401 when not authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		rec := httptest.NewRecorder()

		handler.HandleMe(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
