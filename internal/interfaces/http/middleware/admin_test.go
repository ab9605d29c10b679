package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/auth"
	"github.com/cas-inventory/backend/internal/infrastructure/config"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.AuthConfig{
		JWTSecret:       "test-secret-key-at-least-32-chars",
		Issuer:          "cas-inventory",
		TokenExpiration: expiration,
	})
}

func newAdminRouter(cfg AdminAuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), AdminAuth(cfg))
	router.DELETE("/api/sales/deleted", func(c *gin.Context) {
		claims := GetAdminClaims(c)
		if claims == nil {
			c.String(http.StatusOK, "open")
			return
		}
		c.String(http.StatusOK, claims.ID)
	})
	return router
}

func serveWithToken(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, "/api/sales/deleted", nil)
	if token != "" {
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestAdminAuth(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	blacklist := auth.NewInMemoryTokenBlacklist()
	router := newAdminRouter(AdminAuthConfig{JWTService: svc, TokenBlacklist: blacklist})

	t.Run("accepts a valid token", func(t *testing.T) {
		token, err := svc.IssueAdminToken()
		require.NoError(t, err)

		w := serveWithToken(router, token.AccessToken)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEqual(t, "open", w.Body.String())
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		w := serveWithToken(router, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, errorCode(t, w))
	})

	t.Run("rejects a forged token", func(t *testing.T) {
		other := auth.NewJWTService(config.AuthConfig{
			JWTSecret:       "another-secret-key-32-characters!",
			Issuer:          "cas-inventory",
			TokenExpiration: time.Hour,
		})
		token, err := other.IssueAdminToken()
		require.NoError(t, err)

		w := serveWithToken(router, token.AccessToken)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("reports expiry", func(t *testing.T) {
		token, err := newTestJWTService(-time.Minute).IssueAdminToken()
		require.NoError(t, err)

		w := serveWithToken(router, token.AccessToken)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenExpired, errorCode(t, w))
	})

	t.Run("rejects a revoked token", func(t *testing.T) {
		token, err := svc.IssueAdminToken()
		require.NoError(t, err)
		claims, err := svc.ValidateToken(token.AccessToken)
		require.NoError(t, err)
		require.NoError(t, blacklist.AddToBlacklist(context.Background(), claims.ID, time.Hour))

		w := serveWithToken(router, token.AccessToken)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenRevoked, errorCode(t, w))
	})
}

func TestAdminAuth_Disabled(t *testing.T) {
	w := serveWithToken(newAdminRouter(AdminAuthConfig{}), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "open", w.Body.String())
}
