package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cas-inventory/backend/internal/infrastructure/auth"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Admin auth context keys and headers
const (
	AdminClaimsKey = "admin_claims"
	AuthHeaderKey  = "Authorization"
	BearerPrefix   = "Bearer "
)

// AdminAuthConfig holds configuration for the admin auth middleware
type AdminAuthConfig struct {
	// JWTService validates admin tokens; nil disables the check
	JWTService *auth.JWTService
	// TokenBlacklist holds tokens revoked by logout; optional
	TokenBlacklist auth.TokenBlacklist
	Logger         *zap.Logger
}

// AdminAuth guards the admin routes with the token issued for the passcode.
// A nil JWT service (auth disabled) lets every request through.
func AdminAuth(cfg AdminAuthConfig) gin.HandlerFunc {
	if cfg.JWTService == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, log, auth.ErrInvalidToken)
			return
		}

		claims, err := cfg.JWTService.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, log, err)
			return
		}
		if !claims.IsAdmin() {
			abortUnauthorized(c, log, auth.ErrInvalidClaims)
			return
		}

		if cfg.TokenBlacklist != nil {
			revoked, err := cfg.TokenBlacklist.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				// Fail open: an unreachable blacklist must not lock the shop out
				log.Error("Failed to check token blacklist", zap.String("jti", claims.ID), zap.Error(err))
			} else if revoked {
				abortUnauthorized(c, log, auth.ErrTokenRevoked)
				return
			}
		}

		c.Set(AdminClaimsKey, claims)
		c.Next()
	}
}

// GetAdminClaims returns the claims AdminAuth stored, or nil
func GetAdminClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(AdminClaimsKey); exists {
		if adminClaims, ok := claims.(*auth.Claims); ok {
			return adminClaims
		}
	}
	return nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error) {
	code, message := dto.ErrCodeUnauthorized, "Admin authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, message = dto.ErrCodeTokenRevoked, "Token has been revoked"
	}

	log.Warn("Admin authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
	)
	SetErrorCode(c, code)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, message, GetRequestID(c)))
}
