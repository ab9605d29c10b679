package handler

import (
	"errors"
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/auth"
	"github.com/cas-inventory/backend/internal/infrastructure/logger"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/cas-inventory/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler exchanges the admin passcode for a token
type AuthHandler struct {
	BaseHandler
	verifier  *auth.PasscodeVerifier
	jwt       *auth.JWTService
	blacklist auth.TokenBlacklist
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(verifier *auth.PasscodeVerifier, jwt *auth.JWTService, blacklist auth.TokenBlacklist) *AuthHandler {
	return &AuthHandler{verifier: verifier, jwt: jwt, blacklist: blacklist}
}

// Login godoc
// @ID           login
// @Summary      Exchange the admin passcode for a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body dto.LoginRequest true "Passcode"
// @Success      200 {object} auth.Token
// @Failure      401 {object} dto.ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.verifier.Verify(req.Passcode); err != nil {
		if errors.Is(err, auth.ErrInvalidPasscode) {
			logger.GetGinLogger(c).Warn("Admin login rejected", zap.String("client_ip", c.ClientIP()))
			h.Error(c, dto.ErrCodeUnauthorized, "Invalid passcode")
			return
		}
		h.HandleError(c, err)
		return
	}

	token, err := h.jwt.IssueAdminToken()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	logger.GetGinLogger(c).Info("Admin logged in", zap.Time("expires_at", token.ExpiresAt))
	h.Success(c, token)
}

// Logout godoc
// @ID           logout
// @Summary      Revoke the current admin token
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.MessageResponse
// @Failure      401 {object} dto.ErrorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetAdminClaims(c)
	if claims == nil {
		h.Error(c, dto.ErrCodeUnauthorized, "Admin authentication required")
		return
	}
	if h.blacklist != nil {
		if err := h.blacklist.AddToBlacklist(c.Request.Context(), claims.ID, claims.RemainingTTL(time.Now())); err != nil {
			h.HandleError(c, err)
			return
		}
	}
	h.Success(c, dto.MessageResponse{Message: "Logged out"})
}
