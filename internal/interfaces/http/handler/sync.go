package handler

import (
	"errors"

	"github.com/cas-inventory/backend/internal/infrastructure/logger"
	"github.com/cas-inventory/backend/internal/infrastructure/persistence"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncHandler reports and drives the remote/local store synchronization
type SyncHandler struct {
	BaseHandler
	syncer persistence.Syncer
}

// NewSyncHandler creates a new SyncHandler. syncer is nil when the store has no remote side.
func NewSyncHandler(syncer persistence.Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// Status godoc
// @ID           getSyncStatus
// @Summary      Current sync state of the store
// @Tags         sync
// @Produce      json
// @Success      200 {object} persistence.SyncStatus
// @Router       /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	h.Success(c, h.status())
}

// Resync godoc
// @ID           resyncStore
// @Summary      Push the local copy to the remote store (admin)
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} persistence.SyncStatus
// @Failure      503 {object} dto.ErrorResponse
// @Router       /sync [post]
func (h *SyncHandler) Resync(c *gin.Context) {
	if h.syncer == nil {
		h.Success(c, h.status())
		return
	}
	if err := h.syncer.Resync(c.Request.Context()); err != nil {
		if errors.Is(err, persistence.ErrRemoteUnavailable) {
			logger.GetGinLogger(c).Warn("Manual resync failed", zap.Error(err))
			h.Error(c, dto.ErrCodeRemoteUnavailable, "Remote store is unreachable; changes stay in the local store")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.syncer.Status())
}

func (h *SyncHandler) status() persistence.SyncStatus {
	if h.syncer == nil {
		return persistence.SyncStatus{Mode: persistence.ModeLocal}
	}
	return h.syncer.Status()
}
