package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/persistence"
	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status    string                 `json:"status"` // ok or unhealthy
	Store     persistence.SyncStatus `json:"store"`
	Uptime    string                 `json:"uptime"`
	GoVersion string                 `json:"go_version"`
	Error     string                 `json:"error,omitempty"`
}

// HealthHandler reports liveness and the store mode
type HealthHandler struct {
	BaseHandler
	store     persistence.Store
	syncer    persistence.Syncer
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. syncer may be nil.
func NewHealthHandler(store persistence.Store, syncer persistence.Syncer) *HealthHandler {
	return &HealthHandler{
		store:     store,
		syncer:    syncer,
		startTime: time.Now(),
	}
}

// Health godoc
// @ID           health
// @Summary      Liveness and store mode
// @Description  Degraded mode still answers 200: the shop keeps working on the local store
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Store:     persistence.SyncStatus{Mode: persistence.ModeLocal},
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		GoVersion: runtime.Version(),
	}
	if h.syncer != nil {
		resp.Store = h.syncer.Status()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	h.Success(c, resp)
}
