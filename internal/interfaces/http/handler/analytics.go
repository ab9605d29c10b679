package handler

import (
	"github.com/cas-inventory/backend/internal/application/report"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves dashboard figures
type AnalyticsHandler struct {
	BaseHandler
	service *report.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(service *report.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// History godoc
// @ID           listAnalyticsHistory
// @Summary      Daily snapshots, newest first
// @Tags         analytics
// @Produce      json
// @Param        limit query int false "Maximum rows; all when 0"
// @Success      200 {array} report.DailySnapshot
// @Router       /analytics [get]
func (h *AnalyticsHandler) History(c *gin.Context) {
	var query dto.HistoryQuery
	if !h.bindQuery(c, &query) {
		return
	}
	h.Success(c, h.service.History(c.Request.Context(), query.Limit))
}

// Summary godoc
// @ID           getAnalyticsSummary
// @Summary      Dashboard summary recomputed from the ledgers
// @Tags         analytics
// @Produce      json
// @Success      200 {object} report.Summary
// @Router       /analytics/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	h.Success(c, h.service.Summary(c.Request.Context()))
}
