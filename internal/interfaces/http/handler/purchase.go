package handler

import (
	"time"

	"github.com/cas-inventory/backend/internal/application/trade"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// dateLayout is the day format of purchase history queries
const dateLayout = "2006-01-02"

// PurchaseHandler serves the sales ledger: purchases, deleted sales and reversals
type PurchaseHandler struct {
	BaseHandler
	ledger *trade.SalesLedger
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(ledger *trade.SalesLedger) *PurchaseHandler {
	return &PurchaseHandler{ledger: ledger}
}

// List godoc
// @ID           listPurchases
// @Summary      List recorded sales
// @Tags         purchases
// @Produce      json
// @Param        date query string false "Day (YYYY-MM-DD); all days when empty"
// @Success      200 {array} trade.SaleRecord
// @Router       /purchases [get]
func (h *PurchaseHandler) List(c *gin.Context) {
	var query dto.PurchasesQuery
	if !h.bindQuery(c, &query) {
		return
	}
	h.Success(c, h.ledger.ListSales(c.Request.Context(), query.Date))
}

// Today godoc
// @ID           listTodaysPurchases
// @Summary      List today's sales in the shop's time zone
// @Tags         purchases
// @Produce      json
// @Success      200 {array} trade.SaleRecord
// @Router       /purchases/today [get]
func (h *PurchaseHandler) Today(c *gin.Context) {
	h.Success(c, h.ledger.TodaysSales(c.Request.Context()))
}

// ByDate godoc
// @ID           listPurchasesByDate
// @Summary      List the sales of one day
// @Tags         purchases
// @Produce      json
// @Param        date path string true "Day (YYYY-MM-DD)"
// @Success      200 {array} trade.SaleRecord
// @Failure      400 {object} dto.ErrorResponse
// @Router       /purchases/date/{date} [get]
func (h *PurchaseHandler) ByDate(c *gin.Context) {
	day := c.Param("date")
	if _, err := time.Parse(dateLayout, day); err != nil {
		h.Error(c, dto.ErrCodeValidation, "Date must be formatted as YYYY-MM-DD")
		return
	}
	h.Success(c, h.ledger.ListSales(c.Request.Context(), day))
}

// Create godoc
// @ID           recordPurchase
// @Summary      Record a manual sale
// @Description  One record is created per unit; give either unitPrice or totalAmount
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Param        request body dto.RecordSaleRequest true "Sale"
// @Success      201 {array} trade.SaleRecord
// @Failure      400 {object} dto.ErrorResponse
// @Router       /purchases [post]
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req dto.RecordSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sales, err := h.ledger.RecordSale(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sales)
}

// Delete godoc
// @ID           deletePurchase
// @Summary      Soft-delete one of today's sales
// @Tags         purchases
// @Produce      json
// @Param        id path string true "Sale ID" format(uuid)
// @Success      200 {object} trade.DeletedSaleRecord
// @Failure      404 {object} dto.ErrorResponse
// @Router       /purchases/{id} [delete]
func (h *PurchaseHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	deleted, err := h.ledger.DeleteSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deleted)
}

// Reverse godoc
// @ID           reversePurchase
// @Summary      Undo the most recent sale of an item and restock it
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Param        request body dto.ReverseSaleRequest true "Item"
// @Success      200 {object} trade.ReversalRecord
// @Failure      404 {object} dto.ErrorResponse
// @Router       /purchases/reverse [post]
func (h *PurchaseHandler) Reverse(c *gin.Context) {
	var req dto.ReverseSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	reversal, err := h.ledger.ReverseLastSale(c.Request.Context(), req.ItemName)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reversal)
}

// Clear godoc
// @ID           clearPurchases
// @Summary      Remove every recorded sale (admin)
// @Tags         purchases
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.ClearedResponse
// @Router       /purchases [delete]
func (h *PurchaseHandler) Clear(c *gin.Context) {
	removed, err := h.ledger.ClearSales(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ClearedResponse{Message: "Purchase history cleared", Removed: removed})
}

// ListDeleted godoc
// @ID           listDeletedSales
// @Summary      List soft-deleted sales, newest first
// @Tags         deleted-sales
// @Produce      json
// @Param        limit query int false "Maximum rows; all when 0"
// @Success      200 {array} trade.DeletedSaleRecord
// @Router       /deleted-sales [get]
func (h *PurchaseHandler) ListDeleted(c *gin.Context) {
	var query dto.DeletedSalesQuery
	if !h.bindQuery(c, &query) {
		return
	}
	h.Success(c, h.ledger.ListDeleted(c.Request.Context(), query.Limit))
}

// ClearDeleted godoc
// @ID           clearDeletedSales
// @Summary      Empty the deleted-sales archive (admin)
// @Tags         deleted-sales
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.ClearedResponse
// @Router       /deleted-sales/clear [delete]
func (h *PurchaseHandler) ClearDeleted(c *gin.Context) {
	removed, err := h.ledger.ClearDeleted(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ClearedResponse{Message: "Deleted sales cleared", Removed: removed})
}

// ListReversals returns the reversal archive
func (h *PurchaseHandler) ListReversals(c *gin.Context) {
	h.Success(c, h.ledger.ListReversals(c.Request.Context()))
}
