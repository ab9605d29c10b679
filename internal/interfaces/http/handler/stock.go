package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cas-inventory/backend/internal/application/trade"
	"github.com/cas-inventory/backend/internal/domain/shared/valueobject"
	csvimport "github.com/cas-inventory/backend/internal/infrastructure/import"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// StockHandler serves the shelf stock kept by the sales ledger
type StockHandler struct {
	BaseHandler
	ledger *trade.SalesLedger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(ledger *trade.SalesLedger) *StockHandler {
	return &StockHandler{ledger: ledger}
}

// List godoc
// @ID           listStock
// @Summary      List stock items
// @Tags         stock
// @Produce      json
// @Param        search query string false "Name substring"
// @Param        category query string false "Category"
// @Success      200 {array} dto.StockItemResponse
// @Failure      400 {object} dto.ErrorResponse
// @Router       /stock [get]
func (h *StockHandler) List(c *gin.Context) {
	var query dto.StockQuery
	if !h.bindQuery(c, &query) {
		return
	}
	filter := trade.StockFilter{Search: query.Search}
	if query.Category != "" {
		category, err := valueobject.ParseCategory(query.Category)
		if err != nil {
			h.Error(c, dto.ErrCodeValidation, "Unknown category "+query.Category)
			return
		}
		filter.Category = category
	}
	h.Success(c, dto.NewStockListResponse(h.ledger.ListStock(c.Request.Context(), filter)))
}

// Get godoc
// @ID           getStockItem
// @Summary      Get a stock item
// @Tags         stock
// @Produce      json
// @Param        id path string true "Stock item ID" format(uuid)
// @Success      200 {object} dto.StockItemResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /stock/{id} [get]
func (h *StockHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	item, err := h.ledger.GetStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewStockItemResponse(*item))
}

// Value godoc
// @ID           getStockValue
// @Summary      Shelf value and unit count
// @Tags         stock
// @Produce      json
// @Success      200 {object} dto.StockValueResponse
// @Router       /stock/value [get]
func (h *StockHandler) Value(c *gin.Context) {
	value, units := h.ledger.StockValue(c.Request.Context())
	h.Success(c, dto.StockValueResponse{Value: value, Units: units})
}

// Create godoc
// @ID           createStockItem
// @Summary      Add an item to the shelf
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateStockRequest true "Stock item"
// @Success      201 {object} dto.StockItemResponse
// @Failure      400 {object} dto.ErrorResponse
// @Router       /stock [post]
func (h *StockHandler) Create(c *gin.Context) {
	var req dto.CreateStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.ledger.AddStock(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewStockItemResponse(*item))
}

// Update godoc
// @ID           updateStockItem
// @Summary      Update a stock item; absent fields are unchanged
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        id path string true "Stock item ID" format(uuid)
// @Param        request body dto.UpdateStockRequest true "Changes"
// @Success      200 {object} dto.StockItemResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /stock/{id} [put]
func (h *StockHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	item, err := h.ledger.UpdateStock(c.Request.Context(), id, req.ToUpdate())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewStockItemResponse(*item))
}

// Delete godoc
// @ID           deleteStockItem
// @Summary      Remove a stock item
// @Tags         stock
// @Produce      json
// @Param        id path string true "Stock item ID" format(uuid)
// @Success      200 {object} dto.MessageResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /stock/{id} [delete]
func (h *StockHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	if err := h.ledger.DeleteStock(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.MessageResponse{Message: "Stock item deleted"})
}

// Clear godoc
// @ID           clearStock
// @Summary      Remove every stock item (admin)
// @Tags         stock
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.ClearedResponse
// @Router       /stock [delete]
func (h *StockHandler) Clear(c *gin.Context) {
	removed, err := h.ledger.ClearStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ClearedResponse{Message: "Stock cleared", Removed: removed})
}

// Sell godoc
// @ID           sellStockUnit
// @Summary      Sell one unit of a stock item
// @Tags         stock
// @Produce      json
// @Param        id path string true "Stock item ID" format(uuid)
// @Success      201 {object} trade.SaleRecord
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Out of stock"
// @Router       /stock/{id}/sell [post]
func (h *StockHandler) Sell(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.ledger.SellOneUnit(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sale)
}

// Reverse godoc
// @ID           reverseStockSale
// @Summary      Undo the most recent sale of this item
// @Tags         stock
// @Produce      json
// @Param        id path string true "Stock item ID" format(uuid)
// @Success      200 {object} trade.ReversalRecord
// @Failure      404 {object} dto.ErrorResponse
// @Router       /stock/{id}/reverse [post]
func (h *StockHandler) Reverse(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	reversal, err := h.ledger.ReverseLastSaleOf(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, reversal)
}

// Import godoc
// @ID           importStock
// @Summary      Add stock items from a CSV sheet (admin)
// @Description  Columns: name, category, quantity, price. The sheet is sent as the "file" form field
// @Description  or as a text/csv body. Every row must be valid or nothing is added.
// @Tags         stock
// @Accept       multipart/form-data
// @Accept       text/csv
// @Produce      json
// @Security     BearerAuth
// @Param        dryRun query bool false "Validate only"
// @Param        delimiter query string false "comma (default), semicolon or tab"
// @Success      201 {object} dto.StockImportResponse
// @Success      200 {object} dto.StockImportResponse "Dry run"
// @Failure      400 {object} dto.ErrorResponse
// @Failure      413 {object} dto.ErrorResponse
// @Router       /stock/import [post]
func (h *StockHandler) Import(c *gin.Context) {
	var query dto.StockImportQuery
	if !h.bindQuery(c, &query) {
		return
	}

	body, closeBody, err := sheetReader(c)
	if err != nil {
		h.handleSheetError(c, err)
		return
	}
	defer closeBody()

	opts := csvimport.SheetOptions{}
	switch query.Delimiter {
	case "semicolon":
		opts.Delimiter = ';'
	case "tab":
		opts.Delimiter = '\t'
	}
	sheet, err := csvimport.ReadStockSheet(body, opts)
	if err != nil {
		h.handleSheetError(c, err)
		return
	}
	if !sheet.IsValid() {
		details := make([]dto.ValidationDetail, 0, len(sheet.Errors))
		for _, rowErr := range sheet.Errors {
			details = append(details, dto.ValidationDetail{
				Field:   fmt.Sprintf("row %d %s", rowErr.Row, rowErr.Column),
				Message: rowErr.Message,
			})
		}
		message := fmt.Sprintf("%d of %d rows are invalid", sheet.TotalRows-sheet.ValidRows, sheet.TotalRows)
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(message, getRequestID(c), details))
		return
	}

	if query.DryRun {
		h.Success(c, dto.StockImportResponse{
			DryRun:    true,
			TotalRows: sheet.TotalRows,
			Items:     []dto.StockItemResponse{},
		})
		return
	}

	items, err := h.ledger.ImportStock(c.Request.Context(), sheet.Items)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.StockImportResponse{
		TotalRows: sheet.TotalRows,
		Imported:  len(items),
		Items:     dto.NewStockListResponse(items),
	})
}

// sheetReader returns the uploaded "file" form field, or the raw body for any other content type
func sheetReader(c *gin.Context) (io.Reader, func(), error) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, nil, err
		}
		file, err := header.Open()
		if err != nil {
			return nil, nil, err
		}
		return file, func() { _ = file.Close() }, nil
	}
	return c.Request.Body, func() {}, nil
}

func (h *StockHandler) handleSheetError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.Error(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
		return
	}
	h.BadRequest(c, "Invalid stock sheet: "+err.Error())
}
