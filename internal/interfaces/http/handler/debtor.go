package handler

import (
	"github.com/cas-inventory/backend/internal/application/finance"
	"github.com/cas-inventory/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DebtorHandler serves the debt ledger
type DebtorHandler struct {
	BaseHandler
	ledger *finance.DebtLedger
}

// NewDebtorHandler creates a new DebtorHandler
func NewDebtorHandler(ledger *finance.DebtLedger) *DebtorHandler {
	return &DebtorHandler{ledger: ledger}
}

// ListActive godoc
// @ID           listActiveDebtors
// @Summary      List active debtors
// @Description  Debtors with an outstanding balance, filtered by name or contact
// @Tags         debtors
// @Produce      json
// @Param        search query string false "Name or contact substring"
// @Success      200 {array} dto.DebtorResponse
// @Router       /debtors [get]
func (h *DebtorHandler) ListActive(c *gin.Context) {
	var query dto.SearchQuery
	if !h.bindQuery(c, &query) {
		return
	}
	h.Success(c, dto.NewDebtorListResponse(h.ledger.ListActive(c.Request.Context(), query.Search)))
}

// ListPaid godoc
// @ID           listPaidDebtors
// @Summary      List fully paid debtors
// @Tags         debtors
// @Produce      json
// @Param        search query string false "Name or contact substring"
// @Success      200 {array} dto.PaidDebtorResponse
// @Router       /debtors/paid [get]
func (h *DebtorHandler) ListPaid(c *gin.Context) {
	var query dto.SearchQuery
	if !h.bindQuery(c, &query) {
		return
	}
	h.Success(c, dto.NewPaidDebtorListResponse(h.ledger.ListPaid(c.Request.Context(), query.Search)))
}

// Outstanding godoc
// @ID           getOutstandingDebt
// @Summary      Total outstanding debt
// @Tags         debtors
// @Produce      json
// @Success      200 {object} dto.OutstandingResponse
// @Router       /debtors/outstanding [get]
func (h *DebtorHandler) Outstanding(c *gin.Context) {
	ctx := c.Request.Context()
	h.Success(c, dto.OutstandingResponse{
		TotalOutstanding: h.ledger.TotalOutstanding(ctx),
		ActiveDebtors:    h.ledger.ActiveCount(ctx),
	})
}

// Get godoc
// @ID           getDebtor
// @Summary      Get an active debtor
// @Tags         debtors
// @Produce      json
// @Param        id path string true "Debtor ID" format(uuid)
// @Success      200 {object} dto.DebtorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Router       /debtors/{id} [get]
func (h *DebtorHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	debtor, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewDebtorResponse(*debtor))
}

// Create godoc
// @ID           createDebtor
// @Summary      Record a new debtor
// @Tags         debtors
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateDebtorRequest true "Debtor"
// @Success      201 {object} dto.DebtorResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Router       /debtors [post]
func (h *DebtorHandler) Create(c *gin.Context) {
	var req dto.CreateDebtorRequest
	if !h.bindJSON(c, &req) {
		return
	}
	debtor, err := h.ledger.AddDebtor(c.Request.Context(), req.ToInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.NewDebtorResponse(*debtor))
}

// RecordPayment godoc
// @ID           recordDebtorPayment
// @Summary      Record a payment against a debtor
// @Description  A payment that clears the balance moves the debtor to the paid archive
// @Tags         debtors
// @Accept       json
// @Produce      json
// @Param        id path string true "Debtor ID" format(uuid)
// @Param        request body dto.RecordPaymentRequest true "Payment"
// @Success      200 {object} dto.PaymentResponse
// @Failure      400 {object} dto.ErrorResponse
// @Failure      404 {object} dto.ErrorResponse
// @Failure      409 {object} dto.ErrorResponse "Overpayment or inconsistent kind; carries the balance"
// @Router       /debtors/{id}/payment [put]
func (h *DebtorHandler) RecordPayment(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	// an unknown debtor is reported before anything about the payment itself
	if _, err := h.ledger.Get(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	kind, err := req.PaymentKind()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.ledger.RecordPayment(c.Request.Context(), id, *req.Amount, kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewPaymentResponse(result))
}
