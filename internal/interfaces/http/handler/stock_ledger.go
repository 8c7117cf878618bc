package handler

import (
	"time"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockLedgerHandler handles ledger postings and queries
type StockLedgerHandler struct {
	BaseHandler
	ledger *inventoryapp.StockLedgerService
}

// NewStockLedgerHandler creates a new StockLedgerHandler
func NewStockLedgerHandler(ledger *inventoryapp.StockLedgerService) *StockLedgerHandler {
	return &StockLedgerHandler{ledger: ledger}
}

// RegisterRoutes attaches the ledger routes to a stock domain group
func (h *StockLedgerHandler) RegisterRoutes(g *router.DomainGroup) {
	g.POST("/movements", h.PostMovement)
	g.POST("/transfers", h.PostTransfer)
	g.GET("/entries", h.ListEntries)
	g.GET("/entries/:id", h.GetEntry)
	g.POST("/entries/:id/cancel", h.CancelEntry)
	g.GET("/balance", h.GetBalance)
	g.GET("/valuation", h.GetValuation)
	g.GET("/verify", h.VerifyKey)
}

// PostMovementRequest represents a request to post a stock movement
// @Description Signed quantity: positive inward, negative outward
type PostMovementRequest struct {
	ItemCode        string           `json:"item_code" binding:"required,max=100" example:"ITEM-001"`
	Warehouse       string           `json:"warehouse" binding:"required,max=100" example:"WH-MAIN"`
	BatchNo         string           `json:"batch_no" binding:"max=100" example:"B-2024-01"`
	SerialNos       []string         `json:"serial_nos"`
	MovementType    string           `json:"movement_type" binding:"required,oneof=receipt issue consumption scrap return adjustment" example:"receipt"`
	Qty             decimal.Decimal  `json:"qty" example:"10"`
	UOM             string           `json:"uom" binding:"max=20" example:"BOX"`
	Rate            *decimal.Decimal `json:"rate" binding:"omitempty,dnonneg" example:"12.5"`
	PostingDateTime *time.Time       `json:"posting_datetime" example:"2024-03-01T09:00:00Z"`
	VoucherType     string           `json:"voucher_type" binding:"max=50" example:"Purchase Receipt"`
	VoucherRef      string           `json:"voucher_ref" binding:"max=100" example:"PR-0001"`
	IdempotencyKey  string           `json:"idempotency_key" binding:"max=100"`
}

// PostTransferRequest represents a request to transfer stock between warehouses
type PostTransferRequest struct {
	ItemCode        string          `json:"item_code" binding:"required,max=100" example:"ITEM-001"`
	FromWarehouse   string          `json:"from_warehouse" binding:"required,max=100" example:"WH-MAIN"`
	ToWarehouse     string          `json:"to_warehouse" binding:"required,max=100" example:"WH-STORE"`
	BatchNo         string          `json:"batch_no" binding:"max=100"`
	SerialNos       []string        `json:"serial_nos"`
	Qty             decimal.Decimal `json:"qty" binding:"dpos" example:"4"`
	UOM             string          `json:"uom" binding:"max=20"`
	PostingDateTime *time.Time      `json:"posting_datetime"`
	VoucherRef      string          `json:"voucher_ref" binding:"max=100"`
	IdempotencyKey  string          `json:"idempotency_key" binding:"max=100"`
}

// CancelEntryRequest represents a request to cancel a ledger entry
type CancelEntryRequest struct {
	Reason       string `json:"reason" binding:"max=255" example:"Wrong warehouse"`
	WholePosting bool   `json:"whole_posting"`
}

// postingOrAccepted answers 201 for a written posting and 202 for a deferred one
func (h *StockLedgerHandler) postingOrAccepted(c *gin.Context, deferred bool, data any) {
	if deferred {
		h.Accepted(c, data)
		return
	}
	h.Created(c, data)
}

// PostMovement godoc
// @ID           postStockMovement
// @Summary      Post a stock movement
// @Description  Records a receipt, issue or adjustment. Backdated movements replay later entries of the key.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body PostMovementRequest true "Movement"
// @Success      201 {object} APIResponse[inventoryapp.PostingResult]
// @Success      202 {object} APIResponse[inventoryapp.PostingResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /stock/movements [post]
func (h *StockLedgerHandler) PostMovement(c *gin.Context) {
	var req PostMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cmd := inventoryapp.MovementCommand{
		ItemCode:       req.ItemCode,
		Warehouse:      req.Warehouse,
		BatchNo:        req.BatchNo,
		SerialNos:      req.SerialNos,
		MovementType:   inventory.MovementType(req.MovementType),
		Qty:            req.Qty,
		UOM:            req.UOM,
		Rate:           req.Rate,
		VoucherType:    req.VoucherType,
		VoucherRef:     req.VoucherRef,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.PostingDateTime != nil {
		cmd.PostingDateTime = *req.PostingDateTime
	}

	result, err := h.ledger.PostMovement(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.postingOrAccepted(c, result.Deferred, result)
}

// PostTransfer godoc
// @ID           postStockTransfer
// @Summary      Transfer stock between warehouses
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body PostTransferRequest true "Transfer"
// @Success      201 {object} APIResponse[inventoryapp.PostingResult]
// @Success      202 {object} APIResponse[inventoryapp.PostingResult]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /stock/transfers [post]
func (h *StockLedgerHandler) PostTransfer(c *gin.Context) {
	var req PostTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cmd := inventoryapp.TransferCommand{
		ItemCode:       req.ItemCode,
		FromWarehouse:  req.FromWarehouse,
		ToWarehouse:    req.ToWarehouse,
		BatchNo:        req.BatchNo,
		SerialNos:      req.SerialNos,
		Qty:            req.Qty,
		UOM:            req.UOM,
		VoucherRef:     req.VoucherRef,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.PostingDateTime != nil {
		cmd.PostingDateTime = *req.PostingDateTime
	}

	result, err := h.ledger.PostTransfer(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.postingOrAccepted(c, result.Deferred, result)
}

// CancelEntry godoc
// @ID           cancelLedgerEntry
// @Summary      Cancel a ledger entry
// @Description  Writes a reversal at the original posting time and replays later entries
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        id path string true "Ledger entry ID" format(uuid)
// @Param        request body CancelEntryRequest false "Cancel options"
// @Success      200 {object} APIResponse[inventoryapp.CancelResult]
// @Success      202 {object} APIResponse[inventoryapp.CancelResult]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /stock/entries/{id}/cancel [post]
func (h *StockLedgerHandler) CancelEntry(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid ledger entry ID format")
		return
	}

	var req CancelEntryRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.ledger.Cancel(c.Request.Context(), entryID, inventoryapp.CancelOptions{
		Reason:       req.Reason,
		WholePosting: req.WholePosting,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Deferred {
		h.Accepted(c, result)
		return
	}
	h.Success(c, result)
}

// stockKeyFromQuery reads item_code, warehouse, batch_no and serial_no
func stockKeyFromQuery(c *gin.Context) inventory.StockKey {
	return inventory.StockKey{
		ItemCode:  c.Query("item_code"),
		Warehouse: c.Query("warehouse"),
		BatchNo:   c.Query("batch_no"),
		SerialNo:  c.Query("serial_no"),
	}
}

// GetBalance godoc
// @ID           getStockBalance
// @Summary      Get the balance of a stock key
// @Tags         stock
// @Produce      json
// @Param        item_code query string true "Item code"
// @Param        warehouse query string true "Warehouse code"
// @Param        batch_no query string false "Batch number"
// @Param        serial_no query string false "Serial number"
// @Param        as_of query string false "Point in time (RFC3339 or YYYY-MM-DD)"
// @Success      200 {object} APIResponse[inventoryapp.BalanceDTO]
// @Failure      400 {object} ErrorResponse
// @Router       /stock/balance [get]
func (h *StockLedgerHandler) GetBalance(c *gin.Context) {
	asOf, err := parseOptionalTime(c, "as_of")
	if err != nil {
		h.BadRequest(c, "Invalid as_of format")
		return
	}
	var at time.Time
	if asOf != nil {
		at = *asOf
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), stockKeyFromQuery(c), at)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// GetValuation godoc
// @ID           getStockValuation
// @Summary      Get the valuation summary of an item
// @Description  Aggregates batch and serial sub-keys and, for group warehouses, all descendants
// @Tags         stock
// @Produce      json
// @Param        item_code query string true "Item code"
// @Param        warehouse query string false "Warehouse code, empty for all"
// @Success      200 {object} APIResponse[inventoryapp.ValuationSummaryDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /stock/valuation [get]
func (h *StockLedgerHandler) GetValuation(c *gin.Context) {
	summary, err := h.ledger.GetValuationSummary(c.Request.Context(), c.Query("item_code"), c.Query("warehouse"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ListEntries godoc
// @ID           listLedgerEntries
// @Summary      List ledger entries
// @Tags         stock
// @Produce      json
// @Param        item_code query string false "Item code"
// @Param        warehouse query string false "Warehouse code"
// @Param        batch_no query string false "Batch number"
// @Param        serial_no query string false "Serial number"
// @Param        voucher_ref query string false "Voucher reference"
// @Param        from query string false "Posted at or after"
// @Param        to query string false "Posted at or before"
// @Param        with_cancelled query boolean false "Include cancelled entries and reversals"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(50) maximum(100)
// @Success      200 {object} APIResponse[[]inventoryapp.LedgerEntryDTO]
// @Failure      400 {object} ErrorResponse
// @Router       /stock/entries [get]
func (h *StockLedgerHandler) ListEntries(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	from, err := parseOptionalTime(c, "from")
	if err != nil {
		h.BadRequest(c, "Invalid from format")
		return
	}
	to, err := parseOptionalTime(c, "to")
	if err != nil {
		h.BadRequest(c, "Invalid to format")
		return
	}

	key := stockKeyFromQuery(c)
	page, err := h.ledger.ListEntries(c.Request.Context(), inventory.LedgerFilter{
		Filter:        filter,
		ItemCode:      key.ItemCode,
		Warehouse:     key.Warehouse,
		BatchNo:       key.BatchNo,
		SerialNo:      key.SerialNo,
		VoucherRef:    c.Query("voucher_ref"),
		From:          from,
		To:            to,
		WithCancelled: queryBool(c, "with_cancelled"),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, filter.Page, filter.Limit())
}

// GetEntry godoc
// @ID           getLedgerEntry
// @Summary      Get a ledger entry
// @Tags         stock
// @Produce      json
// @Param        id path string true "Ledger entry ID" format(uuid)
// @Success      200 {object} APIResponse[inventoryapp.LedgerEntryDTO]
// @Failure      404 {object} ErrorResponse
// @Router       /stock/entries/{id} [get]
func (h *StockLedgerHandler) GetEntry(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid ledger entry ID format")
		return
	}
	entry, err := h.ledger.GetEntry(c.Request.Context(), entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// VerifyKey godoc
// @ID           verifyStockKey
// @Summary      Refold a stock key and report drift
// @Tags         stock
// @Produce      json
// @Param        item_code query string true "Item code"
// @Param        warehouse query string true "Warehouse code"
// @Success      200 {object} APIResponse[inventoryapp.VerifyResult]
// @Router       /stock/verify [get]
func (h *StockLedgerHandler) VerifyKey(c *gin.Context) {
	result, err := h.ledger.VerifyKey(c.Request.Context(), stockKeyFromQuery(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
