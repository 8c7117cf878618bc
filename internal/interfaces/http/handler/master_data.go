package handler

import (
	"time"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MasterDataHandler handles items, warehouses and batches
type MasterDataHandler struct {
	BaseHandler
	master *inventoryapp.MasterDataService
}

// NewMasterDataHandler creates a new MasterDataHandler
func NewMasterDataHandler(master *inventoryapp.MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{master: master}
}

// RegisterRoutes attaches item, warehouse and batch routes to a stock domain group
func (h *MasterDataHandler) RegisterRoutes(g *router.DomainGroup) {
	items := g.Group("items", "/items")
	items.POST("", h.CreateItem)
	items.GET("", h.ListItems)
	items.GET("/:code", h.GetItem)
	items.PUT("/:code", h.UpdateItem)
	items.POST("/:code/conversions", h.AddUOMConversion)
	items.POST("/:code/cost-method", h.ChangeCostMethod)
	items.POST("/:code/disable", h.DisableItem)
	items.POST("/:code/enable", h.EnableItem)
	items.GET("/:code/batches", h.ListBatches)
	items.POST("/:code/batches", h.CreateBatch)
	items.POST("/:code/batches/:batch/disable", h.DisableBatch)

	warehouses := g.Group("warehouses", "/warehouses")
	warehouses.POST("", h.CreateWarehouse)
	warehouses.GET("", h.ListWarehouses)
	warehouses.GET("/:code", h.GetWarehouse)
	warehouses.POST("/:code/disable", h.DisableWarehouse)
}

// CreateItemRequest represents a request to register an item
type CreateItemRequest struct {
	Code               string                     `json:"code" binding:"required,max=100" example:"ITEM-001"`
	Name               string                     `json:"name" binding:"max=200" example:"Steel bolt M8"`
	StockUOM           string                     `json:"stock_uom" binding:"required,max=20" example:"EA"`
	CostMethod         string                     `json:"cost_method" binding:"omitempty,oneof=moving_average fifo lifo standard" example:"fifo"`
	HasBatchNo         bool                       `json:"has_batch_no"`
	HasSerialNo        bool                       `json:"has_serial_no"`
	MinQty             decimal.Decimal            `json:"min_qty" binding:"dnonneg" example:"10"`
	MaxQty             decimal.Decimal            `json:"max_qty" binding:"dnonneg" example:"500"`
	AllowNegativeStock bool                       `json:"allow_negative_stock"`
	AllowZeroValuation bool                       `json:"allow_zero_valuation"`
	StandardRate       decimal.Decimal            `json:"standard_rate" binding:"dnonneg"`
	Conversions        map[string]decimal.Decimal `json:"conversions"`
}

// UpdateItemRequest represents a partial item update
type UpdateItemRequest struct {
	Name               *string          `json:"name" binding:"omitempty,max=200"`
	MinQty             *decimal.Decimal `json:"min_qty"`
	MaxQty             *decimal.Decimal `json:"max_qty"`
	AllowNegativeStock *bool            `json:"allow_negative_stock"`
	AllowZeroValuation *bool            `json:"allow_zero_valuation"`
	StandardRate       *decimal.Decimal `json:"standard_rate"`
}

// AddUOMConversionRequest represents a request to add a unit conversion
type AddUOMConversionRequest struct {
	UOM    string          `json:"uom" binding:"required,max=20" example:"BOX"`
	Factor decimal.Decimal `json:"factor" binding:"dpos" example:"12"`
}

// ChangeCostMethodRequest represents a request to switch costing going forward
type ChangeCostMethodRequest struct {
	CostMethod    string    `json:"cost_method" binding:"required,oneof=moving_average fifo lifo standard" example:"fifo"`
	EffectiveFrom time.Time `json:"effective_from" binding:"required" example:"2024-04-01T00:00:00Z"`
}

// CreateWarehouseRequest represents a request to register a warehouse
type CreateWarehouseRequest struct {
	Code       string `json:"code" binding:"required,max=100" example:"WH-MAIN"`
	Name       string `json:"name" binding:"max=200" example:"Main warehouse"`
	ParentCode string `json:"parent_code" binding:"max=100"`
	Bin        string `json:"bin" binding:"max=100"`
	IsGroup    bool   `json:"is_group"`
}

// CreateBatchRequest represents a request to register a batch of an item
type CreateBatchRequest struct {
	BatchNo         string     `json:"batch_no" binding:"required,max=100" example:"B-2024-01"`
	ManufactureDate *time.Time `json:"manufacture_date"`
	ExpiryDate      *time.Time `json:"expiry_date"`
}

// CreateItem godoc
// @ID           createItem
// @Summary      Register an item
// @Tags         master-data
// @Accept       json
// @Produce      json
// @Param        request body CreateItemRequest true "Item"
// @Success      201 {object} APIResponse[inventory.Item]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /stock/items [post]
func (h *MasterDataHandler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.master.CreateItem(c.Request.Context(), inventoryapp.CreateItemCommand{
		Code:               req.Code,
		Name:               req.Name,
		StockUOM:           req.StockUOM,
		CostMethod:         strategy.CostMethod(req.CostMethod),
		HasBatchNo:         req.HasBatchNo,
		HasSerialNo:        req.HasSerialNo,
		MinQty:             req.MinQty,
		MaxQty:             req.MaxQty,
		AllowNegativeStock: req.AllowNegativeStock,
		AllowZeroValuation: req.AllowZeroValuation,
		StandardRate:       req.StandardRate,
		Conversions:        req.Conversions,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// GetItem godoc
// @ID           getItem
// @Summary      Get an item
// @Tags         master-data
// @Produce      json
// @Param        code path string true "Item code"
// @Success      200 {object} APIResponse[inventory.Item]
// @Failure      404 {object} ErrorResponse
// @Router       /stock/items/{code} [get]
func (h *MasterDataHandler) GetItem(c *gin.Context) {
	item, err := h.master.GetItem(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// ListItems godoc
// @ID           listItems
// @Summary      List items
// @Tags         master-data
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(50) maximum(100)
// @Success      200 {object} APIResponse[[]inventory.Item]
// @Router       /stock/items [get]
func (h *MasterDataHandler) ListItems(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	page, err := h.master.ListItems(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, filter.Page, filter.Limit())
}

// UpdateItem godoc
// @ID           updateItem
// @Summary      Update item settings
// @Tags         master-data
// @Accept       json
// @Produce      json
// @Param        code path string true "Item code"
// @Param        request body UpdateItemRequest true "Fields to change"
// @Success      200 {object} APIResponse[inventory.Item]
// @Failure      404 {object} ErrorResponse
// @Router       /stock/items/{code} [put]
func (h *MasterDataHandler) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.master.UpdateItem(c.Request.Context(), c.Param("code"), inventoryapp.UpdateItemCommand{
		Name:               req.Name,
		MinQty:             req.MinQty,
		MaxQty:             req.MaxQty,
		AllowNegativeStock: req.AllowNegativeStock,
		AllowZeroValuation: req.AllowZeroValuation,
		StandardRate:       req.StandardRate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// AddUOMConversion godoc
// @ID           addItemUomConversion
// @Summary      Add a unit conversion to an item
// @Tags         master-data
// @Accept       json
// @Produce      json
// @Param        code path string true "Item code"
// @Param        request body AddUOMConversionRequest true "Conversion"
// @Success      200 {object} APIResponse[inventory.Item]
// @Router       /stock/items/{code}/conversions [post]
func (h *MasterDataHandler) AddUOMConversion(c *gin.Context) {
	var req AddUOMConversionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.master.AddUOMConversion(c.Request.Context(), c.Param("code"), req.UOM, req.Factor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// ChangeCostMethod godoc
// @ID           changeItemCostMethod
// @Summary      Change the costing method of an item from a point in time
// @Tags         master-data
// @Accept       json
// @Produce      json
// @Param        code path string true "Item code"
// @Param        request body ChangeCostMethodRequest true "Method change"
// @Success      200 {object} APIResponse[inventory.Item]
// @Failure      422 {object} ErrorResponse
// @Router       /stock/items/{code}/cost-method [post]
func (h *MasterDataHandler) ChangeCostMethod(c *gin.Context) {
	var req ChangeCostMethodRequest
	if !h.BindJSON(c, &req) {
		return
	}
	item, err := h.master.ChangeCostMethod(c.Request.Context(), c.Param("code"), strategy.CostMethod(req.CostMethod), req.EffectiveFrom)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// DisableItem disables an item so no new movements may be posted against it
func (h *MasterDataHandler) DisableItem(c *gin.Context) {
	item, err := h.master.DisableItem(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// EnableItem re-enables an item
func (h *MasterDataHandler) EnableItem(c *gin.Context) {
	item, err := h.master.EnableItem(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// CreateWarehouse godoc
// @ID           createWarehouse
// @Summary      Register a warehouse
// @Tags         master-data
// @Accept       json
// @Produce      json
// @Param        request body CreateWarehouseRequest true "Warehouse"
// @Success      201 {object} APIResponse[inventory.Warehouse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /stock/warehouses [post]
func (h *MasterDataHandler) CreateWarehouse(c *gin.Context) {
	var req CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	warehouse, err := h.master.CreateWarehouse(c.Request.Context(), inventoryapp.CreateWarehouseCommand{
		Code:       req.Code,
		Name:       req.Name,
		ParentCode: req.ParentCode,
		Bin:        req.Bin,
		IsGroup:    req.IsGroup,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, warehouse)
}

// GetWarehouse returns one warehouse
func (h *MasterDataHandler) GetWarehouse(c *gin.Context) {
	warehouse, err := h.master.GetWarehouse(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, warehouse)
}

// ListWarehouses returns a page of warehouses
func (h *MasterDataHandler) ListWarehouses(c *gin.Context) {
	filter, err := listFilter(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	page, err := h.master.ListWarehouses(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, filter.Page, filter.Limit())
}

// DisableWarehouse disables a warehouse
func (h *MasterDataHandler) DisableWarehouse(c *gin.Context) {
	warehouse, err := h.master.DisableWarehouse(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, warehouse)
}

// CreateBatch godoc
// @ID           createBatch
// @Summary      Register a batch of a batch-tracked item
// @Tags         master-data
// @Accept       json
// @Produce      json
// @Param        code path string true "Item code"
// @Param        request body CreateBatchRequest true "Batch"
// @Success      201 {object} APIResponse[inventory.Batch]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /stock/items/{code}/batches [post]
func (h *MasterDataHandler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	batch, err := h.master.CreateBatch(c.Request.Context(), inventoryapp.CreateBatchCommand{
		ItemCode:        c.Param("code"),
		BatchNo:         req.BatchNo,
		ManufactureDate: req.ManufactureDate,
		ExpiryDate:      req.ExpiryDate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// ListBatches returns the batches of an item
func (h *MasterDataHandler) ListBatches(c *gin.Context) {
	batches, err := h.master.ListBatches(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// DisableBatch disables one batch of an item
func (h *MasterDataHandler) DisableBatch(c *gin.Context) {
	batch, err := h.master.DisableBatch(c.Request.Context(), c.Param("code"), c.Param("batch"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}
