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

// ReservationHandler handles stock holds for pending documents
type ReservationHandler struct {
	BaseHandler
	reservations *inventoryapp.ReservationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservations *inventoryapp.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// RegisterRoutes attaches the reservation routes to a stock domain group
func (h *ReservationHandler) RegisterRoutes(g *router.DomainGroup) {
	g.POST("/reservations", h.Reserve)
	g.DELETE("/reservations/:id", h.Release)
	g.GET("/available", h.Available)
}

// ReserveRequest represents a request to hold stock
// @Description Holds reduce available quantity only; they never block ledger postings
type ReserveRequest struct {
	ItemCode   string          `json:"item_code" binding:"required,max=100" example:"ITEM-001"`
	Warehouse  string          `json:"warehouse" binding:"required,max=100" example:"WH-MAIN"`
	BatchNo    string          `json:"batch_no" binding:"max=100"`
	SerialNo   string          `json:"serial_no" binding:"max=100"`
	Qty        decimal.Decimal `json:"qty" binding:"dpos" example:"5"`
	SourceType string          `json:"source_type" binding:"required,max=50" example:"Sales Order"`
	SourceRef  string          `json:"source_ref" binding:"required,max=100" example:"SO-0001"`
	TTLSeconds int64           `json:"ttl_seconds" binding:"gte=0" example:"1800"`
}

// Reserve godoc
// @ID           reserveStock
// @Summary      Reserve stock
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        request body ReserveRequest true "Reservation"
// @Success      201 {object} APIResponse[inventoryapp.ReservationDTO]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /stock/reservations [post]
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	hold, err := h.reservations.Reserve(c.Request.Context(), inventoryapp.ReserveCommand{
		Key: inventory.StockKey{
			ItemCode:  req.ItemCode,
			Warehouse: req.Warehouse,
			BatchNo:   req.BatchNo,
			SerialNo:  req.SerialNo,
		},
		Qty:        req.Qty,
		SourceType: req.SourceType,
		SourceRef:  req.SourceRef,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, hold)
}

// Release godoc
// @ID           releaseReservation
// @Summary      Release a reservation
// @Tags         reservations
// @Produce      json
// @Param        id path string true "Reservation ID" format(uuid)
// @Success      200 {object} APIResponse[inventoryapp.ReservationDTO]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /stock/reservations/{id} [delete]
func (h *ReservationHandler) Release(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}
	hold, err := h.reservations.Release(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, hold)
}

// Available godoc
// @ID           getAvailableStock
// @Summary      Get available quantity of a stock key
// @Tags         reservations
// @Produce      json
// @Param        item_code query string true "Item code"
// @Param        warehouse query string true "Warehouse code"
// @Param        batch_no query string false "Batch number"
// @Param        serial_no query string false "Serial number"
// @Success      200 {object} APIResponse[inventoryapp.AvailabilityDTO]
// @Router       /stock/available [get]
func (h *ReservationHandler) Available(c *gin.Context) {
	avail, err := h.reservations.Available(c.Request.Context(), stockKeyFromQuery(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, avail)
}
