package inventory

import (
	"context"
	"fmt"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"go.uber.org/zap"
)

// ReorderAlert is a warehouse balance outside an item's reorder bounds
type ReorderAlert struct {
	ItemCode   string `json:"item_code"`
	Warehouse  string `json:"warehouse"`
	AlertType  string `json:"alert_type"` // "below_minimum", "out_of_stock", "above_maximum"
	BalanceQty string `json:"balance_qty"`
	Threshold  string `json:"threshold"`
}

// ReorderNotifier delivers reorder alerts to whoever replenishes stock
type ReorderNotifier interface {
	Notify(ctx context.Context, alert ReorderAlert) error
}

// ReorderAlertHandler turns StockBelowMinimum and StockAboveMaximum events into alerts
type ReorderAlertHandler struct {
	logger   *zap.Logger
	metrics  LedgerMetrics
	notifier ReorderNotifier
}

// NewReorderAlertHandler creates a new handler for threshold events
func NewReorderAlertHandler(logger *zap.Logger, metrics LedgerMetrics) *ReorderAlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ReorderAlertHandler{logger: logger, metrics: metrics}
}

// WithNotifier sets the notifier for sending alerts
func (h *ReorderAlertHandler) WithNotifier(notifier ReorderNotifier) *ReorderAlertHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *ReorderAlertHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockBelowMinimum, inventory.EventTypeStockAboveMaximum}
}

// Handle processes a StockThresholdEvent
func (h *ReorderAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	thresholdEvent, ok := event.(*inventory.StockThresholdEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected threshold event, got %s", event.EventType())
	}

	alertType := "above_maximum"
	if event.EventType() == inventory.EventTypeStockBelowMinimum {
		alertType = "below_minimum"
		if !thresholdEvent.BalanceQty.IsPositive() {
			alertType = "out_of_stock"
		}
	}

	h.metrics.RecordThresholdAlert(ctx, event.EventType())
	h.logger.Warn("stock outside reorder bounds",
		zap.String("item_code", thresholdEvent.ItemCode),
		zap.String("warehouse", thresholdEvent.Warehouse),
		zap.String("alert_type", alertType),
		zap.String("balance_qty", thresholdEvent.BalanceQty.String()),
		zap.String("threshold", thresholdEvent.Threshold.String()),
	)

	if h.notifier == nil {
		return nil
	}
	alert := ReorderAlert{
		ItemCode:   thresholdEvent.ItemCode,
		Warehouse:  thresholdEvent.Warehouse,
		AlertType:  alertType,
		BalanceQty: thresholdEvent.BalanceQty.String(),
		Threshold:  thresholdEvent.Threshold.String(),
	}
	if err := h.notifier.Notify(ctx, alert); err != nil {
		// a failed notification must not fail event handling
		h.logger.Error("failed to send reorder alert",
			zap.String("item_code", alert.ItemCode),
			zap.Error(err),
		)
	}
	return nil
}

var _ shared.EventHandler = (*ReorderAlertHandler)(nil)
