package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	domainstrategy "github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/erp/stockledger/internal/infrastructure/lock"
	"github.com/erp/stockledger/internal/infrastructure/persistence/memstore"
	"github.com/erp/stockledger/internal/infrastructure/strategy"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/erp/stockledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// apiHarness serves the stock API over an in-memory store
type apiHarness struct {
	engine       *gin.Engine
	ledger       *inventoryapp.StockLedgerService
	master       *inventoryapp.MasterDataService
	reservations *inventoryapp.ReservationService
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	opts := inventoryapp.DefaultLedgerOptions()
	registry, err := strategy.NewRegistryWithDefaults(opts.Precision)
	require.NoError(t, err)
	batchStrategy, err := registry.DefaultBatchStrategy()
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	store := memstore.New()
	repos := store.Repositories()
	locker := lock.NewLocalKeyLocker(16, time.Second)
	engine := inventory.NewValuationEngine(registry, domainstrategy.NegativeStockReject)

	h := &apiHarness{
		ledger:       inventoryapp.NewStockLedgerService(store, repos, engine, inventory.NewAllocator(batchStrategy), locker, opts, logger),
		master:       inventoryapp.NewMasterDataService(store, repos, logger),
		reservations: inventoryapp.NewReservationService(store, repos, locker, time.Hour, logger),
	}

	stock := router.NewDomainGroup("stock", "/stock")
	NewStockLedgerHandler(h.ledger).RegisterRoutes(stock)
	NewReservationHandler(h.reservations).RegisterRoutes(stock)
	NewMasterDataHandler(h.master).RegisterRoutes(stock)

	h.engine = gin.New()
	router.NewRouter(h.engine, router.WithAPIVersion("v1")).Register(stock).Setup()

	for _, code := range []string{"WH-1", "WH-2"} {
		_, err := h.master.CreateWarehouse(context.Background(), inventoryapp.CreateWarehouseCommand{Code: code, Name: code})
		require.NoError(t, err)
	}
	_, err = h.master.CreateItem(context.Background(), inventoryapp.CreateItemCommand{Code: "ITEM-A", Name: "Item A", StockUOM: "EA"})
	require.NoError(t, err)
	return h
}

// do sends a request with an optional JSON body and decodes the envelope
func (h *apiHarness) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// data re-decodes the envelope's data field into out
func data(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func receipt(qty, rate string, when time.Time) map[string]any {
	return map[string]any{
		"item_code":        "ITEM-A",
		"warehouse":        "WH-1",
		"movement_type":    "receipt",
		"qty":              qty,
		"rate":             rate,
		"posting_datetime": when.Format(time.RFC3339),
		"voucher_ref":      "PR-1",
	}
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

