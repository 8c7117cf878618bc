package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
)

// StockKey identifies one running balance: item, warehouse and optional batch or serial
type StockKey struct {
	ItemCode  string `json:"item_code"`
	Warehouse string `json:"warehouse"`
	BatchNo   string `json:"batch_no,omitempty"`
	SerialNo  string `json:"serial_no,omitempty"`
}

// String returns a stable textual form, usable as a lock or cache key
func (k StockKey) String() string {
	return strings.Join([]string{k.ItemCode, k.Warehouse, k.BatchNo, k.SerialNo}, "|")
}

// Validate checks that the item and warehouse are present
func (k StockKey) Validate() error {
	if k.ItemCode == "" {
		return fmt.Errorf("%w: item code is required", shared.ErrValidation)
	}
	if k.Warehouse == "" {
		return fmt.Errorf("%w: warehouse is required", shared.ErrValidation)
	}
	return nil
}

// Less orders keys lexically, the order in which multi-key locks are taken
func (k StockKey) Less(o StockKey) bool {
	return k.String() < o.String()
}

// SortKeys sorts keys in lock order and drops duplicates
func SortKeys(keys []StockKey) []StockKey {
	seen := make(map[StockKey]struct{}, len(keys))
	out := make([]StockKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
