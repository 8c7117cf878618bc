package inventory

import (
	"errors"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// errDeferred aborts a unit of work whose backdated correction goes to the repost worker
var errDeferred = errors.New("repost deferred")

// linePlan is one entry to write. rateFrom links a transfer-in leg to its outward leg.
type linePlan struct {
	entry    *inventory.LedgerEntry
	rateFrom *inventory.LedgerEntry
}

type repostRecord struct {
	key      inventory.StockKey
	from     time.Time
	replayed int
}

type cancellation struct {
	original *inventory.LedgerEntry
	reversal *inventory.LedgerEntry
	reason   string
}

// postingUnit collects what one committed unit of work produced
type postingUnit struct {
	entries       []*inventory.LedgerEntry
	states        map[inventory.StockKey]inventory.CachedCostState
	deltas        map[string]decimal.Decimal
	reposts       []repostRecord
	cancellations []cancellation
}

func newPostingUnit() *postingUnit {
	return &postingUnit{
		states: make(map[inventory.StockKey]inventory.CachedCostState),
		deltas: make(map[string]decimal.Decimal),
	}
}

func (u *postingUnit) record(entry *inventory.LedgerEntry, tail uuid.UUID, state strategy.CostState) {
	u.entries = append(u.entries, entry)
	u.setState(entry.Key(), tail, state)
	u.addDelta(entry.Warehouse, entry.Qty)
}

func (u *postingUnit) setState(key inventory.StockKey, tail uuid.UUID, state strategy.CostState) {
	u.states[key] = inventory.CachedCostState{TailEntryID: tail, State: state}
}

func (u *postingUnit) addDelta(warehouse string, qty decimal.Decimal) {
	u.deltas[warehouse] = u.deltas[warehouse].Add(qty)
}

func (u *postingUnit) repost(key inventory.StockKey, from time.Time, replayed int) {
	u.reposts = append(u.reposts, repostRecord{key: key, from: from, replayed: replayed})
}

func (u *postingUnit) cancel(original, reversal *inventory.LedgerEntry, reason string) {
	u.cancellations = append(u.cancellations, cancellation{original: original, reversal: reversal, reason: reason})
	u.addDelta(original.Warehouse, original.Qty.Neg())
}

func (u *postingUnit) replayed() int {
	total := 0
	for _, r := range u.reposts {
		total += r.replayed
	}
	return total
}

// warehouses returns the touched warehouses in a stable order
func (u *postingUnit) warehouses() []string {
	out := make([]string, 0, len(u.deltas))
	for wh := range u.deltas {
		out = append(out, wh)
	}
	sort.Strings(out)
	return out
}

func (u *postingUnit) postingResult(postingID uuid.UUID) *PostingResult {
	result := &PostingResult{
		PostingID: postingID,
		EntryIDs:  make([]uuid.UUID, 0, len(u.entries)),
		Entries:   make([]LedgerEntryDTO, 0, len(u.entries)),
		Reposted:  len(u.reposts) > 0,
		Replayed:  u.replayed(),
	}
	for _, e := range u.entries {
		result.EntryIDs = append(result.EntryIDs, e.ID)
		result.Entries = append(result.Entries, ToLedgerEntryDTO(e))
	}
	return result
}

func (u *postingUnit) cancelResult() *CancelResult {
	result := &CancelResult{Replayed: u.replayed()}
	for _, c := range u.cancellations {
		result.CancelledIDs = append(result.CancelledIDs, c.original.ID)
		result.ReversalIDs = append(result.ReversalIDs, c.reversal.ID)
	}
	return result
}

func keysOf(plans []linePlan) []inventory.StockKey {
	keys := make([]inventory.StockKey, 0, len(plans))
	for _, p := range plans {
		keys = append(keys, p.entry.Key())
	}
	return inventory.SortKeys(keys)
}

// copyDerived copies the fields a replay computes from src onto dst
func copyDerived(dst, src *inventory.LedgerEntry) {
	dst.Sequence = src.Sequence
	dst.IncomingRate = src.IncomingRate
	dst.OutgoingRate = src.OutgoingRate
	dst.ValuationRate = src.ValuationRate
	dst.BalanceQty = src.BalanceQty
	dst.BalanceValue = src.BalanceValue
	dst.StockValueDifference = src.StockValueDifference
	dst.PriceVariance = src.PriceVariance
}
