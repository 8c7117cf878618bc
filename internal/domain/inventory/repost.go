package inventory

import (
	"errors"
	"fmt"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/domain/shared/strategy"
)

// ReplayResult is the outcome of recomputing a key's timeline
type ReplayResult struct {
	// State is the cost state after the last entry
	State strategy.CostState
	// Changed holds the entries whose derived fields differ from what was stored
	Changed []*LedgerEntry
	// Replayed counts the entries walked after the insertion point
	Replayed int
}

// Reposter recomputes derived fields downstream of a backdated posting or a cancellation
type Reposter struct {
	engine *ValuationEngine
}

// NewReposter creates a reposter on top of a valuation engine
func NewReposter(engine *ValuationEngine) *Reposter {
	return &Reposter{engine: engine}
}

// SplitAt partitions ordered entries into those strictly before pos and the rest
func SplitAt(entries []*LedgerEntry, pos Position) (prefix, downstream []*LedgerEntry) {
	for i, entry := range entries {
		if !entry.Position().Before(pos) {
			return entries[:i], entries[i:]
		}
	}
	return entries, nil
}

// Repost replays a key's full timeline from pos to its end.
// The prefix is folded as stored; every later entry gets fresh derived fields.
func (r *Reposter) Repost(item *Item, entries []*LedgerEntry, pos Position) (*ReplayResult, error) {
	prefix, downstream := SplitAt(entries, pos)
	state, err := r.engine.Fold(item, prefix)
	if err != nil {
		return nil, err
	}
	return r.Replay(item, state, downstream)
}

// Replay walks downstream entries in order starting from state.
// Cancelled originals are skipped; reversals record the state at their position.
// A shortfall anywhere aborts the whole replay with ErrRepostAborted.
func (r *Reposter) Replay(item *Item, state strategy.CostState, downstream []*LedgerEntry) (*ReplayResult, error) {
	result := &ReplayResult{State: state}
	for _, entry := range downstream {
		before := entry.Clone()
		result.Replayed++

		if !entry.Counts() {
			if !entry.IsReversal() {
				continue
			}
			r.engine.Record(result.State, entry)
		} else {
			next, err := r.engine.Apply(result.State, item, entry)
			if err != nil {
				if errors.Is(err, shared.ErrInsufficientStock) {
					return nil, fmt.Errorf("%w: entry %s of %s: %v", shared.ErrRepostAborted, entry.ID, entry.Key(), err)
				}
				return nil, err
			}
			result.State = next
		}

		if !before.SameDerived(entry) || !before.IncomingRate.Equal(entry.IncomingRate) {
			result.Changed = append(result.Changed, entry)
		}
	}
	return result, nil
}
