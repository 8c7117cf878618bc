// Package lock provides per stock key serialization for ledger writers.
package lock

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
)

// DefaultStripes is the stripe count of a LocalKeyLocker created with zero stripes
const DefaultStripes = 256

// LocalKeyLocker serializes keys inside one process.
// Keys hash onto a fixed set of stripes; distinct keys sharing a stripe simply wait for each other.
type LocalKeyLocker struct {
	stripes []chan struct{}
	wait    time.Duration
}

// NewLocalKeyLocker creates a locker. A zero wait blocks until the context ends.
func NewLocalKeyLocker(stripes int, wait time.Duration) *LocalKeyLocker {
	if stripes <= 0 {
		stripes = DefaultStripes
	}
	l := &LocalKeyLocker{
		stripes: make([]chan struct{}, stripes),
		wait:    wait,
	}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

// Lock acquires every key's stripe in ascending stripe order
func (l *LocalKeyLocker) Lock(ctx context.Context, keys ...inventory.StockKey) (func(), error) {
	indexes := l.stripesFor(keys)

	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	held := make([]int, 0, len(indexes))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-l.stripes[held[i]]
		}
	}

	for _, idx := range indexes {
		select {
		case l.stripes[idx] <- struct{}{}:
			held = append(held, idx)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w: timed out waiting for stock key lock", shared.ErrConcurrencyConflict)
		}
	}
	return release, nil
}

func (l *LocalKeyLocker) stripesFor(keys []inventory.StockKey) []int {
	seen := make(map[int]struct{}, len(keys))
	out := make([]int, 0, len(keys))
	for _, key := range keys {
		h := fnv.New32a()
		_, _ = h.Write([]byte(key.String()))
		idx := int(h.Sum32() % uint32(len(l.stripes)))
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

var _ inventory.KeyLocker = (*LocalKeyLocker)(nil)
