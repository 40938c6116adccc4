// Package gate bounds how many order placements run at once.
//
// The gate is a throughput throttle only. Correctness of the inventory and
// the ledger never depends on it: both are protected by their own locks, and
// raising the limit changes how much work overlaps, not what gets committed.
package gate

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const DefaultLimit = 1

type Gate struct {
	sem      *semaphore.Weighted
	limit    int
	inFlight atomic.Int64
}

// New returns a gate admitting at most limit holders. A limit below 1 is
// treated as DefaultLimit.
func New(limit int) *Gate {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
}

// Acquire blocks until a slot is free or ctx is done. On error no slot is
// held and Release must not be called.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	g.inFlight.Add(1)
	return nil
}

func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Do runs fn while holding a slot. The slot is released on every exit path,
// including a panic in fn.
func (g *Gate) Do(ctx context.Context, fn func() error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn()
}

func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

func (g *Gate) Limit() int {
	return g.limit
}
