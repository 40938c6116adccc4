package port

import (
	"context"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

type InventoryMirror interface {
	// PublishSnapshot replaces the mirrored inventory with products, unless a
	// snapshot with an equal or higher version was already published.
	// Returns false when the snapshot was stale.
	PublishSnapshot(ctx context.Context, version uint64, products []domain.Product) (bool, error)
}
