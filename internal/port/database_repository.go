package port

import (
	"context"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

type OrderArchive interface {
	// ArchiveOrder stores a placed order and its line outcomes. Archiving the
	// same order twice is a no-op.
	ArchiveOrder(ctx context.Context, order domain.Order) error
}
