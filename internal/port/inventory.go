package port

import (
	"time"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

// Inventory is the stock the order service deducts from.
type Inventory interface {
	// TryDeduct atomically checks and takes quantity units of name.
	TryDeduct(name string, quantity int) domain.LineOutcome

	// Restock returns units taken by TryDeduct (used to compensate aborted placements)
	Restock(name string, quantity int) error

	// Snapshot returns the in-stock products in insertion order
	Snapshot() []domain.Product
}

// Recorder receives placement metrics.
type Recorder interface {
	AdmissionWaited(wait time.Duration)
	AdmissionChanged(inFlight int)
	OrderPlaced(order domain.Order)
}

type NopRecorder struct{}

func (NopRecorder) AdmissionWaited(time.Duration) {}
func (NopRecorder) AdmissionChanged(int)          {}
func (NopRecorder) OrderPlaced(domain.Order)      {}
