// Package ledger keeps the append-only record of placed orders.
package ledger

import (
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

// Ledger assigns dense, strictly increasing order ids starting at 1 and
// stores orders by id. Entries are never removed or rewritten.
type Ledger struct {
	mu     sync.RWMutex
	orders []domain.Order
	nextID int64
	now    func() time.Time
}

func New() *Ledger {
	return &Ledger{nextID: 1, now: time.Now}
}

// AllocateAndAppend stamps the next id on a new order and runs process on it
// while the ledger lock is held, then appends the result. Callers that touch
// the inventory from process therefore always lock the ledger first.
//
// If process panics the order is not appended and its id is not consumed.
func (l *Ledger) AllocateAndAppend(customer string, lines []domain.OrderLine, process func(o *domain.Order)) domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	o := domain.Order{
		ID:        l.nextID,
		Customer:  customer,
		Lines:     make([]domain.OrderLine, len(lines)),
		CreatedAt: l.now(),
	}
	copy(o.Lines, lines)

	if process != nil {
		process(&o)
	}

	l.orders = append(l.orders, o)
	l.nextID++
	return o.Clone()
}

func (l *Ledger) Get(id int64) (domain.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if id < 1 || id > int64(len(l.orders)) {
		return domain.Order{}, fmt.Errorf("%w: %d", domain.ErrOrderNotFound, id)
	}
	return l.orders[id-1].Clone(), nil
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}

// All yields orders in ascending id order. Each range over the sequence
// starts again from id 1 and stops at the length observed when it began;
// the lock is only held while a single entry is copied.
func (l *Ledger) All() iter.Seq[domain.Order] {
	return func(yield func(domain.Order) bool) {
		n := int64(l.Len())
		for id := int64(1); id <= n; id++ {
			o, err := l.Get(id)
			if err != nil || !yield(o) {
				return
			}
		}
	}
}

// View calls fn with the ledger read-locked. fn must not retain orders or
// call back into the ledger.
func (l *Ledger) View(fn func(orders []domain.Order)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.orders)
}
