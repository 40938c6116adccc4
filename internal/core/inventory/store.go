// Package inventory holds the in-memory stock of named products.
package inventory

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

// Store maps product names to stock entries. A single lock covers the whole
// map, so a check and the decrement that follows it are never observed apart.
type Store struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	names    []string // insertion order
	version  uint64
}

func NewStore() *Store {
	return &Store{products: make(map[string]*domain.Product)}
}

// AddProduct inserts a new product. Adding a name that already exists fails
// with domain.ErrDuplicateProduct and leaves the existing entry untouched.
func (s *Store) AddProduct(name string, price decimal.Decimal, quantity int) error {
	if name == "" || price.IsNegative() || quantity < 0 {
		return fmt.Errorf("%w: name=%q price=%s quantity=%d", domain.ErrInvalidProduct, name, price, quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[name]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, name)
	}
	s.products[name] = &domain.Product{Name: name, Price: price, Quantity: quantity}
	s.names = append(s.names, name)
	s.version++
	return nil
}

// TryDeduct takes quantity units of name from stock, all or nothing.
func (s *Store) TryDeduct(name string, quantity int) domain.LineOutcome {
	if quantity <= 0 {
		return domain.OutcomeInvalidLine
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[name]
	if !ok {
		return domain.OutcomeProductNotFound
	}
	if !p.CanDeduct(quantity) {
		return domain.OutcomeInsufficientStock
	}
	p.Deduct(quantity)
	s.version++
	return domain.OutcomeDeducted
}

// Restock returns quantity units of name to stock.
func (s *Store) Restock(name string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: restock quantity %d", domain.ErrInvalidProduct, quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, name)
	}
	if !p.CanRestock(quantity) {
		return fmt.Errorf("%w: restocking %s by %d overflows quantity %d", domain.ErrInvalidProduct, name, quantity, p.Quantity)
	}
	p.Restock(quantity)
	s.version++
	return nil
}

func (s *Store) Lookup(name string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[name]
	if !ok {
		return domain.Product{}, false
	}
	return *p, true
}

// Snapshot returns a point-in-time copy of every product that is still in
// stock, in the order the products were added.
func (s *Store) Snapshot() []domain.Product {
	_, products := s.VersionedSnapshot()
	return products
}

// VersionedSnapshot is Snapshot plus the mutation counter the copy was taken
// at. Two snapshots with the same version are identical.
func (s *Store) VersionedSnapshot() (uint64, []domain.Product) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.names))
	for _, name := range s.names {
		p := s.products[name]
		if p.Quantity > 0 {
			out = append(out, *p)
		}
	}
	return s.version, out
}
