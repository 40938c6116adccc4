package inventory

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.AddProduct("Phone", decimal.NewFromFloat(500.0), 10))
	require.NoError(t, s.AddProduct("Laptop", decimal.NewFromFloat(1200.0), 5))
	require.NoError(t, s.AddProduct("Tablet", decimal.NewFromFloat(300.0), 15))
	return s
}

func TestAddProduct_Duplicate(t *testing.T) {
	s := seededStore(t)

	err := s.AddProduct("Phone", decimal.NewFromInt(1), 99)
	require.ErrorIs(t, err, domain.ErrDuplicateProduct)

	p, ok := s.Lookup("Phone")
	require.True(t, ok)
	assert.True(t, p.Price.Equal(decimal.NewFromFloat(500.0)))
	assert.Equal(t, 10, p.Quantity)
}

func TestAddProduct_Invalid(t *testing.T) {
	s := NewStore()

	tests := []struct {
		name     string
		product  string
		price    decimal.Decimal
		quantity int
	}{
		{name: "empty name", product: "", price: decimal.NewFromInt(1), quantity: 1},
		{name: "negative price", product: "Phone", price: decimal.NewFromInt(-1), quantity: 1},
		{name: "negative quantity", product: "Phone", price: decimal.NewFromInt(1), quantity: -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := s.AddProduct(tc.product, tc.price, tc.quantity)
			assert.ErrorIs(t, err, domain.ErrInvalidProduct)
		})
	}
	assert.Empty(t, s.Snapshot())
}

func TestTryDeduct_Outcomes(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct("Phone", decimal.NewFromInt(500), 3))

	assert.Equal(t, domain.OutcomeInsufficientStock, s.TryDeduct("Phone", 5))
	assert.Equal(t, domain.OutcomeProductNotFound, s.TryDeduct("Ghost", 1))
	assert.Equal(t, domain.OutcomeInvalidLine, s.TryDeduct("Phone", -2))

	p, _ := s.Lookup("Phone")
	assert.Equal(t, 3, p.Quantity, "failed deductions must not touch stock")

	assert.Equal(t, domain.OutcomeDeducted, s.TryDeduct("Phone", 3))
	p, _ = s.Lookup("Phone")
	assert.Equal(t, 0, p.Quantity)
}

func TestTryDeduct_ZeroQuantityProductStaysAddressable(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct("Phone", decimal.NewFromInt(500), 1))
	require.Equal(t, domain.OutcomeDeducted, s.TryDeduct("Phone", 1))

	assert.Empty(t, s.Snapshot())
	assert.Equal(t, domain.OutcomeInsufficientStock, s.TryDeduct("Phone", 1))
	assert.ErrorIs(t, s.AddProduct("Phone", decimal.NewFromInt(1), 1), domain.ErrDuplicateProduct)

	require.NoError(t, s.Restock("Phone", 2))
	p, _ := s.Lookup("Phone")
	assert.Equal(t, 2, p.Quantity)
}

func TestRestock_Errors(t *testing.T) {
	s := seededStore(t)

	assert.ErrorIs(t, s.Restock("Ghost", 1), domain.ErrProductNotFound)
	assert.ErrorIs(t, s.Restock("Phone", 0), domain.ErrInvalidProduct)
}

func TestRestock_RejectsOverflow(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.AddProduct("Phone", decimal.NewFromInt(1), math.MaxInt-1))

	assert.ErrorIs(t, s.Restock("Phone", 2), domain.ErrInvalidProduct)
	p, _ := s.Lookup("Phone")
	assert.Equal(t, math.MaxInt-1, p.Quantity, "rejected restock must leave stock unchanged")

	require.NoError(t, s.Restock("Phone", 1))
	p, _ = s.Lookup("Phone")
	assert.Equal(t, math.MaxInt, p.Quantity)
	assert.ErrorIs(t, s.Restock("Phone", 1), domain.ErrInvalidProduct)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, math.MaxInt, snap[0].Quantity)
}

func TestTryDeduct_ConcurrentNoOversell(t *testing.T) {
	const (
		initialStock = 100
		workers      = 250
	)
	s := NewStore()
	require.NoError(t, s.AddProduct("Phone", decimal.NewFromInt(500), initialStock))

	var deducted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryDeduct("Phone", 1) == domain.OutcomeDeducted {
				deducted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), deducted.Load())
	p, _ := s.Lookup("Phone")
	assert.Equal(t, 0, p.Quantity)
}

func TestTryDeduct_ConcurrentMixedQuantities(t *testing.T) {
	// 30 requests of 2 and 30 of 3 against 60 units: whatever interleaving
	// wins, the successful total must fit in stock.
	const initialStock = 60
	s := NewStore()
	require.NoError(t, s.AddProduct("Tablet", decimal.NewFromInt(300), initialStock))

	var taken atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		qty := 2 + i%2
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryDeduct("Tablet", qty) == domain.OutcomeDeducted {
				taken.Add(int64(qty))
			}
		}()
	}
	wg.Wait()

	p, _ := s.Lookup("Tablet")
	assert.LessOrEqual(t, taken.Load(), int64(initialStock))
	assert.Equal(t, initialStock-int(taken.Load()), p.Quantity)
	assert.GreaterOrEqual(t, p.Quantity, 0)
}

func TestSnapshot_Idempotent(t *testing.T) {
	s := seededStore(t)

	v1, first := s.VersionedSnapshot()
	v2, second := s.VersionedSnapshot()

	assert.Equal(t, v1, v2)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Phone", "Laptop", "Tablet"}, names(first))
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := seededStore(t)

	snap := s.Snapshot()
	snap[0].Quantity = 0

	p, _ := s.Lookup("Phone")
	assert.Equal(t, 10, p.Quantity)
}

func TestSnapshot_NeverTorn(t *testing.T) {
	const initialStock = 2000
	prices := map[string]decimal.Decimal{
		"Phone":  decimal.NewFromFloat(500.0),
		"Laptop": decimal.NewFromFloat(1200.0),
	}
	s := NewStore()
	for name, price := range prices {
		require.NoError(t, s.AddProduct(name, price, initialStock))
	}

	done := make(chan struct{})
	var writers sync.WaitGroup
	for _, name := range []string{"Phone", "Laptop"} {
		for i := 0; i < 4; i++ {
			writers.Add(1)
			go func() {
				defer writers.Done()
				for s.TryDeduct(name, 1) == domain.OutcomeDeducted {
				}
			}()
		}
	}
	go func() {
		writers.Wait()
		close(done)
	}()

	last := map[string]int{"Phone": initialStock, "Laptop": initialStock}
	for {
		select {
		case <-done:
			assert.Empty(t, s.Snapshot())
			return
		default:
		}
		for _, p := range s.Snapshot() {
			require.True(t, p.Price.Equal(prices[p.Name]), "price of %s changed to %s", p.Name, p.Price)
			require.Greater(t, p.Quantity, 0)
			require.LessOrEqual(t, p.Quantity, last[p.Name], "quantity of %s went back up", p.Name)
			last[p.Name] = p.Quantity
		}
	}
}

func names(products []domain.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}
