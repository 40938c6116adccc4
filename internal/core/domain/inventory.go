package domain

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateProduct = errors.New("duplicate product")
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidProduct   = errors.New("invalid product")
)

// Product is a named stock entry. Name is the identity and never changes
// once the product has been added.
type Product struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// CanDeduct reports whether quantity units can be taken from stock.
func (p *Product) CanDeduct(quantity int) bool {
	return p.Quantity >= quantity
}

func (p *Product) Deduct(quantity int) {
	p.Quantity -= quantity
}

// CanRestock reports whether quantity units fit on top of the current stock.
func (p *Product) CanRestock(quantity int) bool {
	return quantity <= math.MaxInt-p.Quantity
}

func (p *Product) Restock(quantity int) {
	p.Quantity += quantity
}

// Report is a joint view of the ledger and the inventory taken without any
// placement committing in between.
type Report struct {
	Orders    []Order   `json:"orders"`
	Inventory []Product `json:"inventory"`
}
