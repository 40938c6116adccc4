package domain

import (
	"errors"
	"slices"
	"time"
)

var ErrOrderNotFound = errors.New("order not found")

type LineOutcome string

const (
	OutcomePending           LineOutcome = "pending"
	OutcomeDeducted          LineOutcome = "deducted"
	OutcomeInsufficientStock LineOutcome = "insufficient_stock"
	OutcomeProductNotFound   LineOutcome = "product_not_found"
	OutcomeInvalidLine       LineOutcome = "invalid_line"
)

type OrderLine struct {
	ProductName string      `json:"product_name" validate:"required"`
	Quantity    int         `json:"quantity" validate:"gt=0"`
	Outcome     LineOutcome `json:"outcome,omitempty"`
}

type Order struct {
	ID        int64       `json:"id"`
	Customer  string      `json:"customer"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
}

// Outcomes returns the per-line outcomes in submitted order.
func (o Order) Outcomes() []LineOutcome {
	out := make([]LineOutcome, len(o.Lines))
	for i, line := range o.Lines {
		out[i] = line.Outcome
	}
	return out
}

// Fulfilled reports whether every line was deducted.
func (o Order) Fulfilled() bool {
	for _, line := range o.Lines {
		if line.Outcome != OutcomeDeducted {
			return false
		}
	}
	return len(o.Lines) > 0
}

// DeductedQuantity sums the units taken from productName by this order.
func (o Order) DeductedQuantity(productName string) int {
	total := 0
	for _, line := range o.Lines {
		if line.ProductName == productName && line.Outcome == OutcomeDeducted {
			total += line.Quantity
		}
	}
	return total
}

// Clone returns a copy that shares no memory with o.
func (o Order) Clone() Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}
