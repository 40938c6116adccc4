package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_Outcomes(t *testing.T) {
	o := Order{Lines: []OrderLine{
		{ProductName: "Phone", Quantity: 3, Outcome: OutcomeDeducted},
		{ProductName: "Ghost", Quantity: 1, Outcome: OutcomeProductNotFound},
	}}

	assert.Equal(t, []LineOutcome{OutcomeDeducted, OutcomeProductNotFound}, o.Outcomes())
	assert.False(t, o.Fulfilled())
	assert.Equal(t, 3, o.DeductedQuantity("Phone"))
	assert.Equal(t, 0, o.DeductedQuantity("Ghost"))
}

func TestOrder_FulfilledRequiresLines(t *testing.T) {
	assert.False(t, Order{}.Fulfilled())
	assert.True(t, Order{Lines: []OrderLine{{ProductName: "Phone", Quantity: 1, Outcome: OutcomeDeducted}}}.Fulfilled())
}

func TestOrder_CloneDoesNotShareLines(t *testing.T) {
	o := Order{ID: 1, Lines: []OrderLine{{ProductName: "Phone", Quantity: 1, Outcome: OutcomePending}}}
	c := o.Clone()
	c.Lines[0].Outcome = OutcomeDeducted

	assert.Equal(t, OutcomePending, o.Lines[0].Outcome)
}
