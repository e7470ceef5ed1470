package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAllocation_OldestFirst(t *testing.T) {
	// GIVEN: two outstanding sales, credit 500 then 300 (oldest first)
	open := []OpenSale{
		{SaleID: 1, InvoiceNumber: "BR1-000001", Credit: d("500")},
		{SaleID: 2, InvoiceNumber: "BR1-000002", Credit: d("300")},
	}

	// WHEN: allocating a 700 payment
	plan := PlanAllocation(open, d("700"))

	// THEN: the first sale is fully paid, the second reduced to 100
	require.Len(t, plan.Allocations, 2)

	assert.Equal(t, 1, plan.Allocations[0].SaleID)
	assert.True(t, plan.Allocations[0].Applied.Equal(d("500")))
	assert.True(t, plan.Allocations[0].NewCredit.IsZero())
	assert.Equal(t, PaymentCompleted, plan.Allocations[0].NewStatus)

	assert.Equal(t, 2, plan.Allocations[1].SaleID)
	assert.True(t, plan.Allocations[1].Applied.Equal(d("200")))
	assert.True(t, plan.Allocations[1].NewCredit.Equal(d("100")))
	assert.Equal(t, PaymentPartial, plan.Allocations[1].NewStatus)

	assert.True(t, plan.Remainder.IsZero())
}

func TestPlanAllocation_ExactCoverCompletes(t *testing.T) {
	open := []OpenSale{{SaleID: 7, InvoiceNumber: "WH1-000007", Credit: d("120.50")}}

	plan := PlanAllocation(open, d("120.50"))

	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, PaymentCompleted, plan.Allocations[0].NewStatus)
	assert.True(t, plan.Allocations[0].NewCredit.IsZero())
	assert.True(t, plan.Remainder.IsZero())
}

func TestPlanAllocation_NoOpenSales(t *testing.T) {
	plan := PlanAllocation(nil, d("250"))

	assert.Empty(t, plan.Allocations)
	assert.True(t, plan.Remainder.Equal(d("250")))

	// Clients see "allocations": [] rather than null.
	assert.NotNil(t, plan.Allocations)
	data, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"allocations":[]`)
}

func TestPlanAllocation_OverpaymentReturnsRemainder(t *testing.T) {
	open := []OpenSale{{SaleID: 1, InvoiceNumber: "BR1-000001", Credit: d("100")}}

	plan := PlanAllocation(open, d("250"))

	require.Len(t, plan.Allocations, 1)
	assert.True(t, plan.Allocations[0].Applied.Equal(d("100")))
	assert.True(t, plan.Remainder.Equal(d("150")))
}

func TestPlanAllocation_StopsOnceSpent(t *testing.T) {
	open := []OpenSale{
		{SaleID: 1, Credit: d("40")},
		{SaleID: 2, Credit: d("40")},
		{SaleID: 3, Credit: d("40")},
	}

	plan := PlanAllocation(open, d("80"))

	require.Len(t, plan.Allocations, 2)
	assert.True(t, plan.Remainder.IsZero())
}

func TestPlanAllocation_AppliedPlusRemainderEqualsPayment(t *testing.T) {
	open := []OpenSale{
		{SaleID: 1, Credit: d("19.99")},
		{SaleID: 2, Credit: d("250.01")},
		{SaleID: 3, Credit: d("3.50")},
	}

	for _, payment := range []string{"0.01", "19.99", "20.00", "273.50", "500"} {
		plan := PlanAllocation(open, d(payment))

		applied := decimal.Zero
		for _, a := range plan.Allocations {
			applied = applied.Add(a.Applied)
		}
		assert.True(t, applied.Add(plan.Remainder).Equal(d(payment)),
			"payment %s: applied %s + remainder %s", payment, applied, plan.Remainder)
	}
}

func TestPlanAllocation_DeterministicOverSnapshot(t *testing.T) {
	open := []OpenSale{
		{SaleID: 1, Credit: d("500")},
		{SaleID: 2, Credit: d("300")},
	}

	first := PlanAllocation(open, d("700"))
	second := PlanAllocation(open, d("700"))

	assert.Equal(t, first, second)
}

func TestPlanAllocation_SkipsNonPositiveCredit(t *testing.T) {
	open := []OpenSale{
		{SaleID: 1, Credit: d("0")},
		{SaleID: 2, Credit: d("100")},
	}

	plan := PlanAllocation(open, d("100"))

	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, 2, plan.Allocations[0].SaleID)
}
