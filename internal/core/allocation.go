package core

import "github.com/shopspring/decimal"

// OpenSale is the snapshot of an outstanding sale the allocator walks over:
// status PENDING or PARTIAL with credit still owed.
type OpenSale struct {
	SaleID        int
	InvoiceNumber string
	Credit        decimal.Decimal
}

// Allocation is one planned application of payment to a sale.
type Allocation struct {
	SaleID        int             `json:"sale_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Applied       decimal.Decimal `json:"applied"`
	NewCredit     decimal.Decimal `json:"new_credit"`
	NewStatus     PaymentStatus   `json:"new_status"`
}

// AllocationPlan is the deterministic outcome of distributing a payment over
// a fixed snapshot of open sales. Replanning over the same snapshot always
// yields the same plan.
type AllocationPlan struct {
	Allocations []Allocation    `json:"allocations"`
	Remainder   decimal.Decimal `json:"remainder"`
}

// PlanAllocation walks open sales in the order given (oldest debt first) and
// applies min(remaining, credit) to each, stopping once the payment is spent.
// A sale whose credit reaches zero becomes COMPLETED; a partially covered one
// PARTIAL. The sum of applied amounts plus the remainder equals payment
// exactly; the remainder is the caller's to handle, never discarded.
// Allocations is never nil, so an empty plan serializes as [].
func PlanAllocation(open []OpenSale, payment decimal.Decimal) AllocationPlan {
	plan := AllocationPlan{Allocations: []Allocation{}, Remainder: payment}

	for _, sale := range open {
		if plan.Remainder.LessThanOrEqual(decimal.Zero) {
			break
		}
		if sale.Credit.LessThanOrEqual(decimal.Zero) {
			continue
		}

		applied := decimal.Min(plan.Remainder, sale.Credit)
		newCredit := sale.Credit.Sub(applied)

		status := PaymentPartial
		if isZeroAmount(newCredit) {
			status = PaymentCompleted
		}

		plan.Allocations = append(plan.Allocations, Allocation{
			SaleID:        sale.SaleID,
			InvoiceNumber: sale.InvoiceNumber,
			Applied:       applied,
			NewCredit:     newCredit,
			NewStatus:     status,
		})
		plan.Remainder = plan.Remainder.Sub(applied)
	}

	return plan
}
