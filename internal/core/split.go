package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// amountEpsilon is the tolerance for amount equality checks. Monetary values
// are stored with two decimal places, so any difference smaller than one cent
// is treated as zero.
var amountEpsilon = decimal.RequireFromString("0.01")

// isZeroAmount reports whether v is zero within the cent tolerance.
func isZeroAmount(v decimal.Decimal) bool {
	return v.Abs().LessThan(amountEpsilon)
}

// ValidateSplit checks that payment + credit equals total within tolerance.
// credit may be negative: the customer overpaid or drew down advance credit.
func ValidateSplit(total, payment, credit decimal.Decimal) error {
	diff := payment.Add(credit).Sub(total)
	if !isZeroAmount(diff) {
		return fmt.Errorf("%w: payment %s + credit %s != total %s",
			ErrPaymentMismatch, payment.StringFixed(2), credit.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

// SplitStatus derives the payment status of a sale from its split.
func SplitStatus(payment, credit decimal.Decimal) PaymentStatus {
	if credit.LessThan(amountEpsilon) {
		return PaymentCompleted
	}
	if payment.GreaterThanOrEqual(amountEpsilon) {
		return PaymentPartial
	}
	return PaymentPending
}

// NextBalance chains a customer's running balance: the prior balance plus the
// unpaid portion of the new sale. A negative result is standing advance
// credit; a positive one is amount owed.
func NextBalance(prior, total, payment decimal.Decimal) decimal.Decimal {
	return prior.Add(total.Sub(payment))
}
