package core

import "errors"

var (
	// ErrScopeNotFound means the referenced branch or warehouse does not exist.
	ErrScopeNotFound = errors.New("scope not found")

	// ErrCodeUnresolvable means no invoice prefix could be resolved or derived
	// for a scope. The enclosing sale creation aborts.
	ErrCodeUnresolvable = errors.New("scope code unresolvable")

	// ErrPaymentMismatch means payment + credit does not equal the sale total
	// within the accepted tolerance. The sale is not created.
	ErrPaymentMismatch = errors.New("payment and credit do not sum to total")

	// ErrLedgerImbalance means the debit and credit legs of a transaction do
	// not match. The whole transaction is aborted.
	ErrLedgerImbalance = errors.New("ledger entries do not balance")

	// ErrAllocationFailed wraps any write failure during payment allocation;
	// the entire allocation is rolled back.
	ErrAllocationFailed = errors.New("payment allocation failed")

	ErrSaleNotFound     = errors.New("sale not found")
	ErrCustomerNotFound = errors.New("customer not found")
)
