package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
)

// maxScopeCodeLen bounds codes derived from scope names.
const maxScopeCodeLen = 4

// InvoiceSequencer produces unique, monotonically increasing, human-readable
// invoice numbers per prefix. The counter lives in invoice_sequences and is
// advanced with an atomic upsert-increment, so concurrent sale creation for
// the same prefix serializes on the counter row. The first use of a prefix
// seeds the counter from the highest suffix already present in sales, which
// carries over numbering from data created before the counter existed.
type InvoiceSequencer struct{}

func NewInvoiceSequencer() *InvoiceSequencer {
	return &InvoiceSequencer{}
}

// ResolveScopeCode returns the invoice prefix for a scope, locking the
// backing row. A missing code is derived from the scope name and persisted so
// future numbering stays stable.
func (q *InvoiceSequencer) ResolveScopeCode(ctx context.Context, tx pgx.Tx, scope Scope) (string, error) {
	table, err := scope.table()
	if err != nil {
		return "", err
	}

	var name string
	var code *string
	query := fmt.Sprintf("SELECT name, code FROM %s WHERE id = $1 AND is_active = true FOR UPDATE", table)
	err = tx.QueryRow(ctx, query, scope.ID).Scan(&name, &code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", ErrScopeNotFound, scope)
		}
		return "", fmt.Errorf("failed to resolve scope %s: %w", scope, err)
	}

	if code != nil && strings.TrimSpace(*code) != "" {
		return strings.TrimSpace(*code), nil
	}

	derived := deriveScopeCode(name)
	if derived == "" {
		return "", fmt.Errorf("%w: scope %s has no code and name %q yields none", ErrCodeUnresolvable, scope, name)
	}

	update := fmt.Sprintf("UPDATE %s SET code = $1 WHERE id = $2", table)
	if _, err := tx.Exec(ctx, update, derived, scope.ID); err != nil {
		return "", fmt.Errorf("failed to persist derived code %q for scope %s: %w", derived, scope, err)
	}
	return derived, nil
}

// deriveScopeCode builds a code from the leading alphanumeric characters of a
// name, uppercased.
func deriveScopeCode(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= maxScopeCodeLen {
				break
			}
		}
	}
	return b.String()
}

// Next allocates the next invoice number for a prefix within the caller's
// transaction, formatted as "{prefix}-{6-digit number}".
func (q *InvoiceSequencer) Next(ctx context.Context, tx pgx.Tx, prefix string) (string, error) {
	if strings.TrimSpace(prefix) == "" {
		return "", ErrCodeUnresolvable
	}

	var exists bool
	err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM invoice_sequences WHERE prefix = $1)", prefix).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("failed to check invoice sequence for %q: %w", prefix, err)
	}

	var seed int64
	if !exists {
		seed, err = q.legacyMax(ctx, tx, prefix)
		if err != nil {
			return "", err
		}
	}

	// Upsert-increment: the ON CONFLICT branch takes a row lock, so two
	// writers on the same prefix cannot observe the same counter value.
	var last int64
	err = tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (prefix, last_number)
		VALUES ($1, $2 + 1)
		ON CONFLICT (prefix)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, prefix, seed).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("failed to advance invoice sequence for %q: %w", prefix, err)
	}

	number := formatInvoiceNumber(prefix, last)

	// If a sale already carries the candidate (possible when a different
	// numbering scheme wrote rows after the counter was seeded), step the
	// counter once more. A second collision is not recovered.
	taken, err := q.numberTaken(ctx, tx, number)
	if err != nil {
		return "", err
	}
	if taken {
		err = tx.QueryRow(ctx,
			"UPDATE invoice_sequences SET last_number = last_number + 1 WHERE prefix = $1 RETURNING last_number",
			prefix,
		).Scan(&last)
		if err != nil {
			return "", fmt.Errorf("failed to retry invoice sequence for %q: %w", prefix, err)
		}
		number = formatInvoiceNumber(prefix, last)
		taken, err = q.numberTaken(ctx, tx, number)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("invoice number %s still in use after retry", number)
		}
	}

	return number, nil
}

// NextForSalesperson allocates from the combined {scopeCode}-{salespersonCode}
// prefix, used by warehouses that attribute sales to individual staff.
func (q *InvoiceSequencer) NextForSalesperson(ctx context.Context, tx pgx.Tx, scopeCode, salespersonCode string) (string, error) {
	if strings.TrimSpace(salespersonCode) == "" {
		return "", fmt.Errorf("%w: empty salesperson code", ErrCodeUnresolvable)
	}
	return q.Next(ctx, tx, scopeCode+"-"+salespersonCode)
}

func formatInvoiceNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

// legacyMax scans existing invoice numbers for the prefix and returns the
// highest numeric suffix, 0 when none parse.
func (q *InvoiceSequencer) legacyMax(ctx context.Context, tx pgx.Tx, prefix string) (int64, error) {
	rows, err := tx.Query(ctx,
		"SELECT invoice_number FROM sales WHERE invoice_number LIKE $1 || '-%'",
		prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to scan existing invoice numbers for %q: %w", prefix, err)
	}
	defer rows.Close()

	var max int64
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return 0, fmt.Errorf("failed to scan invoice number: %w", err)
		}
		suffix := strings.TrimPrefix(number, prefix+"-")
		// Skip rows belonging to longer prefixes (e.g. "WH1-JS-000001"
		// when seeding "WH1") and anything non-numeric.
		if strings.Contains(suffix, "-") {
			continue
		}
		n, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating invoice numbers: %w", err)
	}
	return max, nil
}

func (q *InvoiceSequencer) numberTaken(ctx context.Context, tx pgx.Tx, number string) (bool, error) {
	var taken bool
	err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sales WHERE invoice_number = $1)", number).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice number %s: %w", number, err)
	}
	return taken, nil
}
