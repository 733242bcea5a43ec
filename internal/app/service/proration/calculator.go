package proration

import (
	"errors"
	"fmt"

	"github.com/coldpilot/billing/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrInvalidProrationInput indicates a precondition violation by the caller.
// Inputs are never clamped silently.
var ErrInvalidProrationInput = errors.New("invalid proration input")

// Result is the outcome of a proration calculation. UI consumers render these
// fields as-is, without recomputation.
type Result struct {
	// ProrationAmount is the non-negative signed-adjustment magnitude,
	// rounded to the currency's minor unit.
	ProrationAmount decimal.Decimal `json:"proration_amount"`
	// IsCredit is true when the customer is owed the amount rather than
	// owing it.
	IsCredit bool `json:"is_credit"`
	// NextInvoiceAmount is the resulting next-invoice total, never negative.
	NextInvoiceAmount decimal.Decimal `json:"next_invoice_amount"`
	DaysRemaining     int             `json:"days_remaining"`
	TotalDays         int             `json:"total_days"`
}

// Prorate computes the plan-change adjustment for the unused remainder of the
// current billing period. Pure and deterministic: no I/O, no clock.
//
// The old plan's unconsumed value and the new plan's cost over the same
// remaining span are compared; a positive delta is charged, a non-positive
// delta becomes a credit. Rounding (round-half-even at the currency's
// minor-unit precision) is applied once at the end, not per step, so
// intermediate division error does not compound.
func Prorate(oldAmount, newAmount decimal.Decimal, daysRemaining, totalDays int, currency string) (*Result, error) {
	if totalDays <= 0 {
		return nil, fmt.Errorf("%w: totalDays must be positive, got %d", ErrInvalidProrationInput, totalDays)
	}
	if daysRemaining < 0 || daysRemaining > totalDays {
		return nil, fmt.Errorf("%w: daysRemaining %d outside [0, %d]", ErrInvalidProrationInput, daysRemaining, totalDays)
	}
	if oldAmount.IsNegative() || newAmount.IsNegative() {
		return nil, fmt.Errorf("%w: amounts must be non-negative (old=%s new=%s)", ErrInvalidProrationInput, oldAmount, newAmount)
	}

	total := decimal.NewFromInt(int64(totalDays))
	remaining := decimal.NewFromInt(int64(daysRemaining))

	// Value of the current plan not yet consumed, and cost of the new plan
	// for the same remaining span.
	unusedOld := oldAmount.Div(total).Mul(remaining)
	costNew := newAmount.Div(total).Mul(remaining)
	delta := costNew.Sub(unusedOld)

	res := &Result{DaysRemaining: daysRemaining, TotalDays: totalDays}
	switch {
	case delta.IsPositive():
		res.IsCredit = false
		res.ProrationAmount = types.RoundToCurrency(delta, currency)
		res.NextInvoiceAmount = types.RoundToCurrency(newAmount.Add(delta), currency)
	case delta.IsZero():
		// Nothing to adjust; a zero delta is not a credit.
		res.IsCredit = false
		res.ProrationAmount = types.RoundToCurrency(decimal.Zero, currency)
		res.NextInvoiceAmount = types.RoundToCurrency(newAmount, currency)
	default:
		res.IsCredit = true
		res.ProrationAmount = types.RoundToCurrency(delta.Neg(), currency)
		next := newAmount.Add(delta)
		if next.IsNegative() {
			next = decimal.Zero
		}
		res.NextInvoiceAmount = types.RoundToCurrency(next, currency)
	}

	return res, nil
}

// IsUpgrade labels a plan change for callers; it does not change the formula.
func IsUpgrade(oldAmount, newAmount decimal.Decimal) bool {
	return newAmount.GreaterThan(oldAmount)
}
