package ledger

import "errors"

var (
	// ErrCurrencyMismatch indicates a caller bug: credits must be issued in
	// the owning subscription's currency.
	ErrCurrencyMismatch = errors.New("credit currency does not match subscription currency")
	// ErrOverdraft is returned when a debit exceeds the remaining balance.
	// The credit is left unchanged.
	ErrOverdraft = errors.New("debit amount exceeds remaining credit balance")
	// ErrCreditNotUsable is returned when debiting a used or cancelled credit.
	ErrCreditNotUsable = errors.New("credit is not usable")
	// ErrCreditExpired is returned when debiting a credit whose expiry has
	// passed, regardless of remaining balance.
	ErrCreditExpired = errors.New("credit has expired")
	// ErrInvalidCreditAmount indicates a non-positive issuance or debit amount.
	ErrInvalidCreditAmount = errors.New("credit amount must be positive")
)
