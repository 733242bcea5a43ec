package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies are ISO 4217 currencies without a minor unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"jpy": {},
	"krw": {},
	"vnd": {},
	"clp": {},
	"isk": {},
}

// CurrencyPrecision returns the number of minor-unit decimals for an ISO 4217
// currency code: 0 for zero-decimal currencies such as JPY, otherwise 2.
func CurrencyPrecision(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return 0
	}
	return 2
}

// RoundToCurrency rounds a monetary amount to the currency's minor-unit
// precision using round-half-even (banker's rounding). Callers are expected
// to round exactly once, at the end of a calculation.
func RoundToCurrency(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(CurrencyPrecision(currency))
}

// SameCurrency compares two ISO 4217 codes case-insensitively.
func SameCurrency(a, b string) bool {
	return strings.EqualFold(a, b)
}
