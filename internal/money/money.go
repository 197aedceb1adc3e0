// Package money defines the exact decimal amount type used across pricing.
package money

import "github.com/shopspring/decimal"

// Money is an exact decimal amount. It aliases decimal.Decimal so NUMERIC
// columns scan into it directly via the registered pgx codec; arithmetic never
// passes through binary floats.
type Money = decimal.Decimal

// Zero returns the zero amount.
func Zero() Money { return decimal.Zero }

// FromUnits builds an amount from whole currency units.
func FromUnits(v int64) Money { return decimal.NewFromInt(v) }

// New builds an amount of value * 10^exp.
func New(value int64, exp int32) Money { return decimal.New(value, exp) }

// Parse converts a decimal string into an amount.
func Parse(s string) (Money, error) { return decimal.NewFromString(s) }

// MustParse is Parse for trusted literals; it panics on malformed input.
func MustParse(s string) Money { return decimal.RequireFromString(s) }

// Min returns the smaller of two amounts.
func Min(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Percent computes m * pct / 100 without loss of precision: the division by
// 100 is a decimal exponent shift, not a numeric division.
func Percent(m Money, pct decimal.Decimal) Money {
	return m.Mul(pct).Shift(-2)
}

// RoundHalfUp rounds to the given number of fractional digits, halves away
// from zero. Amounts are non-negative at every rounding boundary, so this is
// the half-up rule. This is the single rounding rule applied where a value is
// persisted or displayed; intermediate pipeline values keep full precision.
func RoundHalfUp(m Money, scale int32) Money {
	return m.Round(scale)
}
