// Package money holds the decimal helpers shared by pricing and payment code.
// Amounts are dollars with two decimal places; gateways that speak in minor
// units convert at the edge.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat builds a decimal from a float and rounds it to cents.
func FromFloat(f float64) decimal.Decimal {
	return Round2(decimal.NewFromFloat(f))
}

// FromMinor converts minor units (cents) into dollars.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// ToMinor converts dollars into minor units, rounding to the nearest cent.
func ToMinor(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// Percent returns base * pct / 100 rounded to cents.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// FloorZero clamps negative amounts to zero.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Equal compares two amounts at cent precision.
func Equal(a, b decimal.Decimal) bool {
	return Round2(a).Equal(Round2(b))
}

// Sum adds every amount.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Format renders an amount as a dollar string, e.g. "$23.00".
func Format(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
