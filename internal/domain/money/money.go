// Package money holds the rounding and formatting rules shared by every price
// computed during checkout. All amounts are in the store's single currency.
package money

import "github.com/shopspring/decimal"

// Currency is the ISO code every amount is denominated in.
const Currency = "usd"

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorAtZero clamps negative values to zero.
func FloorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MinorUnits converts an amount to integer cents, the unit payment intents use.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// Format renders an amount with exactly two decimal places, as the commerce
// backend expects for string-typed totals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Percent returns pct percent of d, unrounded.
func Percent(d, pct decimal.Decimal) decimal.Decimal {
	return d.Mul(pct).Div(hundred)
}
