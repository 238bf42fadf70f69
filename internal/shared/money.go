package shared

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits kept for monetary amounts.
const MoneyScale = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to MoneyScale digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// PercentOf returns base * pct / 100 rounded to MoneyScale.
func PercentOf(base, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(base.Mul(pct).Div(hundred))
}

// ChangePercentage returns ((newValue-oldValue)/oldValue)*100 rounded to two
// decimals. ok is false when oldValue is zero.
func ChangePercentage(oldValue, newValue decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if oldValue.IsZero() {
		return decimal.Zero, false
	}
	return newValue.Sub(oldValue).Div(oldValue).Mul(hundred).Round(MoneyScale), true
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
