package models

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PriceTotals is a base/current price pair.
type PriceTotals struct {
	Base    decimal.Decimal `json:"total_base_price"`
	Current decimal.Decimal `json:"total_current_price"`
}

// Add returns the element-wise sum of both totals.
func (t PriceTotals) Add(other PriceTotals) PriceTotals {
	return PriceTotals{
		Base:    t.Base.Add(other.Base),
		Current: t.Current.Add(other.Current),
	}
}

// Discount returns base minus current.
func (t PriceTotals) Discount() decimal.Decimal {
	return t.Base.Sub(t.Current)
}

// LineTotals multiplies unit prices by a participant count.
func LineTotals(basePrice, currentPrice decimal.Decimal, quantity int) PriceTotals {
	q := decimal.NewFromInt(int64(quantity))
	return PriceTotals{
		Base:    basePrice.Mul(q),
		Current: currentPrice.Mul(q),
	}
}

// IsCentPrecise reports whether amount has at most two decimal places.
func IsCentPrecise(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

// ToMinorUnits converts an amount to cents, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// PercentOf returns percent% of amount rounded half up to two decimal places.
func PercentOf(amount decimal.Decimal, percent int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(percent)).Div(hundred).Round(2)
}
