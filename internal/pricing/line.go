package pricing

import "github.com/shopspring/decimal"

// Unit is the per-unit price snapshot of a catalog item.
type Unit struct {
	BasePrice  decimal.Decimal `json:"basePrice"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	FinalPrice decimal.Decimal `json:"finalPrice"`
}

// Totals holds the per-line amounts derived from a Unit and a quantity.
type Totals struct {
	TotalBasePrice decimal.Decimal `json:"totalBasePrice"`
	TotalTax       decimal.Decimal `json:"totalTax"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	FinalPrice     decimal.Decimal `json:"finalPrice"`
}

// LineTotals multiplies every per-unit amount by qty. Results are not rounded so
// repeated increments and decrements never accumulate rounding drift.
func LineTotals(u Unit, qty int) Totals {
	q := decimal.NewFromInt(int64(qty))
	return Totals{
		TotalBasePrice: u.BasePrice.Mul(q),
		TotalTax:       u.Tax.Mul(q),
		TotalDiscount:  u.Discount.Mul(q),
		FinalPrice:     u.FinalPrice.Mul(q),
	}
}

// Round2 rounds d half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Rounded returns u with every amount rounded to two decimals.
func (u Unit) Rounded() Unit {
	return Unit{
		BasePrice:  Round2(u.BasePrice),
		Tax:        Round2(u.Tax),
		Discount:   Round2(u.Discount),
		FinalPrice: Round2(u.FinalPrice),
	}
}

// Rounded returns t with every amount rounded to two decimals.
func (t Totals) Rounded() Totals {
	return Totals{
		TotalBasePrice: Round2(t.TotalBasePrice),
		TotalTax:       Round2(t.TotalTax),
		TotalDiscount:  Round2(t.TotalDiscount),
		FinalPrice:     Round2(t.FinalPrice),
	}
}
