package pricing

import "github.com/shopspring/decimal"

// Amount is one line contributing to a Summary.
type Amount struct {
	Quantity int
	Totals   Totals
}

// Summary aggregates quantities and amounts across lines.
type Summary struct {
	Quantity int64 `json:"totalQuantity"`
	Totals
}

// Summarize folds lines into a Summary. FinalPrice of the result is the grand total.
func Summarize(lines []Amount) Summary {
	var s Summary
	for _, l := range lines {
		s.Quantity += int64(l.Quantity)
		s.TotalBasePrice = s.TotalBasePrice.Add(l.Totals.TotalBasePrice)
		s.TotalTax = s.TotalTax.Add(l.Totals.TotalTax)
		s.TotalDiscount = s.TotalDiscount.Add(l.Totals.TotalDiscount)
		s.FinalPrice = s.FinalPrice.Add(l.Totals.FinalPrice)
	}
	return s
}

// Payable previews the amount due once invoice-level overrides are applied: the
// discount is capped at the grand total and tax is added on top.
func Payable(grandTotal, discount, tax decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if tax.IsNegative() {
		tax = decimal.Zero
	}
	if discount.GreaterThan(grandTotal) {
		discount = grandTotal
	}
	taxable := grandTotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	return taxable.Add(tax)
}
