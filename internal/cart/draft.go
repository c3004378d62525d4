// Package cart holds the in-progress invoice draft and its line aggregation.
package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-billing-gateway/internal/pricing"
)

// Product is a catalog item snapshot as it enters the cart.
type Product struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	SKU  string       `json:"sku"`
	Unit pricing.Unit `json:"unit"`
}

// Line is one cart entry. Unit is the per-unit snapshot captured when the item
// was first added; Totals are always Unit × Quantity.
type Line struct {
	ItemID   string         `json:"itemId"`
	Name     string         `json:"name"`
	SKU      string         `json:"sku"`
	Quantity int            `json:"quantity"`
	Unit     pricing.Unit   `json:"unit"`
	Totals   pricing.Totals `json:"totals"`
}

func (l *Line) reprice() {
	l.Totals = pricing.LineTotals(l.Unit, l.Quantity)
}

// Inputs are the operator's current search field values.
type Inputs struct {
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
	SKU     string `json:"sku"`
}

// Draft is an invoice being assembled at the counter.
type Draft struct {
	ID                string    `json:"id"`
	StoreID           string    `json:"storeId"`
	Lines             []Line    `json:"lines"`
	CustomerName      string    `json:"customerName"`
	CustomerContactNo string    `json:"customerContactNo"`
	CouponCode        string    `json:"couponCode"`
	DiscountOverTotal string    `json:"discountOverTotal"`
	TaxOverTotal      string    `json:"taxOverTotal"`
	DeliveryStatus    string    `json:"deliveryStatus"`
	PaymentStatus     string    `json:"paymentStatus"`
	Inputs            Inputs    `json:"inputs"`
	Candidates        []Product `json:"candidates"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (d *Draft) find(itemID string) int {
	for i := range d.Lines {
		if d.Lines[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// AddOrMerge adds delta units of p. An existing line keeps its position and
// original price snapshot; a new line is appended. Delta below 1 counts as 1.
func (d *Draft) AddOrMerge(p Product, delta int) {
	if delta < 1 {
		delta = 1
	}
	if i := d.find(p.ID); i >= 0 {
		d.Lines[i].Quantity += delta
		d.Lines[i].reprice()
		return
	}
	line := Line{ItemID: p.ID, Name: p.Name, SKU: p.SKU, Quantity: delta, Unit: p.Unit}
	line.reprice()
	d.Lines = append(d.Lines, line)
}

// Increment adds one unit. It reports false for unknown items.
func (d *Draft) Increment(itemID string) bool {
	i := d.find(itemID)
	if i < 0 {
		return false
	}
	d.Lines[i].Quantity++
	d.Lines[i].reprice()
	return true
}

// Decrement removes one unit while more than one remains. At quantity 1 the
// line is left alone; use Remove to drop it.
func (d *Draft) Decrement(itemID string) bool {
	i := d.find(itemID)
	if i < 0 || d.Lines[i].Quantity <= 1 {
		return false
	}
	d.Lines[i].Quantity--
	d.Lines[i].reprice()
	return true
}

// Remove deletes the line for itemID.
func (d *Draft) Remove(itemID string) bool {
	i := d.find(itemID)
	if i < 0 {
		return false
	}
	d.Lines = append(d.Lines[:i], d.Lines[i+1:]...)
	return true
}

// Amounts adapts the lines for pricing.Summarize.
func (d *Draft) Amounts() []pricing.Amount {
	out := make([]pricing.Amount, len(d.Lines))
	for i, l := range d.Lines {
		out[i] = pricing.Amount{Quantity: l.Quantity, Totals: l.Totals}
	}
	return out
}

// GrandTotal is the sum of line final prices.
func (d *Draft) GrandTotal() decimal.Decimal {
	return pricing.Summarize(d.Amounts()).FinalPrice
}

// Reset empties the draft after a successful submission, keeping its identity.
func (d *Draft) Reset() {
	*d = Draft{ID: d.ID, StoreID: d.StoreID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

// Settle removes the submitted quantities and then resets the draft. Units
// added after the snapshot was taken survive as lines of the next invoice.
// It returns the number of lines left over.
func (d *Draft) Settle(submitted []Line) int {
	sent := make(map[string]int, len(submitted))
	for _, l := range submitted {
		sent[l.ItemID] += l.Quantity
	}
	var rest []Line
	for _, l := range d.Lines {
		l.Quantity -= sent[l.ItemID]
		if l.Quantity < 1 {
			continue
		}
		l.reprice()
		rest = append(rest, l)
	}
	d.Reset()
	d.Lines = rest
	return len(rest)
}

// Clone returns a deep copy.
func (d Draft) Clone() Draft {
	out := d
	out.Lines = append([]Line(nil), d.Lines...)
	out.Candidates = append([]Product(nil), d.Candidates...)
	return out
}
