package cart

import (
	"time"

	"github.com/noah-isme/pos-billing-gateway/internal/pricing"
)

// LineView is a cart line as rendered to the billing screen.
type LineView struct {
	ItemID         string  `json:"itemId"`
	Name           string  `json:"itemName"`
	SKU            string  `json:"skuCode"`
	Quantity       int     `json:"quantity"`
	BasePrice      float64 `json:"basePrice"`
	TaxAmount      float64 `json:"taxAmount"`
	DiscountAmount float64 `json:"discountAmount"`
	UnitFinalPrice float64 `json:"unitFinalPrice"`
	TotalBasePrice float64 `json:"totalBasePrice"`
	TotalTax       float64 `json:"totalTax"`
	TotalDiscount  float64 `json:"totalDiscount"`
	FinalPrice     float64 `json:"finalPrice"`
}

// CandidateView is a name-search result awaiting selection.
type CandidateView struct {
	ID         string  `json:"id"`
	Name       string  `json:"itemName"`
	SKU        string  `json:"skuCode"`
	FinalPrice float64 `json:"finalPrice"`
}

// View is the JSON representation of a draft.
type View struct {
	ID                string          `json:"id"`
	Lines             []LineView      `json:"lines"`
	CustomerName      string          `json:"customerName"`
	CustomerContactNo string          `json:"customerContactNo"`
	CouponCode        string          `json:"couponCode"`
	DiscountOverTotal string          `json:"discountOverTotal"`
	TaxOverTotal      string          `json:"taxOverTotal"`
	DeliveryStatus    string          `json:"deliveryStatus"`
	PaymentStatus     string          `json:"paymentStatus"`
	Inputs            Inputs          `json:"inputs"`
	Candidates        []CandidateView `json:"candidates"`
	TotalQuantity     int64           `json:"totalQuantity"`
	GrandTotal        float64         `json:"grandTotal"`
	PayableTotal      float64         `json:"payableTotal"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// NewView renders d. Totals are recomputed from the lines on every call.
func NewView(d Draft) View {
	v := View{
		ID:                d.ID,
		Lines:             make([]LineView, 0, len(d.Lines)),
		CustomerName:      d.CustomerName,
		CustomerContactNo: d.CustomerContactNo,
		CouponCode:        d.CouponCode,
		DiscountOverTotal: d.DiscountOverTotal,
		TaxOverTotal:      d.TaxOverTotal,
		DeliveryStatus:    d.DeliveryStatus,
		PaymentStatus:     d.PaymentStatus,
		Inputs:            d.Inputs,
		Candidates:        make([]CandidateView, 0, len(d.Candidates)),
		UpdatedAt:         d.UpdatedAt,
	}
	for _, l := range d.Lines {
		v.Lines = append(v.Lines, LineView{
			ItemID:         l.ItemID,
			Name:           l.Name,
			SKU:            l.SKU,
			Quantity:       l.Quantity,
			BasePrice:      pricing.Float(l.Unit.BasePrice),
			TaxAmount:      pricing.Float(l.Unit.Tax),
			DiscountAmount: pricing.Float(l.Unit.Discount),
			UnitFinalPrice: pricing.Float(l.Unit.FinalPrice),
			TotalBasePrice: pricing.Float(l.Totals.TotalBasePrice),
			TotalTax:       pricing.Float(l.Totals.TotalTax),
			TotalDiscount:  pricing.Float(l.Totals.TotalDiscount),
			FinalPrice:     pricing.Float(l.Totals.FinalPrice),
		})
	}
	for _, c := range d.Candidates {
		v.Candidates = append(v.Candidates, CandidateView{ID: c.ID, Name: c.Name, SKU: c.SKU, FinalPrice: pricing.Float(c.Unit.FinalPrice)})
	}

	summary := pricing.Summarize(d.Amounts())
	v.TotalQuantity = summary.Quantity
	v.GrandTotal = pricing.Float(summary.FinalPrice)
	// unparseable overrides are reported at submission; the preview ignores them
	discount, _ := pricing.ParseAmount(d.DiscountOverTotal)
	tax, _ := pricing.ParseAmount(d.TaxOverTotal)
	v.PayableTotal = pricing.Float(pricing.Payable(summary.FinalPrice, discount, tax))
	return v
}
