package invoice

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/pricing"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// Footer is the invoice summary recomputed from the line items.
type Footer struct {
	TotalQuantity  int64   `json:"totalQuantity"`
	TotalBasePrice float64 `json:"totalBasePrice"`
	TotalTax       float64 `json:"totalTax"`
	TotalDiscount  float64 `json:"totalDiscount"`
	GrandTotal     float64 `json:"grandTotal"`
}

// Display is a stored invoice prepared for read-only rendering.
type Display struct {
	Invoice          backend.Invoice       `json:"invoice"`
	Items            []backend.InvoiceItem `json:"invoiceItems"`
	Footer           Footer                `json:"footer"`
	StoredGrandTotal float64               `json:"storedGrandTotal"`
	Mismatch         bool                  `json:"mismatch"`
	summary          pricing.Summary
}

// NewDisplay recomputes the footer from rec's items. The stored grand total is
// reported alongside and flagged when it disagrees.
func NewDisplay(rec backend.InvoiceRecord) Display {
	amounts := make([]pricing.Amount, len(rec.Items))
	for i, it := range rec.Items {
		amounts[i] = pricing.Amount{
			Quantity: it.Quantity,
			Totals: pricing.Totals{
				TotalBasePrice: it.TotalBasePrice,
				TotalTax:       it.TotalTax,
				TotalDiscount:  it.TotalDiscount,
				FinalPrice:     it.FinalPrice,
			},
		}
	}
	summary := pricing.Summarize(amounts)
	items := rec.Items
	if items == nil {
		items = []backend.InvoiceItem{}
	}
	return Display{
		Invoice: rec.Invoice,
		Items:   items,
		Footer: Footer{
			TotalQuantity:  summary.Quantity,
			TotalBasePrice: pricing.Float(summary.TotalBasePrice),
			TotalTax:       pricing.Float(summary.TotalTax),
			TotalDiscount:  pricing.Float(summary.TotalDiscount),
			GrandTotal:     pricing.Float(summary.FinalPrice),
		},
		StoredGrandTotal: pricing.Float(rec.Invoice.GrandTotal),
		Mismatch:         !pricing.Round2(summary.FinalPrice).Equal(pricing.Round2(rec.Invoice.GrandTotal)),
		summary:          summary,
	}
}

// View fetches an invoice and builds its display.
func (s *Service) View(ctx context.Context, sess session.Session, invoiceID string) (Display, error) {
	rec, err := s.Backend.GetInvoice(ctx, sess.Token, invoiceID)
	if err != nil {
		return Display{}, err
	}
	d := NewDisplay(rec)
	if d.Mismatch {
		zerolog.Ctx(ctx).Warn().
			Str("invoice_id", rec.Invoice.ID.String()).
			Float64("stored_grand_total", d.StoredGrandTotal).
			Float64("computed_grand_total", d.Footer.GrandTotal).
			Msg("invoice_total_mismatch")
	}
	return d, nil
}
