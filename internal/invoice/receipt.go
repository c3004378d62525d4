package invoice

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/noah-isme/pos-billing-gateway/internal/pricing"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

const (
	receiptWidth  = 80.0
	receiptMargin = 4.0
	lineHeight    = 5.0
	qrSize        = 32.0
)

// Receipt fetches an invoice and renders it as a PDF receipt.
func (s *Service) Receipt(ctx context.Context, sess session.Session, invoiceID, storeName string) ([]byte, string, error) {
	d, err := s.View(ctx, sess, invoiceID)
	if err != nil {
		return nil, "", err
	}
	pdf, err := RenderReceipt(d, storeName)
	if err != nil {
		return nil, "", err
	}
	return pdf, "receipt-" + receiptCode(d) + ".pdf", nil
}

// RenderReceipt lays d out on an 80mm roll with a QR code of the invoice serial.
func RenderReceipt(d Display, storeName string) ([]byte, error) {
	code := receiptCode(d)
	qrPNG, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("receipt qr: %w", err)
	}

	height := 85 + float64(len(d.Items))*2*lineHeight + qrSize
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: receiptWidth, Ht: height},
	})
	pdf.SetMargins(receiptMargin, receiptMargin, receiptMargin)
	pdf.SetAutoPageBreak(false, receiptMargin)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	inner := receiptWidth - 2*receiptMargin

	pdf.SetFont("Arial", "B", 11)
	if strings.TrimSpace(storeName) != "" {
		pdf.CellFormat(inner, lineHeight+1, tr(storeName), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(inner, lineHeight, tr("Invoice "+code), "", 1, "C", false, 0, "")
	if d.Invoice.CreatedAt != "" {
		pdf.CellFormat(inner, lineHeight, tr(d.Invoice.CreatedAt), "", 1, "C", false, 0, "")
	}
	if d.Invoice.CustomerName != "" || d.Invoice.CustomerContactNo != "" {
		pdf.CellFormat(inner, lineHeight, tr(strings.TrimSpace(d.Invoice.CustomerName+" "+d.Invoice.CustomerContactNo)), "", 1, "L", false, 0, "")
	}
	rule(pdf, inner)

	for _, it := range d.Items {
		pdf.CellFormat(inner, lineHeight, tr(it.ItemName), "", 1, "L", false, 0, "")
		pdf.CellFormat(inner*0.6, lineHeight, fmt.Sprintf("  %d x %s", it.Quantity, it.BasePrice.StringFixed(2)), "", 0, "L", false, 0, "")
		pdf.CellFormat(inner*0.4, lineHeight, it.FinalPrice.StringFixed(2), "", 1, "R", false, 0, "")
	}
	rule(pdf, inner)

	pdf.CellFormat(inner*0.6, lineHeight, "Items", "", 0, "L", false, 0, "")
	pdf.CellFormat(inner*0.4, lineHeight, fmt.Sprint(d.summary.Quantity), "", 1, "R", false, 0, "")
	for _, t := range receiptTotals(d) {
		if t.Bold {
			pdf.SetFont("Arial", "B", 9)
		}
		pdf.CellFormat(inner*0.6, lineHeight, t.Label, "", 0, "L", false, 0, "")
		pdf.CellFormat(inner*0.4, lineHeight, t.Value.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "", 8)
	if d.Invoice.PaymentStatus != "" {
		pdf.CellFormat(inner, lineHeight, tr("Payment: "+d.Invoice.PaymentStatus), "", 1, "L", false, 0, "")
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", (receiptWidth-qrSize)/2, pdf.GetY()+2, qrSize, qrSize, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type receiptTotal struct {
	Label string
	Value decimal.Decimal
	Bold  bool
}

// receiptTotals lists the footer rows. When the invoice carries a discount or
// tax on the total, the line sum is shown as "Items total" and the payable
// amount follows as "Amount due".
func receiptTotals(d Display) []receiptTotal {
	out := []receiptTotal{
		{Label: "Base", Value: d.summary.TotalBasePrice},
		{Label: "Tax", Value: d.summary.TotalTax},
		{Label: "Discount", Value: d.summary.TotalDiscount},
	}
	discount, tax := d.Invoice.DiscountOverTotalPrice, d.Invoice.TaxOverTotalPrice
	if discount.IsZero() && tax.IsZero() {
		return append(out, receiptTotal{Label: "Grand total", Value: d.summary.FinalPrice, Bold: true})
	}
	out = append(out, receiptTotal{Label: "Items total", Value: d.summary.FinalPrice})
	if !discount.IsZero() {
		out = append(out, receiptTotal{Label: "Discount on total", Value: discount})
	}
	if !tax.IsZero() {
		out = append(out, receiptTotal{Label: "Tax on total", Value: tax})
	}
	return append(out, receiptTotal{Label: "Amount due", Value: pricing.Payable(d.summary.FinalPrice, discount, tax), Bold: true})
}

func rule(pdf *gofpdf.Fpdf, width float64) {
	y := pdf.GetY() + 1
	pdf.Line(receiptMargin, y, receiptMargin+width, y)
	pdf.SetY(y + 1)
}

func receiptCode(d Display) string {
	if d.Invoice.SerialNo != "" {
		return d.Invoice.SerialNo
	}
	return d.Invoice.ID.String()
}
