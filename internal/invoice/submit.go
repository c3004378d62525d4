// Package invoice submits drafts as invoices and renders stored invoices.
package invoice

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-billing-gateway/internal/backend"
	"github.com/noah-isme/pos-billing-gateway/internal/cart"
	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/obs"
	"github.com/noah-isme/pos-billing-gateway/internal/pricing"
	"github.com/noah-isme/pos-billing-gateway/internal/session"
)

// Error codes for submissions rejected before reaching the backend.
const (
	CodeEmptyCart     = "EMPTY_CART"
	CodeInvalidAmount = "INVALID_AMOUNT"
)

// Default invoice statuses applied when the operator left them blank.
const (
	DefaultDeliveryStatus = "Not Delivered"
	DefaultPaymentStatus  = "Pending"
)

// Backend is the part of the backend client used by this package.
type Backend interface {
	CreateInvoice(ctx context.Context, token string, req backend.InvoiceRequest) (backend.InvoiceRecord, error)
	GetInvoice(ctx context.Context, token, id string) (backend.InvoiceRecord, error)
}

// Service submits and reads invoices.
type Service struct {
	Backend         Backend
	Drafts          *cart.Service
	DeliveryDefault string
	PaymentDefault  string
	validate        *validator.Validate
}

// NewService wires a Service with the default statuses.
func NewService(b Backend, drafts *cart.Service) *Service {
	return &Service{
		Backend:         b,
		Drafts:          drafts,
		DeliveryDefault: DefaultDeliveryStatus,
		PaymentDefault:  DefaultPaymentStatus,
		validate:        validator.New(),
	}
}

type customerFields struct {
	CustomerContactNo string `validate:"omitempty,len=10,number"`
}

// BuildRequest validates d and serializes it into the createInvoice payload.
func (s *Service) BuildRequest(d cart.Draft) (backend.InvoiceRequest, error) {
	if len(d.Lines) == 0 {
		return backend.InvoiceRequest{}, common.NewAppError(CodeEmptyCart, "add at least one item before submitting", http.StatusUnprocessableEntity, nil)
	}
	discount, err := pricing.ParseAmount(d.DiscountOverTotal)
	if err != nil {
		return backend.InvoiceRequest{}, common.NewAppError(CodeInvalidAmount, "discount over total must be a non-negative number", http.StatusUnprocessableEntity, err).
			WithDetails(map[string]string{"discountOverTotal": d.DiscountOverTotal})
	}
	tax, err := pricing.ParseAmount(d.TaxOverTotal)
	if err != nil {
		return backend.InvoiceRequest{}, common.NewAppError(CodeInvalidAmount, "tax over total must be a non-negative number", http.StatusUnprocessableEntity, err).
			WithDetails(map[string]string{"taxOverTotal": d.TaxOverTotal})
	}
	v := s.validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(customerFields{CustomerContactNo: d.CustomerContactNo}); err != nil {
		return backend.InvoiceRequest{}, common.NewAppError(common.CodeValidation, "validation failed", http.StatusUnprocessableEntity, err).
			WithDetails(map[string]string{"customerContactNo": "must be exactly 10 digits"})
	}

	req := backend.InvoiceRequest{
		InvoiceItems:           make([]backend.InvoiceLine, 0, len(d.Lines)),
		StoreID:                d.StoreID,
		CustomerName:           d.CustomerName,
		CustomerContactNo:      d.CustomerContactNo,
		DiscountOverTotalPrice: pricing.Float(discount),
		TaxOverTotalPrice:      pricing.Float(tax),
		CouponCode:             d.CouponCode,
		DeliveryStatus:         orDefault(d.DeliveryStatus, s.DeliveryDefault, DefaultDeliveryStatus),
		PaymentStatus:          orDefault(d.PaymentStatus, s.PaymentDefault, DefaultPaymentStatus),
		GrandTotal:             pricing.Float(d.GrandTotal()),
	}
	for _, l := range d.Lines {
		unit := l.Unit.Rounded()
		totals := l.Totals.Rounded()
		req.InvoiceItems = append(req.InvoiceItems, backend.InvoiceLine{
			ItemID:         l.ItemID,
			ItemName:       l.Name,
			SKUCode:        l.SKU,
			Quantity:       l.Quantity,
			BasePrice:      unit.BasePrice.InexactFloat64(),
			TaxAmount:      unit.Tax.InexactFloat64(),
			DiscountAmount: unit.Discount.InexactFloat64(),
			UnitFinalPrice: unit.FinalPrice.InexactFloat64(),
			TotalBasePrice: totals.TotalBasePrice.InexactFloat64(),
			TotalTax:       totals.TotalTax.InexactFloat64(),
			TotalDiscount:  totals.TotalDiscount.InexactFloat64(),
			FinalPrice:     totals.FinalPrice.InexactFloat64(),
		})
	}
	return req, nil
}

// Submit sends the draft to the backend. On success the submitted quantities
// are taken off the draft and the canonical invoice returned; on any failure
// the draft is left untouched.
func (s *Service) Submit(ctx context.Context, sess session.Session, draftID string) (backend.InvoiceRecord, error) {
	d, err := s.Drafts.Get(ctx, sess.StoreID, draftID)
	if err != nil {
		return backend.InvoiceRecord{}, err
	}
	req, err := s.BuildRequest(d)
	if err != nil {
		obs.CountSubmit("invalid")
		return backend.InvoiceRecord{}, err
	}
	rec, err := s.Backend.CreateInvoice(ctx, sess.Token, req)
	if err != nil {
		result := "error"
		switch {
		case backend.IsUnavailable(err):
			result = "unavailable"
		case errors.Is(err, backend.ErrRejected), errors.Is(err, backend.ErrUnauthorized):
			result = "rejected"
		}
		obs.CountSubmit(result)
		zerolog.Ctx(ctx).Warn().Err(err).Str("draft_id", draftID).Msg("invoice_submit_failed")
		return backend.InvoiceRecord{}, err
	}
	obs.CountSubmit("ok")

	var leftover int
	if _, err := s.Drafts.Mutate(ctx, sess.StoreID, draftID, "reset", func(cur *cart.Draft) error {
		leftover = cur.Settle(d.Lines)
		return nil
	}); err != nil {
		// the invoice is already stored, so the submission still succeeds
		zerolog.Ctx(ctx).Error().Err(err).Str("draft_id", draftID).Str("invoice_id", rec.Invoice.ID.String()).Msg("draft_reset_failed")
	}
	if leftover > 0 {
		zerolog.Ctx(ctx).Warn().Str("draft_id", draftID).Int("lines", leftover).Msg("draft_changed_during_submit")
	}
	zerolog.Ctx(ctx).Info().Str("invoice_id", rec.Invoice.ID.String()).Str("serial_no", rec.Invoice.SerialNo).Int("lines", len(req.InvoiceItems)).Msg("invoice_submitted")
	return rec, nil
}

func orDefault(v string, defaults ...string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	for _, d := range defaults {
		if d = strings.TrimSpace(d); d != "" {
			return d
		}
	}
	return ""
}
