package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	// CreateInvoicePath accepts {data: InvoiceRequest}.
	CreateInvoicePath = "/billing/createInvoice"
	// GetInvoicePath is followed by the invoice id.
	GetInvoicePath = "/billing/getInvoiceById/"
)

// CreateInvoice submits req and returns the canonical stored invoice.
func (c *Client) CreateInvoice(ctx context.Context, token string, req InvoiceRequest) (InvoiceRecord, error) {
	var rec InvoiceRecord
	if err := c.call(ctx, http.MethodPost, CreateInvoicePath, token, map[string]any{"data": req}, &rec); err != nil {
		return InvoiceRecord{}, err
	}
	if err := c.checkRecord(rec); err != nil {
		return InvoiceRecord{}, err
	}
	return rec, nil
}

// GetInvoice fetches an invoice with its items.
func (c *Client) GetInvoice(ctx context.Context, token, id string) (InvoiceRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return InvoiceRecord{}, errors.New("invoice id required")
	}
	var rec InvoiceRecord
	if err := c.call(ctx, http.MethodGet, GetInvoicePath+url.PathEscape(id), token, nil, &rec); err != nil {
		return InvoiceRecord{}, err
	}
	if err := c.checkRecord(rec); err != nil {
		return InvoiceRecord{}, err
	}
	return rec, nil
}

func (c *Client) checkRecord(rec InvoiceRecord) error {
	if err := c.validate.Struct(rec); err != nil {
		return &Error{Kind: ErrMalformed, Status: http.StatusOK, Err: fmt.Errorf("invoice record: %w", err)}
	}
	return nil
}
