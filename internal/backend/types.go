package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ID is a backend identifier that may be sent as a JSON string or number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// CatalogItem is a sellable item as returned by the inventory lookup.
// Money fields are per unit.
type CatalogItem struct {
	ID             ID              `json:"id" validate:"required"`
	ItemName       string          `json:"itemName"`
	SKUCode        string          `json:"skuCode"`
	Barcode        string          `json:"barcode"`
	BasePrice      decimal.Decimal `json:"basePrice"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalPrice     decimal.Decimal `json:"finalPrice"`
	Warranty       bool            `json:"warranty"`
	WarrantyPeriod string          `json:"warrantyPeriod,omitempty"`
	Returnable     bool            `json:"returnable"`
}

// ItemQuery selects catalog items of a store by exactly one of name, barcode or SKU.
type ItemQuery struct {
	StoreID  string `json:"storeId" validate:"required"`
	ItemName string `json:"itemName,omitempty"`
	Barcode  string `json:"barcode,omitempty"`
	SKUCode  string `json:"skuCode,omitempty"`
}

// InvoiceLine is one submitted line. Amounts are rounded to 2 decimals.
type InvoiceLine struct {
	ItemID         string  `json:"itemId"`
	ItemName       string  `json:"itemName"`
	SKUCode        string  `json:"skuCode"`
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

// InvoiceRequest is the createInvoice payload carried under "data".
type InvoiceRequest struct {
	InvoiceItems           []InvoiceLine `json:"invoiceItems"`
	StoreID                string        `json:"storeId"`
	CustomerName           string        `json:"customerName"`
	CustomerContactNo      string        `json:"customerContactNo"`
	DiscountOverTotalPrice float64       `json:"discountOverTotalPrice"`
	TaxOverTotalPrice      float64       `json:"taxOverTotalPrice"`
	CouponCode             string        `json:"couponCode"`
	DeliveryStatus         string        `json:"deliveryStatus"`
	PaymentStatus          string        `json:"paymentStatus"`
	GrandTotal             float64       `json:"grandTotal"`
}

// Invoice is the canonical invoice header stored by the backend.
type Invoice struct {
	ID                     ID              `json:"id" validate:"required"`
	SerialNo               string          `json:"serialNo"`
	StoreID                ID              `json:"storeId"`
	CustomerName           string          `json:"customerName"`
	CustomerContactNo      string          `json:"customerContactNo"`
	CouponCode             string          `json:"couponCode"`
	DeliveryStatus         string          `json:"deliveryStatus"`
	PaymentStatus          string          `json:"paymentStatus"`
	GrossAmount            decimal.Decimal `json:"grossAmount"`
	NetAmount              decimal.Decimal `json:"netAmount"`
	TaxAmount              decimal.Decimal `json:"taxAmount"`
	DiscountAmount         decimal.Decimal `json:"discountAmount"`
	DiscountOverTotalPrice decimal.Decimal `json:"discountOverTotalPrice"`
	TaxOverTotalPrice      decimal.Decimal `json:"taxOverTotalPrice"`
	GrandTotal             decimal.Decimal `json:"grandTotal"`
	CreatedAt              string          `json:"createdAt,omitempty"`
}

// InvoiceItem is a stored invoice line with its own id.
type InvoiceItem struct {
	ID             ID              `json:"id"`
	InvoiceID      ID              `json:"invoiceId"`
	ItemID         ID              `json:"itemId"`
	ItemName       string          `json:"itemName"`
	SKUCode        string          `json:"skuCode"`
	Quantity       int             `json:"quantity" validate:"gte=0"`
	BasePrice      decimal.Decimal `json:"basePrice"`
	TotalBasePrice decimal.Decimal `json:"totalBasePrice"`
	TotalTax       decimal.Decimal `json:"totalTax"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	FinalPrice     decimal.Decimal `json:"finalPrice"`
}

// InvoiceRecord is the {invoice, invoiceItems} pair returned on create and fetch.
type InvoiceRecord struct {
	Invoice Invoice       `json:"invoice" validate:"required"`
	Items   []InvoiceItem `json:"invoiceItems" validate:"dive"`
}
