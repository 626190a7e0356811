package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a single extracted product line on an invoice or delivery
// note. Line items arrive from the upstream extraction pipeline and are
// read-only to the matching engine; a line is identified by its position
// within the owning document.
type LineItem struct {
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Invoice represents a supplier invoice with its extracted line items.
type Invoice struct {
	ID           int64           `json:"id"`
	SupplierName string          `json:"supplier_name"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Lines        []LineItem      `json:"lines"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DeliveryNote represents a supplier delivery note with its extracted
// line items.
type DeliveryNote struct {
	ID           int64           `json:"id"`
	SupplierName string          `json:"supplier_name"`
	DeliveryDate time.Time       `json:"delivery_date"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Lines        []LineItem      `json:"lines"`
	CreatedAt    time.Time       `json:"created_at"`
}
