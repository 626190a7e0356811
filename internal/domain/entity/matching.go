package entity

import (
	"github.com/shopspring/decimal"
)

// LineStatus classifies the reconciliation outcome for a single line.
type LineStatus string

const (
	LineOK            LineStatus = "ok"
	LineQtyMismatch   LineStatus = "qty_mismatch"
	LinePriceMismatch LineStatus = "price_mismatch"
	LineMissingOnDN   LineStatus = "missing_on_dn"
	LineMissingOnInv  LineStatus = "missing_on_inv"
)

// PairStatus classifies the document-level reconciliation outcome.
type PairStatus string

const (
	PairMatched   PairStatus = "matched"
	PairPartial   PairStatus = "partial"
	PairUnmatched PairStatus = "unmatched"
)

// MatchReason is a single piece of scoring evidence. Reasons are
// append-only: once attached to a diff or pair they are never mutated,
// so an audit log can replay exactly why a decision was made.
type MatchReason struct {
	Code   string  `json:"code"`
	Detail string  `json:"detail"`
	Weight float64 `json:"weight"`
}

// LineDiff is the reconciliation result for one line pairing. Exactly one
// LineDiff exists per invoice line and per unmatched delivery line; a diff
// carries both line references only when the lines were paired.
//
// Line references are zero-based positions within the owning document.
type LineDiff struct {
	ID             string           `json:"id"`
	InvoiceLineID  *int             `json:"invoice_line_id"`
	DeliveryLineID *int             `json:"delivery_line_id"`
	Status         LineStatus       `json:"status"`
	Confidence     float64          `json:"confidence"`
	QtyInvoice     *decimal.Decimal `json:"qty_invoice"`
	QtyDN          *decimal.Decimal `json:"qty_dn"`
	QtyUnit        string           `json:"qty_unit"`
	PriceInvoice   *decimal.Decimal `json:"price_invoice"`
	PriceDN        *decimal.Decimal `json:"price_dn"`
	Reasons        []MatchReason    `json:"reasons"`
}

// MatchingPair is the reconciliation result for one invoice/delivery-note
// pairing. A rebuild run replaces (never merges) the previous pair for the
// same invoice. Confidence is always clamped to [0,100].
type MatchingPair struct {
	ID             string        `json:"id"`
	InvoiceID      int64         `json:"invoice_id"`
	DeliveryNoteID int64         `json:"delivery_note_id"`
	Status         PairStatus    `json:"status"`
	Confidence     float64       `json:"confidence"`
	Reasons        []MatchReason `json:"reasons"`
	LineDiffs      []LineDiff    `json:"line_diffs"`
}

// MatchingSummary is the externally observable persisted shape: pair
// counts grouped by status plus a page of pairs.
type MatchingSummary struct {
	Totals map[string]int  `json:"totals"`
	Pairs  []*MatchingPair `json:"pairs"`
}

// RebuildResult reports batch rebuild counts for observability.
type RebuildResult struct {
	PairsCreated      int `json:"pairs_created"`
	InvoicesProcessed int `json:"invoices_processed"`
	InvoicesFailed    int `json:"invoices_failed"`
	DateWindowDays    int `json:"date_window_days"`
}
