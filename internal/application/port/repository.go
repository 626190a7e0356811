// Package port defines the persistence contracts the application layer
// depends on. The matching algorithm itself never touches storage; these
// interfaces keep the engine independent of the storage engine.
package port

import (
	"context"
	"errors"
	"time"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

// ErrNotFound is returned when a requested document or pair does not
// exist. Callers get no partial result alongside it.
var ErrNotFound = errors.New("not found")

// InvoiceRepository stores extracted invoices.
type InvoiceRepository interface {
	// Create persists a new invoice and assigns its ID.
	Create(ctx context.Context, inv *entity.Invoice) error

	// GetByID returns the invoice or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*entity.Invoice, error)

	// ListByDateWindow returns invoices whose invoice date falls in
	// [from, to], ordered by invoice date then ID.
	ListByDateWindow(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error)
}

// DeliveryNoteRepository stores extracted delivery notes.
type DeliveryNoteRepository interface {
	// Create persists a new delivery note and assigns its ID.
	Create(ctx context.Context, dn *entity.DeliveryNote) error

	// GetByID returns the delivery note or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*entity.DeliveryNote, error)

	// ListByDateWindow returns delivery notes whose delivery date falls
	// in [from, to], ordered by delivery date then ID. Supplier filtering
	// happens in the candidate finder, after name canonicalization.
	ListByDateWindow(ctx context.Context, from, to time.Time) ([]*entity.DeliveryNote, error)
}

// MatchingRepository persists reconciliation results. Writes for one
// invoice are atomic: the previous pair is fully cleared and the new one
// inserted in a single transaction, or nothing changes.
type MatchingRepository interface {
	// ReplacePairForInvoice clears any existing pair for the invoice and
	// writes the new pair with its line diffs, atomically.
	ReplacePairForInvoice(ctx context.Context, pair *entity.MatchingPair) error

	// ClearPairForInvoice removes the persisted pair for the invoice, if
	// any.
	ClearPairForInvoice(ctx context.Context, invoiceID int64) error

	// GetPairByInvoiceID returns the current pair for the invoice with
	// its line diffs, or ErrNotFound.
	GetPairByInvoiceID(ctx context.Context, invoiceID int64) (*entity.MatchingPair, error)

	// Summary groups pairs by status and returns one page. state filters
	// to a single status; "all" (or empty) returns every status.
	Summary(ctx context.Context, state string, limit, offset int) (*entity.MatchingSummary, error)
}
