package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/owlinhq/invoice-reconciler/internal/application/port"
	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

// InvoiceRepository implements port.InvoiceRepository on SQLite.
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new invoice and assigns its ID
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("marshal invoice lines: %w", err)
	}

	query := `
		INSERT INTO invoices (supplier_name, invoice_date, total_amount, lines_json)
		VALUES (?, ?, ?, ?)
	`
	result, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		inv.SupplierName,
		inv.InvoiceDate,
		inv.TotalAmount.String(),
		string(lines),
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	inv.ID = id
	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	query := `
		SELECT id, supplier_name, invoice_date, total_amount, lines_json, created_at
		FROM invoices
		WHERE id = ?
	`
	inv, err := scanInvoice(executorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// ListByDateWindow returns invoices dated within [from, to], ordered by
// invoice date then ID
func (r *InvoiceRepository) ListByDateWindow(ctx context.Context, from, to time.Time) ([]*entity.Invoice, error) {
	query := `
		SELECT id, supplier_name, invoice_date, total_amount, lines_json, created_at
		FROM invoices
		WHERE invoice_date >= ? AND invoice_date <= ?
		ORDER BY invoice_date, id
	`
	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, from, to)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv       entity.Invoice
		total     string
		linesJSON string
	)
	if err := row.Scan(&inv.ID, &inv.SupplierName, &inv.InvoiceDate, &total, &linesJSON, &inv.CreatedAt); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}
	inv.TotalAmount = amount

	if err := json.Unmarshal([]byte(linesJSON), &inv.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal invoice lines: %w", err)
	}
	return &inv, nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
