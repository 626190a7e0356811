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

// DeliveryNoteRepository implements port.DeliveryNoteRepository on SQLite.
type DeliveryNoteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeliveryNoteRepository creates a new delivery note repository
func NewDeliveryNoteRepository(db *sql.DB, logger *zap.Logger) *DeliveryNoteRepository {
	return &DeliveryNoteRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new delivery note and assigns its ID
func (r *DeliveryNoteRepository) Create(ctx context.Context, dn *entity.DeliveryNote) error {
	lines, err := json.Marshal(dn.Lines)
	if err != nil {
		return fmt.Errorf("marshal delivery note lines: %w", err)
	}

	query := `
		INSERT INTO delivery_notes (supplier_name, delivery_date, total_amount, lines_json)
		VALUES (?, ?, ?, ?)
	`
	result, err := executorFor(ctx, r.db).ExecContext(ctx, query,
		dn.SupplierName,
		dn.DeliveryDate,
		dn.TotalAmount.String(),
		string(lines),
	)
	if err != nil {
		r.logger.Error("Failed to create delivery note", zap.Error(err))
		return fmt.Errorf("create delivery note: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	dn.ID = id
	return nil
}

// GetByID retrieves a delivery note by ID
func (r *DeliveryNoteRepository) GetByID(ctx context.Context, id int64) (*entity.DeliveryNote, error) {
	query := `
		SELECT id, supplier_name, delivery_date, total_amount, lines_json, created_at
		FROM delivery_notes
		WHERE id = ?
	`
	dn, err := scanDeliveryNote(executorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get delivery note", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("get delivery note: %w", err)
	}
	return dn, nil
}

// ListByDateWindow returns delivery notes dated within [from, to],
// ordered by delivery date then ID
func (r *DeliveryNoteRepository) ListByDateWindow(ctx context.Context, from, to time.Time) ([]*entity.DeliveryNote, error) {
	query := `
		SELECT id, supplier_name, delivery_date, total_amount, lines_json, created_at
		FROM delivery_notes
		WHERE delivery_date >= ? AND delivery_date <= ?
		ORDER BY delivery_date, id
	`
	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, from, to)
	if err != nil {
		r.logger.Error("Failed to list delivery notes", zap.Error(err))
		return nil, fmt.Errorf("list delivery notes: %w", err)
	}
	defer rows.Close()

	var notes []*entity.DeliveryNote
	for rows.Next() {
		dn, err := scanDeliveryNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery note: %w", err)
		}
		notes = append(notes, dn)
	}
	return notes, rows.Err()
}

func scanDeliveryNote(row rowScanner) (*entity.DeliveryNote, error) {
	var (
		dn        entity.DeliveryNote
		total     string
		linesJSON string
	)
	if err := row.Scan(&dn.ID, &dn.SupplierName, &dn.DeliveryDate, &total, &linesJSON, &dn.CreatedAt); err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}
	dn.TotalAmount = amount

	if err := json.Unmarshal([]byte(linesJSON), &dn.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal delivery note lines: %w", err)
	}
	return &dn, nil
}

// Verify interface compliance
var _ port.DeliveryNoteRepository = (*DeliveryNoteRepository)(nil)
