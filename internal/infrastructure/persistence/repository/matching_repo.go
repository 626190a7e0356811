package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/owlinhq/invoice-reconciler/internal/application/port"
	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

// MatchingRepository implements port.MatchingRepository on SQLite.
type MatchingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMatchingRepository creates a new matching repository
func NewMatchingRepository(db *sql.DB, logger *zap.Logger) *MatchingRepository {
	return &MatchingRepository{
		db:     db,
		logger: logger,
	}
}

// ReplacePairForInvoice clears the previous pair for the invoice and
// inserts the new one with its line diffs, in a single transaction.
func (r *MatchingRepository) ReplacePairForInvoice(ctx context.Context, pair *entity.MatchingPair) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txCtx := WithTx(ctx, tx)

	if err := r.clearPair(txCtx, pair.InvoiceID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := r.insertPair(txCtx, pair); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit matching pair", zap.Int64("invoice_id", pair.InvoiceID), zap.Error(err))
		return fmt.Errorf("commit pair: %w", err)
	}
	return nil
}

// ClearPairForInvoice removes the persisted pair for the invoice, if any.
func (r *MatchingRepository) ClearPairForInvoice(ctx context.Context, invoiceID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := r.clearPair(WithTx(ctx, tx), invoiceID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	return nil
}

func (r *MatchingRepository) clearPair(ctx context.Context, invoiceID int64) error {
	ex := executorFor(ctx, r.db)
	if _, err := ex.ExecContext(ctx,
		"DELETE FROM matching_line_diffs WHERE pair_id IN (SELECT id FROM matching_pairs WHERE invoice_id = ?)",
		invoiceID,
	); err != nil {
		return fmt.Errorf("delete line diffs: %w", err)
	}
	if _, err := ex.ExecContext(ctx, "DELETE FROM matching_pairs WHERE invoice_id = ?", invoiceID); err != nil {
		return fmt.Errorf("delete pair: %w", err)
	}
	return nil
}

func (r *MatchingRepository) insertPair(ctx context.Context, pair *entity.MatchingPair) error {
	ex := executorFor(ctx, r.db)

	reasons, err := json.Marshal(pair.Reasons)
	if err != nil {
		return fmt.Errorf("marshal pair reasons: %w", err)
	}

	if _, err := ex.ExecContext(ctx, `
		INSERT INTO matching_pairs (id, invoice_id, delivery_note_id, status, confidence, reasons_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		pair.ID,
		pair.InvoiceID,
		pair.DeliveryNoteID,
		string(pair.Status),
		pair.Confidence,
		string(reasons),
	); err != nil {
		return fmt.Errorf("insert pair: %w", err)
	}

	for _, d := range pair.LineDiffs {
		diffReasons, err := json.Marshal(d.Reasons)
		if err != nil {
			return fmt.Errorf("marshal diff reasons: %w", err)
		}
		if _, err := ex.ExecContext(ctx, `
			INSERT INTO matching_line_diffs (
				id, pair_id, invoice_line_id, delivery_line_id, status, confidence,
				qty_invoice, qty_dn, qty_unit, price_invoice, price_dn, reasons_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID,
			pair.ID,
			nullInt(d.InvoiceLineID),
			nullInt(d.DeliveryLineID),
			string(d.Status),
			d.Confidence,
			nullDecimal(d.QtyInvoice),
			nullDecimal(d.QtyDN),
			d.QtyUnit,
			nullDecimal(d.PriceInvoice),
			nullDecimal(d.PriceDN),
			string(diffReasons),
		); err != nil {
			return fmt.Errorf("insert line diff: %w", err)
		}
	}
	return nil
}

// GetPairByInvoiceID retrieves the current pair with its line diffs
func (r *MatchingRepository) GetPairByInvoiceID(ctx context.Context, invoiceID int64) (*entity.MatchingPair, error) {
	query := `
		SELECT id, invoice_id, delivery_note_id, status, confidence, reasons_json
		FROM matching_pairs
		WHERE invoice_id = ?
	`
	pair, err := scanPair(executorFor(ctx, r.db).QueryRowContext(ctx, query, invoiceID))
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get matching pair", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("get pair: %w", err)
	}

	diffs, err := r.loadDiffs(ctx, pair.ID)
	if err != nil {
		return nil, err
	}
	pair.LineDiffs = diffs
	return pair, nil
}

// Summary returns pair counts grouped by status plus one page of pairs.
// state filters to a single status; "all" or empty returns every status.
// Pairs on the page carry their line diffs.
func (r *MatchingRepository) Summary(ctx context.Context, state string, limit, offset int) (*entity.MatchingSummary, error) {
	ex := executorFor(ctx, r.db)

	totals := make(map[string]int)
	rows, err := ex.QueryContext(ctx, "SELECT status, COUNT(*) FROM matching_pairs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count pairs: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals[status] = count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, invoice_id, delivery_note_id, status, confidence, reasons_json
		FROM matching_pairs
	`
	args := []interface{}{}
	if state != "" && state != "all" {
		query += " WHERE status = ?"
		args = append(args, state)
	}
	query += " ORDER BY invoice_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err = ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	pairs := []*entity.MatchingPair{}
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, pair := range pairs {
		diffs, err := r.loadDiffs(ctx, pair.ID)
		if err != nil {
			return nil, err
		}
		pair.LineDiffs = diffs
	}

	return &entity.MatchingSummary{Totals: totals, Pairs: pairs}, nil
}

func (r *MatchingRepository) loadDiffs(ctx context.Context, pairID string) ([]entity.LineDiff, error) {
	query := `
		SELECT id, invoice_line_id, delivery_line_id, status, confidence,
			qty_invoice, qty_dn, qty_unit, price_invoice, price_dn, reasons_json
		FROM matching_line_diffs
		WHERE pair_id = ?
		ORDER BY rowid
	`
	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, pairID)
	if err != nil {
		return nil, fmt.Errorf("list line diffs: %w", err)
	}
	defer rows.Close()

	var diffs []entity.LineDiff
	for rows.Next() {
		var (
			d              entity.LineDiff
			invLine        sql.NullInt64
			dnLine         sql.NullInt64
			qtyInv, qtyDN  sql.NullString
			prInv, prDN    sql.NullString
			reasonsJSON    string
		)
		if err := rows.Scan(&d.ID, &invLine, &dnLine, &d.Status, &d.Confidence,
			&qtyInv, &qtyDN, &d.QtyUnit, &prInv, &prDN, &reasonsJSON); err != nil {
			return nil, fmt.Errorf("scan line diff: %w", err)
		}

		d.InvoiceLineID = scanNullInt(invLine)
		d.DeliveryLineID = scanNullInt(dnLine)
		if d.QtyInvoice, err = scanNullDecimal(qtyInv); err != nil {
			return nil, fmt.Errorf("parse qty_invoice: %w", err)
		}
		if d.QtyDN, err = scanNullDecimal(qtyDN); err != nil {
			return nil, fmt.Errorf("parse qty_dn: %w", err)
		}
		if d.PriceInvoice, err = scanNullDecimal(prInv); err != nil {
			return nil, fmt.Errorf("parse price_invoice: %w", err)
		}
		if d.PriceDN, err = scanNullDecimal(prDN); err != nil {
			return nil, fmt.Errorf("parse price_dn: %w", err)
		}
		if err := json.Unmarshal([]byte(reasonsJSON), &d.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal diff reasons: %w", err)
		}
		diffs = append(diffs, d)
	}
	return diffs, rows.Err()
}

func scanPair(row rowScanner) (*entity.MatchingPair, error) {
	var (
		pair        entity.MatchingPair
		reasonsJSON string
	)
	if err := row.Scan(&pair.ID, &pair.InvoiceID, &pair.DeliveryNoteID, &pair.Status, &pair.Confidence, &reasonsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reasonsJSON), &pair.Reasons); err != nil {
		return nil, fmt.Errorf("unmarshal pair reasons: %w", err)
	}
	return &pair, nil
}

// Verify interface compliance
var _ port.MatchingRepository = (*MatchingRepository)(nil)
