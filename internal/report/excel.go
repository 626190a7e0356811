// Package report renders reconciliation results into downloadable
// spreadsheets for the finance team.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

const (
	pairsSheet = "Pairs"
	diffsSheet = "Line Diffs"
)

// NewSummaryWorkbook builds a two-sheet workbook from a matching
// summary: one row per pair and one row per line diff. The caller owns
// the returned file and must Close it.
func NewSummaryWorkbook(summary *entity.MatchingSummary) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := buildPairsSheet(f, summary); err != nil {
		f.Close()
		return nil, err
	}
	if err := buildDiffsSheet(f, summary); err != nil {
		f.Close()
		return nil, err
	}

	// Drop the default sheet created by excelize.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(pairsSheet); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

func buildPairsSheet(f *excelize.File, summary *entity.MatchingSummary) error {
	if _, err := f.NewSheet(pairsSheet); err != nil {
		return fmt.Errorf("create pairs sheet: %w", err)
	}

	header := []interface{}{"Pair ID", "Invoice ID", "Delivery Note ID", "Status", "Confidence", "Reasons"}
	if err := f.SetSheetRow(pairsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write pairs header: %w", err)
	}

	for i, pair := range summary.Pairs {
		row := []interface{}{
			pair.ID,
			pair.InvoiceID,
			pair.DeliveryNoteID,
			string(pair.Status),
			pair.Confidence,
			formatReasons(pair.Reasons),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(pairsSheet, cell, &row); err != nil {
			return fmt.Errorf("write pair row: %w", err)
		}
	}

	// Status totals to the right of the pair table.
	if err := f.SetSheetRow(pairsSheet, "H1", &[]interface{}{"Status", "Count"}); err != nil {
		return fmt.Errorf("write totals header: %w", err)
	}
	row := 2
	for _, status := range []string{"matched", "partial", "unmatched"} {
		if err := f.SetSheetRow(pairsSheet, fmt.Sprintf("H%d", row), &[]interface{}{status, summary.Totals[status]}); err != nil {
			return fmt.Errorf("write totals row: %w", err)
		}
		row++
	}
	return nil
}

func buildDiffsSheet(f *excelize.File, summary *entity.MatchingSummary) error {
	if _, err := f.NewSheet(diffsSheet); err != nil {
		return fmt.Errorf("create diffs sheet: %w", err)
	}

	header := []interface{}{
		"Pair ID", "Diff ID", "Invoice Line", "Delivery Line", "Status",
		"Confidence", "Qty Invoice", "Qty DN", "Unit", "Price Invoice", "Price DN", "Reasons",
	}
	if err := f.SetSheetRow(diffsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write diffs header: %w", err)
	}

	rowNum := 2
	for _, pair := range summary.Pairs {
		for _, d := range pair.LineDiffs {
			row := []interface{}{
				pair.ID,
				d.ID,
				formatLineRef(d.InvoiceLineID),
				formatLineRef(d.DeliveryLineID),
				string(d.Status),
				d.Confidence,
				formatDecimal(d.QtyInvoice),
				formatDecimal(d.QtyDN),
				d.QtyUnit,
				formatDecimal(d.PriceInvoice),
				formatDecimal(d.PriceDN),
				formatReasons(d.Reasons),
			}
			if err := f.SetSheetRow(diffsSheet, fmt.Sprintf("A%d", rowNum), &row); err != nil {
				return fmt.Errorf("write diff row: %w", err)
			}
			rowNum++
		}
	}
	return nil
}

func formatReasons(reasons []entity.MatchReason) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s (%+.0f)", r.Code, r.Weight)
	}
	return out
}

func formatLineRef(p *int) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d", *p)
}

func formatDecimal(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
