package matching

import (
	"fmt"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

// ComputeMatchingPair runs the full reconciliation for one already-chosen
// invoice/delivery-note pairing: the line cascade, the coverage signals,
// and the weighted document score. Pure given its inputs, IDs included:
// pair and diff IDs are derived from the invoice ID and line positions,
// so a rerun with unchanged inputs reproduces the pair bit for bit.
//
// extraReasons carries caller-supplied document-level evidence, such as
// the candidate-tie marker from ranking; the weights participate in the
// final score like any other reason.
func ComputeMatchingPair(inv *entity.Invoice, dn *entity.DeliveryNote, cfg Config, extraReasons ...entity.MatchReason) *entity.MatchingPair {
	pairID := fmt.Sprintf("pair_%d", inv.ID)

	diffs := MatchLines(inv.Lines, dn.Lines, cfg)
	// Diff IDs from MatchLines are unique within one pairing only; the
	// pair prefix makes them unique across the whole store.
	for i := range diffs {
		diffs[i].ID = pairID + "_" + diffs[i].ID
	}

	reasons := DocumentSignals(inv, dn, cfg)
	reasons = append(reasons, extraReasons...)

	cov := MeasureCoverage(diffs)
	reasons = append(reasons, CoverageReasons(cov)...)

	scored := make([]entity.MatchReason, 0, len(reasons))
	scored = append(scored, reasons...)
	for _, d := range diffs {
		scored = append(scored, d.Reasons...)
	}

	confidence := Score(scored)
	return &entity.MatchingPair{
		ID:             pairID,
		InvoiceID:      inv.ID,
		DeliveryNoteID: dn.ID,
		Status:         DecideStatus(cov, confidence),
		Confidence:     confidence,
		Reasons:        reasons,
		LineDiffs:      diffs,
	}
}
