package matching

import (
	"fmt"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

// Coverage summarizes line-level outcomes for document scoring.
type Coverage struct {
	// TotalInvoiceLines is the number of invoice lines in the diff set.
	TotalInvoiceLines int
	// MatchedInvoiceLines is the number of invoice lines that found any
	// delivery counterpart, regardless of tolerance outcome.
	MatchedInvoiceLines int
	// MismatchedLines counts paired lines with a quantity or price
	// tolerance violation.
	MismatchedLines int
}

// CoveragePct is the fraction of invoice lines with a delivery
// counterpart; zero when the invoice has no lines.
func (c Coverage) CoveragePct() float64 {
	if c.TotalInvoiceLines == 0 {
		return 0
	}
	return float64(c.MatchedInvoiceLines) / float64(c.TotalInvoiceLines)
}

// MismatchPct is the fraction of invoice lines with a tolerance
// violation; zero when the invoice has no lines.
func (c Coverage) MismatchPct() float64 {
	if c.TotalInvoiceLines == 0 {
		return 0
	}
	return float64(c.MismatchedLines) / float64(c.TotalInvoiceLines)
}

// MeasureCoverage derives coverage counts from a diff set.
func MeasureCoverage(diffs []entity.LineDiff) Coverage {
	var cov Coverage
	for _, d := range diffs {
		if d.InvoiceLineID == nil {
			continue
		}
		cov.TotalInvoiceLines++
		if d.DeliveryLineID != nil {
			cov.MatchedInvoiceLines++
		}
		if d.Status == entity.LineQtyMismatch || d.Status == entity.LinePriceMismatch {
			cov.MismatchedLines++
		}
	}
	return cov
}

// CoverageReasons emits the derived document-level penalties: low line
// coverage and a high mismatch share.
func CoverageReasons(cov Coverage) []entity.MatchReason {
	var reasons []entity.MatchReason
	if cov.CoveragePct() < coverageFloor {
		reasons = append(reasons, entity.MatchReason{
			Code:   CodeLowCoverage,
			Detail: fmt.Sprintf("only %.0f%% of invoice lines matched", cov.CoveragePct()*100),
			Weight: WeightLowCoverage,
		})
	}
	if cov.MismatchPct() > mismatchCeiling {
		reasons = append(reasons, entity.MatchReason{
			Code:   CodeManyMismatches,
			Detail: fmt.Sprintf("%.0f%% of invoice lines have discrepancies", cov.MismatchPct()*100),
			Weight: WeightManyMismatches,
		})
	}
	return reasons
}

// Score accumulates reason weights on top of the base document score and
// clamps the result to [0,100].
func Score(reasons []entity.MatchReason) float64 {
	score := baseDocumentScore
	for _, r := range reasons {
		score += r.Weight
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// DecideStatus maps coverage and confidence onto the document status.
// The rules are evaluated in order: matched is the strictest, partial
// catches decent coverage or confidence, everything else is unmatched.
func DecideStatus(cov Coverage, confidence float64) entity.PairStatus {
	switch {
	case cov.CoveragePct() >= matchedCoverageMin &&
		cov.MismatchPct() <= matchedMismatchMax &&
		confidence >= matchedConfidenceMin:
		return entity.PairMatched
	case cov.CoveragePct() >= partialCoverageMin || confidence >= partialConfidenceMin:
		return entity.PairPartial
	default:
		return entity.PairUnmatched
	}
}
