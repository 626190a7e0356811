package matching

import (
	"fmt"
	"sort"
	"time"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

// Candidate is a delivery note ranked against one invoice with the cheap
// document-level signals only. Line-item reconciliation happens later,
// for the selected candidate.
type Candidate struct {
	DeliveryNote *entity.DeliveryNote
	Score        float64
	Reasons      []entity.MatchReason
}

// FindCandidates filters the delivery-note pool to plausible counterparts
// for the invoice (same canonical supplier, delivery date within the
// configured window, inclusive) and ranks them by provisional score.
// An empty result means the invoice is skipped for this rebuild; it is
// not an error.
func FindCandidates(inv *entity.Invoice, pool []*entity.DeliveryNote, cfg Config) []Candidate {
	supplier := NormalizeSupplier(inv.SupplierName)

	var candidates []Candidate
	for _, dn := range pool {
		if NormalizeSupplier(dn.SupplierName) != supplier {
			continue
		}
		if daysBetween(inv.InvoiceDate, dn.DeliveryDate) > cfg.DateWindowDays {
			continue
		}

		reasons := DocumentSignals(inv, dn, cfg)
		score := baseDocumentScore
		for _, r := range reasons {
			score += r.Weight
		}
		candidates = append(candidates, Candidate{
			DeliveryNote: dn,
			Score:        score,
			Reasons:      reasons,
		})
	}

	// Deterministic order: score descending, delivery-note ID ascending.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].DeliveryNote.ID < candidates[j].DeliveryNote.ID
	})
	return candidates
}

// TieReason reports whether the ranked candidates are ambiguous at the
// top: the best two scores within cfg.TieBreakMargin points. The top
// candidate is still selected, but the returned reason marks the
// ambiguity on the eventual pair.
func TieReason(candidates []Candidate, cfg Config) (entity.MatchReason, bool) {
	if len(candidates) < 2 {
		return entity.MatchReason{}, false
	}
	top, next := candidates[0].Score, candidates[1].Score
	if top-next > cfg.TieBreakMargin {
		return entity.MatchReason{}, false
	}
	return entity.MatchReason{
		Code:   CodeCandidateTie,
		Detail: fmt.Sprintf("multiple candidates within %.0f points: %.0f vs %.0f", cfg.TieBreakMargin, top, next),
		Weight: WeightCandidateTie,
	}, true
}

// DocumentSignals computes the cheap document-level reasons shared by
// candidate ranking and final pair scoring: supplier match, date
// proximity, and amount proximity. The amount check is skipped entirely
// when the invoice total is zero.
func DocumentSignals(inv *entity.Invoice, dn *entity.DeliveryNote, cfg Config) []entity.MatchReason {
	var reasons []entity.MatchReason

	if NormalizeSupplier(inv.SupplierName) == NormalizeSupplier(dn.SupplierName) {
		reasons = append(reasons, entity.MatchReason{
			Code:   CodeSupplierMatch,
			Detail: fmt.Sprintf("both documents from %s", inv.SupplierName),
			Weight: WeightSupplierMatch,
		})
	}

	if days := daysBetween(inv.InvoiceDate, dn.DeliveryDate); days <= cfg.DateWindowDays {
		reasons = append(reasons, entity.MatchReason{
			Code:   CodeDateWindow,
			Detail: fmt.Sprintf("delivery %s is within %d days of invoice %s", dn.DeliveryDate.Format("2006-01-02"), days, inv.InvoiceDate.Format("2006-01-02")),
			Weight: WeightDateWindow,
		})
	}

	if inv.TotalAmount.IsPositive() {
		diff := dn.TotalAmount.Sub(inv.TotalAmount).Abs()
		pct, _ := diff.Div(inv.TotalAmount).Float64()
		if pct <= cfg.AmountProximityPct {
			reasons = append(reasons, entity.MatchReason{
				Code:   CodeAmountProximity,
				Detail: fmt.Sprintf("document totals differ by %.1f%%, within tolerance", pct*100),
				Weight: WeightAmountProximity,
			})
		}
	}

	return reasons
}

// daysBetween returns the absolute whole-day distance between two dates,
// ignoring time-of-day.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(ad.Sub(bd).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
