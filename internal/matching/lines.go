package matching

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

// normLine is a line item with its comparison keys pre-normalized and its
// position in the owning document retained.
type normLine struct {
	index int
	sku   string
	desc  string
	qty   decimal.Decimal
	unit  string
	price decimal.Decimal
}

func normalizeLines(lines []entity.LineItem, cfg Config) []normLine {
	out := make([]normLine, len(lines))
	for i, l := range lines {
		out[i] = normLine{
			index: i,
			sku:   NormalizeSKU(l.SKU),
			desc:  NormalizeDescription(l.Description),
			qty:   l.Quantity,
			unit:  cfg.NormalizeUnit(l.Unit),
			price: l.UnitPrice,
		}
	}
	return out
}

// MatchLines reconciles invoice lines against delivery-note lines through
// the four-pass cascade. Every invoice line and every delivery line
// appears in exactly one of the returned diffs. The pass order is fixed:
// exact SKU evidence is strongest, fuzzy description evidence weakest,
// and a line consumed by an earlier pass is excluded from later ones.
func MatchLines(invLines, dnLines []entity.LineItem, cfg Config) []entity.LineDiff {
	inv := normalizeLines(invLines, cfg)
	dn := normalizeLines(dnLines, cfg)

	matchedInv := make(map[int]bool)
	matchedDN := make(map[int]bool)
	var diffs []entity.LineDiff

	// Pass 1: exact SKU + same unit.
	for _, il := range inv {
		if il.sku == "" {
			continue
		}
		for _, dl := range dn {
			if matchedDN[dl.index] || dl.sku == "" {
				continue
			}
			if il.sku != dl.sku || il.unit != dl.unit {
				continue
			}
			diffs = append(diffs, matchExact(il, dl, cfg))
			matchedInv[il.index] = true
			matchedDN[dl.index] = true
			break
		}
	}

	// Pass 2: same SKU, unit differs but converts.
	for _, il := range inv {
		if matchedInv[il.index] || il.sku == "" {
			continue
		}
		for _, dl := range dn {
			if matchedDN[dl.index] || dl.sku == "" {
				continue
			}
			if il.sku != dl.sku || il.unit == dl.unit {
				continue
			}
			converted := cfg.ConvertQuantity(dl.qty, dl.unit, il.unit)
			if converted.Equal(dl.qty) {
				// No conversion rule; fall through to later passes.
				continue
			}
			diffs = append(diffs, matchConverted(il, dl, converted, cfg))
			matchedInv[il.index] = true
			matchedDN[dl.index] = true
			break
		}
	}

	// Pass 3: best fuzzy description match above threshold.
	for _, il := range inv {
		if matchedInv[il.index] || il.desc == "" {
			continue
		}
		best := -1
		bestSim := 0.0
		for _, dl := range dn {
			if matchedDN[dl.index] || dl.desc == "" {
				continue
			}
			sim := Similarity(il.desc, dl.desc)
			if sim >= cfg.FuzzyDescThreshold && sim > bestSim {
				best = dl.index
				bestSim = sim
			}
		}
		if best < 0 {
			continue
		}
		dl := dn[best]
		if il.price.IsPositive() {
			priceDiffPct, _ := il.price.Sub(dl.price).Abs().Div(il.price).Float64()
			if priceDiffPct > cfg.PriceTolRel {
				continue
			}
		}
		diffs = append(diffs, matchFuzzy(il, dl, bestSim, cfg))
		matchedInv[il.index] = true
		matchedDN[dl.index] = true
	}

	// Pass 4: leftovers on either side.
	for _, il := range inv {
		if matchedInv[il.index] {
			continue
		}
		idx := il.index
		diffs = append(diffs, entity.LineDiff{
			ID:            fmt.Sprintf("line_inv%d", idx),
			InvoiceLineID: &idx,
			Status:        entity.LineMissingOnDN,
			Confidence:    0,
			QtyInvoice:    decPtr(il.qty),
			QtyUnit:       il.unit,
			PriceInvoice:  decPtr(il.price),
			Reasons: []entity.MatchReason{{
				Code:   CodeMissingOnDN,
				Detail: "invoice line has no counterpart on the delivery note",
				Weight: WeightMissingLine,
			}},
		})
	}
	for _, dl := range dn {
		if matchedDN[dl.index] {
			continue
		}
		idx := dl.index
		diffs = append(diffs, entity.LineDiff{
			ID:             fmt.Sprintf("line_dn%d", idx),
			DeliveryLineID: &idx,
			Status:         entity.LineMissingOnInv,
			Confidence:     0,
			QtyDN:          decPtr(dl.qty),
			QtyUnit:        dl.unit,
			PriceDN:        decPtr(dl.price),
			Reasons: []entity.MatchReason{{
				Code:   CodeMissingOnInv,
				Detail: "delivery line has no counterpart on the invoice",
				Weight: WeightMissingLine,
			}},
		})
	}

	return diffs
}

// matchExact builds the pass-1 diff: shared SKU and unit, with quantity
// and price tolerance checks. The quantity check takes precedence when
// both exceed tolerance.
func matchExact(il, dl normLine, cfg Config) entity.LineDiff {
	reasons := []entity.MatchReason{{
		Code:   CodeSKUExactMatch,
		Detail: fmt.Sprintf("exact SKU match: %s", il.sku),
		Weight: WeightSKUExactMatch,
	}}

	status := entity.LineOK
	confidence := confExactMatch

	qtyDiff := il.qty.Sub(dl.qty).Abs()
	qtyTol := cfg.qtyTolerance(il.qty)
	if qtyDiff.GreaterThan(qtyTol) {
		status = entity.LineQtyMismatch
		confidence -= confViolationPenalty
		reasons = append(reasons, entity.MatchReason{
			Code:   CodeQtyOutOfTol,
			Detail: fmt.Sprintf("quantity difference %s exceeds tolerance %s", qtyDiff.String(), qtyTol.String()),
			Weight: WeightOutOfTolerance,
		})
	}

	// Skipped entirely when the invoice price is zero.
	if il.price.IsPositive() {
		priceDiff := il.price.Sub(dl.price).Abs()
		priceTol := cfg.priceTolerance(il.price)
		if priceDiff.GreaterThan(priceTol) {
			if status == entity.LineOK {
				status = entity.LinePriceMismatch
			}
			confidence -= confViolationPenalty
			reasons = append(reasons, entity.MatchReason{
				Code:   CodePriceOutOfTol,
				Detail: fmt.Sprintf("price difference %s exceeds tolerance %s", priceDiff.String(), priceTol.String()),
				Weight: WeightOutOfTolerance,
			})
		}
	}

	invIdx, dnIdx := il.index, dl.index
	return entity.LineDiff{
		ID:             pairedLineDiffID(invIdx, dnIdx),
		InvoiceLineID:  &invIdx,
		DeliveryLineID: &dnIdx,
		Status:         status,
		Confidence:     confidence,
		QtyInvoice:     decPtr(il.qty),
		QtyDN:          decPtr(dl.qty),
		QtyUnit:        il.unit,
		PriceInvoice:   decPtr(il.price),
		PriceDN:        decPtr(dl.price),
		Reasons:        reasons,
	}
}

// matchConverted builds the pass-2 diff: shared SKU with the delivery
// quantity converted into the invoice unit.
func matchConverted(il, dl normLine, converted decimal.Decimal, cfg Config) entity.LineDiff {
	reasons := []entity.MatchReason{
		{
			Code:   CodeSKUExactMatch,
			Detail: fmt.Sprintf("exact SKU match: %s", il.sku),
			Weight: WeightSKUExactMatch,
		},
		{
			Code:   CodeUOMConverted,
			Detail: fmt.Sprintf("converted %s → %s", dl.unit, il.unit),
			Weight: WeightUOMConverted,
		},
	}

	status := entity.LineOK
	confidence := confConverted

	qtyDiff := il.qty.Sub(converted).Abs()
	qtyTol := cfg.qtyTolerance(il.qty)
	if qtyDiff.GreaterThan(qtyTol) {
		status = entity.LineQtyMismatch
		confidence = confConvertedOutOfTol
		reasons = append(reasons, entity.MatchReason{
			Code:   CodeQtyOutOfTol,
			Detail: fmt.Sprintf("quantity difference %s exceeds tolerance %s", qtyDiff.String(), qtyTol.String()),
			Weight: WeightOutOfTolerance,
		})
	}

	invIdx, dnIdx := il.index, dl.index
	return entity.LineDiff{
		ID:             pairedLineDiffID(invIdx, dnIdx),
		InvoiceLineID:  &invIdx,
		DeliveryLineID: &dnIdx,
		Status:         status,
		Confidence:     confidence,
		QtyInvoice:     decPtr(il.qty),
		QtyDN:          decPtr(converted),
		QtyUnit:        il.unit,
		PriceInvoice:   decPtr(il.price),
		PriceDN:        decPtr(dl.price),
		Reasons:        reasons,
	}
}

// matchFuzzy builds the pass-3 diff: description similarity above the
// configured threshold with price proximity already verified.
func matchFuzzy(il, dl normLine, similarity float64, cfg Config) entity.LineDiff {
	invIdx, dnIdx := il.index, dl.index
	return entity.LineDiff{
		ID:             pairedLineDiffID(invIdx, dnIdx),
		InvoiceLineID:  &invIdx,
		DeliveryLineID: &dnIdx,
		Status:         entity.LineOK,
		Confidence:     confFuzzy,
		QtyInvoice:     decPtr(il.qty),
		QtyDN:          decPtr(dl.qty),
		QtyUnit:        il.unit,
		PriceInvoice:   decPtr(il.price),
		PriceDN:        decPtr(dl.price),
		Reasons: []entity.MatchReason{{
			Code:   fmt.Sprintf("DESC_FUZZY_≥%.2f", cfg.FuzzyDescThreshold),
			Detail: fmt.Sprintf("description similarity %.2f", similarity),
			Weight: WeightDescFuzzy,
		}},
	}
}

// qtyTolerance is max(QtyTolAbs, invoiceQty*QtyTolRel); the boundary is
// inclusive, so diff == tolerance is within tolerance.
func (c Config) qtyTolerance(invQty decimal.Decimal) decimal.Decimal {
	abs := decimal.NewFromFloat(c.QtyTolAbs)
	rel := invQty.Abs().Mul(decimal.NewFromFloat(c.QtyTolRel))
	if rel.GreaterThan(abs) {
		return rel
	}
	return abs
}

func (c Config) priceTolerance(invPrice decimal.Decimal) decimal.Decimal {
	return invPrice.Abs().Mul(decimal.NewFromFloat(c.PriceTolRel))
}

// Diff IDs are derived from line positions, never generated, so a rerun
// with unchanged inputs reproduces the diff set bit for bit.
func pairedLineDiffID(invIdx, dnIdx int) string {
	return fmt.Sprintf("line_inv%d_dn%d", invIdx, dnIdx)
}

func decPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
