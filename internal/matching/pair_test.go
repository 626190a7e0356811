package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

func pairFixture() (*entity.Invoice, *entity.DeliveryNote) {
	invDate := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	inv := &entity.Invoice{
		ID:           10,
		SupplierName: "Bidfood Ltd",
		InvoiceDate:  invDate,
		TotalAmount:  decimal.NewFromInt(100),
		Lines: []entity.LineItem{
			line("TOM500", "Cherry Tomatoes", 10, "kg", 2.50),
			line("FLR01", "Plain Flour", 2, "kg", 1.20),
		},
	}
	dn := &entity.DeliveryNote{
		ID:           20,
		SupplierName: "Bidfood",
		DeliveryDate: invDate.AddDate(0, 0, 2),
		TotalAmount:  decimal.NewFromInt(100),
		Lines: []entity.LineItem{
			line("TOM500", "Tomatoes, cherry", 10, "kg", 2.50),
			line("FLR01", "Plain Flour", 2, "kg", 1.20),
		},
	}
	return inv, dn
}

func TestComputeMatchingPair_FullyMatched(t *testing.T) {
	cfg := DefaultConfig()
	inv, dn := pairFixture()

	pair := ComputeMatchingPair(inv, dn, cfg)

	assert.Equal(t, entity.PairMatched, pair.Status)
	assert.Equal(t, 100.0, pair.Confidence)
	assert.Equal(t, inv.ID, pair.InvoiceID)
	assert.Equal(t, dn.ID, pair.DeliveryNoteID)
	require.Len(t, pair.LineDiffs, 2)
	for _, d := range pair.LineDiffs {
		assert.Equal(t, entity.LineOK, d.Status)
	}

	// Document-level reasons only; line reasons live on the diffs.
	codes := reasonCodes(pair.Reasons)
	assert.Contains(t, codes, CodeSupplierMatch)
	assert.Contains(t, codes, CodeDateWindow)
	assert.Contains(t, codes, CodeAmountProximity)
	assert.NotContains(t, codes, CodeSKUExactMatch)
}

func TestComputeMatchingPair_MismatchDemotesToPartial(t *testing.T) {
	cfg := DefaultConfig()
	inv, dn := pairFixture()
	// Short-deliver one of the two lines well past tolerance.
	dn.Lines[1].Quantity = decimal.NewFromInt(1)

	pair := ComputeMatchingPair(inv, dn, cfg)

	// 50% of lines mismatched exceeds both the matched rule and the
	// mismatch ceiling.
	assert.Equal(t, entity.PairPartial, pair.Status)
	assert.Contains(t, reasonCodes(pair.Reasons), CodeManyMismatches)

	var mismatched int
	for _, d := range pair.LineDiffs {
		if d.Status == entity.LineQtyMismatch {
			mismatched++
		}
	}
	assert.Equal(t, 1, mismatched)
}

func TestComputeMatchingPair_MissingLinesLowerCoverage(t *testing.T) {
	cfg := DefaultConfig()
	inv, dn := pairFixture()
	inv.Lines = append(inv.Lines,
		line("X1", "Basmati Rice", 5, "kg", 1.80),
		line("X2", "Sunflower Oil", 3, "l", 2.10),
		line("X3", "Caster Sugar", 4, "kg", 0.90),
		line("X4", "Sea Salt", 2, "kg", 0.50),
		line("X5", "Black Pepper", 1, "kg", 6.00),
	)

	pair := ComputeMatchingPair(inv, dn, cfg)

	// 2 of 7 invoice lines covered: below the coverage floor.
	assert.Contains(t, reasonCodes(pair.Reasons), CodeLowCoverage)
	assert.NotEqual(t, entity.PairMatched, pair.Status)
}

func TestComputeMatchingPair_TieReasonLowersConfidence(t *testing.T) {
	cfg := DefaultConfig()

	// A modest fixture whose score sits well below the clamp, so the tie
	// penalty is visible in the confidence.
	invDate := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	inv := &entity.Invoice{
		ID:           10,
		SupplierName: "Bidfood",
		InvoiceDate:  invDate,
		TotalAmount:  decimal.NewFromInt(100),
		Lines:        []entity.LineItem{line("", "Chicken Breast Fillet", 6, "kg", 5.00)},
	}
	dn := &entity.DeliveryNote{
		ID:           20,
		SupplierName: "Bidfood",
		DeliveryDate: invDate.AddDate(0, 0, 2),
		TotalAmount:  decimal.NewFromInt(200),
		Lines:        []entity.LineItem{line("", "Chicken breast fillets", 6, "kg", 5.00)},
	}

	base := ComputeMatchingPair(inv, dn, cfg)
	tied := ComputeMatchingPair(inv, dn, cfg, entity.MatchReason{
		Code:   CodeCandidateTie,
		Detail: "two candidates scored within margin",
		Weight: WeightCandidateTie,
	})

	assert.Contains(t, reasonCodes(tied.Reasons), CodeCandidateTie)
	assert.Less(t, tied.Confidence, base.Confidence)
}

func TestComputeMatchingPair_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	inv, dn := pairFixture()
	dn.Lines[0].Quantity = decimal.NewFromInt(7)

	a := ComputeMatchingPair(inv, dn, cfg)
	b := ComputeMatchingPair(inv, dn, cfg)

	// Bit-identical rerun, IDs included.
	assert.Equal(t, a, b)
	assert.Equal(t, "pair_10", a.ID)
	require.Len(t, a.LineDiffs, 2)
	assert.Equal(t, "pair_10_line_inv0_dn0", a.LineDiffs[0].ID)
}
