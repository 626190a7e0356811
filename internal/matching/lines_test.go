package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owlinhq/invoice-reconciler/internal/domain/entity"
)

func line(sku, desc string, qty float64, unit string, price float64) entity.LineItem {
	return entity.LineItem{
		SKU:         sku,
		Description: desc,
		Quantity:    decimal.NewFromFloat(qty),
		Unit:        unit,
		UnitPrice:   decimal.NewFromFloat(price),
	}
}

func TestMatchLines_ExactMatch(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{line("TOM-500", "Cherry Tomatoes", 10, "kg", 2.50)},
		[]entity.LineItem{line("tom 500", "Tomatoes, cherry", 10, "kg", 2.50)},
		cfg,
	)

	require.Len(t, diffs, 1)
	d := diffs[0]
	assert.Equal(t, entity.LineOK, d.Status)
	assert.Equal(t, 90.0, d.Confidence)
	require.NotNil(t, d.InvoiceLineID)
	require.NotNil(t, d.DeliveryLineID)
	assert.Equal(t, 0, *d.InvoiceLineID)
	assert.Equal(t, 0, *d.DeliveryLineID)
	assert.Contains(t, reasonCodes(d.Reasons), CodeSKUExactMatch)
}

func TestMatchLines_QtyViolation(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{line("TOM500", "", 10, "kg", 2.50)},
		[]entity.LineItem{line("TOM500", "", 8, "kg", 2.50)},
		cfg,
	)

	require.Len(t, diffs, 1)
	assert.Equal(t, entity.LineQtyMismatch, diffs[0].Status)
	assert.Equal(t, 75.0, diffs[0].Confidence)
	assert.Contains(t, reasonCodes(diffs[0].Reasons), CodeQtyOutOfTol)
}

func TestMatchLines_QtyTakesPrecedenceOverPrice(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{line("TOM500", "", 10, "kg", 2.50)},
		[]entity.LineItem{line("TOM500", "", 8, "kg", 3.50)},
		cfg,
	)

	require.Len(t, diffs, 1)
	d := diffs[0]
	assert.Equal(t, entity.LineQtyMismatch, d.Status)
	// Both violations cost confidence.
	assert.Equal(t, 60.0, d.Confidence)
	codes := reasonCodes(d.Reasons)
	assert.Contains(t, codes, CodeQtyOutOfTol)
	assert.Contains(t, codes, CodePriceOutOfTol)
}

func TestMatchLines_ToleranceBoundaryIsInclusive(t *testing.T) {
	cfg := DefaultConfig()

	// 2% of 100 is exactly 2; a diff of 2 is still within tolerance.
	diffs := MatchLines(
		[]entity.LineItem{line("A1", "", 100, "each", 1.00)},
		[]entity.LineItem{line("A1", "", 102, "each", 1.00)},
		cfg,
	)

	require.Len(t, diffs, 1)
	assert.Equal(t, entity.LineOK, diffs[0].Status)
}

func TestMatchLines_ZeroPriceSkipsPriceCheck(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{line("A1", "", 5, "each", 0)},
		[]entity.LineItem{line("A1", "", 5, "each", 9.99)},
		cfg,
	)

	require.Len(t, diffs, 1)
	assert.Equal(t, entity.LineOK, diffs[0].Status)
	assert.NotContains(t, reasonCodes(diffs[0].Reasons), CodePriceOutOfTol)
}

func TestMatchLines_UnitConversion(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{line("FLR01", "Plain Flour", 2, "kg", 1.20)},
		[]entity.LineItem{line("FLR01", "Plain Flour", 2000, "g", 1.20)},
		cfg,
	)

	require.Len(t, diffs, 1)
	d := diffs[0]
	assert.Equal(t, entity.LineOK, d.Status)
	assert.Equal(t, 85.0, d.Confidence)
	assert.Contains(t, reasonCodes(d.Reasons), CodeUOMConverted)

	// The delivery quantity is reported converted, in the invoice unit.
	require.NotNil(t, d.QtyDN)
	assert.True(t, decimal.NewFromInt(2).Equal(*d.QtyDN), "got %s", d.QtyDN)
	assert.Equal(t, "kg", d.QtyUnit)
}

func TestMatchLines_ConversionWithQtyViolation(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{line("FLR01", "", 2, "kg", 1.20)},
		[]entity.LineItem{line("FLR01", "", 1500, "g", 1.20)},
		cfg,
	)

	require.Len(t, diffs, 1)
	assert.Equal(t, entity.LineQtyMismatch, diffs[0].Status)
	assert.Equal(t, 70.0, diffs[0].Confidence)
}

func TestMatchLines_FuzzyDescription(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{line("", "Chicken Breast Fillet", 6, "kg", 5.00)},
		[]entity.LineItem{line("", "Chicken breast fillets", 6, "kg", 5.00)},
		cfg,
	)

	require.Len(t, diffs, 1)
	d := diffs[0]
	assert.Equal(t, entity.LineOK, d.Status)
	assert.Equal(t, 75.0, d.Confidence)
	require.NotNil(t, d.InvoiceLineID)
	require.NotNil(t, d.DeliveryLineID)
}

func TestMatchLines_FuzzyRejectedOnPriceDistance(t *testing.T) {
	cfg := DefaultConfig()

	// Similar descriptions but prices 20% apart; the proximity gate
	// rejects the pairing and both lines fall through to pass 4.
	diffs := MatchLines(
		[]entity.LineItem{line("", "Chicken Breast Fillet", 6, "kg", 5.00)},
		[]entity.LineItem{line("", "Chicken breast fillets", 6, "kg", 6.00)},
		cfg,
	)

	require.Len(t, diffs, 2)
	statuses := []entity.LineStatus{diffs[0].Status, diffs[1].Status}
	assert.Contains(t, statuses, entity.LineMissingOnDN)
	assert.Contains(t, statuses, entity.LineMissingOnInv)
}

func TestMatchLines_Leftovers(t *testing.T) {
	cfg := DefaultConfig()

	diffs := MatchLines(
		[]entity.LineItem{
			line("A1", "Frozen Peas", 3, "case", 8.00),
			line("B2", "Olive Oil", 2, "bottle", 12.00),
		},
		[]entity.LineItem{
			line("A1", "Frozen Peas", 3, "case", 8.00),
		},
		cfg,
	)

	require.Len(t, diffs, 2)

	var missing *entity.LineDiff
	for i := range diffs {
		if diffs[i].Status == entity.LineMissingOnDN {
			missing = &diffs[i]
		}
	}
	require.NotNil(t, missing)
	assert.Equal(t, 0.0, missing.Confidence)
	assert.Nil(t, missing.DeliveryLineID)
	require.NotNil(t, missing.InvoiceLineID)
	assert.Equal(t, 1, *missing.InvoiceLineID)
	assert.Contains(t, reasonCodes(missing.Reasons), CodeMissingOnDN)
}

func TestMatchLines_EveryLineAppearsExactlyOnce(t *testing.T) {
	cfg := DefaultConfig()

	invLines := []entity.LineItem{
		line("A1", "Frozen Peas", 3, "case", 8.00),
		line("", "Chicken Breast Fillet", 6, "kg", 5.00),
		line("C3", "Butter Unsalted", 10, "each", 1.50),
	}
	dnLines := []entity.LineItem{
		line("A1", "Frozen Peas", 3, "case", 8.00),
		line("", "Chicken breast fillets", 6, "kg", 5.00),
		line("D4", "Double Cream", 4, "l", 2.00),
	}

	diffs := MatchLines(invLines, dnLines, cfg)

	invSeen := make(map[int]int)
	dnSeen := make(map[int]int)
	for _, d := range diffs {
		if d.InvoiceLineID != nil {
			invSeen[*d.InvoiceLineID]++
		}
		if d.DeliveryLineID != nil {
			dnSeen[*d.DeliveryLineID]++
		}
	}

	for i := range invLines {
		assert.Equal(t, 1, invSeen[i], "invoice line %d", i)
	}
	for i := range dnLines {
		assert.Equal(t, 1, dnSeen[i], "delivery line %d", i)
	}
	// 2 paired + 1 missing on each side.
	assert.Len(t, diffs, 4)
}
