// Package matching implements the invoice / delivery-note reconciliation
// engine: candidate ranking, the four-pass line-item cascade, and the
// weighted-reason document scorer.
//
// All functions are pure over their inputs. Configuration is passed
// explicitly into every call so concurrent rebuilds with different
// tolerance profiles cannot interfere.
package matching

// Reason codes are stable strings; downstream UIs and audit logs render
// them directly without reinterpreting weights.
const (
	CodeSupplierMatch   = "SUPPLIER_MATCH"
	CodeDateWindow      = "DATE_WINDOW_MATCH"
	CodeAmountProximity = "AMOUNT_PROXIMITY_<=10PCT"
	CodeSKUExactMatch   = "SKU_EXACT_MATCH"
	CodeUOMConverted    = "UOM_CONVERTED"
	CodeQtyOutOfTol     = "QTY_OUT_OF_TOL"
	CodePriceOutOfTol   = "PRICE_OUT_OF_TOL"
	CodeMissingOnDN     = "MISSING_ON_DN"
	CodeMissingOnInv    = "MISSING_ON_INV"
	CodeLowCoverage     = "LOW_LINE_COVERAGE_<70PCT"
	CodeManyMismatches  = "MANY_MISMATCHES_>30PCT"
	CodeCandidateTie    = "MULTI_CANDIDATE_TIE"
)

// Reason weights. Kept as named constants so tests can assert on them.
const (
	WeightSupplierMatch   = 15.0
	WeightDateWindow      = 10.0
	WeightAmountProximity = 10.0
	WeightSKUExactMatch   = 20.0
	WeightUOMConverted    = 6.0
	WeightDescFuzzy       = 6.0
	WeightOutOfTolerance  = -10.0
	WeightMissingLine     = -20.0
	WeightLowCoverage     = -20.0
	WeightManyMismatches  = -20.0
	WeightCandidateTie    = -15.0
)

// Line-level confidence anchors for the cascade passes.
const (
	confExactMatch        = 90.0
	confConverted         = 85.0
	confConvertedOutOfTol = 70.0
	confFuzzy             = 75.0
	confViolationPenalty  = 15.0
)

// Document scoring anchors.
const (
	baseDocumentScore    = 50.0
	coverageFloor        = 0.7
	mismatchCeiling      = 0.3
	matchedCoverageMin   = 0.9
	matchedMismatchMax   = 0.05
	matchedConfidenceMin = 75.0
	partialCoverageMin   = 0.6
	partialConfidenceMin = 60.0
)

// Config carries the business tolerances for one reconciliation run.
type Config struct {
	// DateWindowDays bounds how far apart (inclusive) an invoice date and
	// a delivery date may be for the documents to be candidates.
	DateWindowDays int

	// AmountProximityPct is the relative document-total difference that
	// still counts as "amounts agree".
	AmountProximityPct float64

	// Quantity tolerance: effective tolerance is
	// max(QtyTolAbs, invoiceQty*QtyTolRel); the boundary is inclusive.
	QtyTolAbs float64
	QtyTolRel float64

	// PriceTolRel is the relative unit-price tolerance against the
	// invoice-side price.
	PriceTolRel float64

	// FuzzyDescThreshold is the minimum description similarity for a
	// pass-3 match.
	FuzzyDescThreshold float64

	// TieBreakMargin marks the top two candidates as ambiguous when their
	// provisional scores are within this many points.
	TieBreakMargin float64

	// UnitSynonyms maps raw unit spellings to their canonical unit.
	UnitSynonyms map[string]string

	// UnitConversions holds quantity ratios between canonical units:
	// UnitConversions[from][to] = ratio. Pack sizes (case→each) are
	// business configuration, not universal constants.
	UnitConversions map[string]map[string]float64
}

// DefaultConfig returns the default tolerance profile.
func DefaultConfig() Config {
	return Config{
		DateWindowDays:     14,
		AmountProximityPct: 0.10,
		QtyTolAbs:          0,
		QtyTolRel:          0.02,
		PriceTolRel:        0.02,
		FuzzyDescThreshold: 0.90,
		TieBreakMargin:     5,
		UnitSynonyms:       defaultUnitSynonyms(),
		UnitConversions:    defaultUnitConversions(),
	}
}

func defaultUnitSynonyms() map[string]string {
	return map[string]string{
		"ea":         "each",
		"unit":       "each",
		"units":      "each",
		"pcs":        "each",
		"piece":      "each",
		"pieces":     "each",
		"cs":         "case",
		"cases":      "case",
		"box":        "case",
		"boxes":      "case",
		"kgs":        "kg",
		"kilo":       "kg",
		"kilos":      "kg",
		"kilogram":   "kg",
		"kilograms":  "kg",
		"gram":       "g",
		"grams":      "g",
		"ltr":        "l",
		"litre":      "l",
		"litres":     "l",
		"liter":      "l",
		"liters":     "l",
		"millilitre": "ml",
		"mls":        "ml",
		"btl":        "bottle",
		"bottles":    "bottle",
	}
}

func defaultUnitConversions() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"kg":   {"g": 1000},
		"g":    {"kg": 0.001},
		"l":    {"ml": 1000},
		"ml":   {"l": 0.001},
		"case": {"each": 12},
		"each": {"case": 1.0 / 12},
	}
}
