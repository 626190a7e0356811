package matching

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xrash/smetrics"
)

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// NormalizeSKU canonicalizes a SKU code: uppercase with whitespace and
// hyphens stripped. An empty input stays empty; empty SKUs mean "no SKU"
// and never compare equal to each other.
func NormalizeSKU(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.Join(strings.Fields(s), "")
}

// NormalizeDescription canonicalizes a product description for fuzzy
// comparison only: lowercase, punctuation collapsed to single spaces.
// Never use the result for exact equality.
func NormalizeDescription(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeSupplier canonicalizes a supplier name for candidate
// filtering, stripping common company suffixes so "Bidfood Ltd" and
// "Bidfood" compare equal.
func NormalizeSupplier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, suffix := range []string{" ltd", " limited", " plc", " inc", " corp", " company", " co"} {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	return s
}

// NormalizeUnit maps a raw unit-of-measure spelling to its canonical
// unit. Unknown units pass through lowercased.
func (c Config) NormalizeUnit(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	if u == "" {
		return "each"
	}
	if canonical, ok := c.UnitSynonyms[u]; ok {
		return canonical
	}
	return u
}

// ConvertQuantity converts qty from one unit to another using the
// configured ratio table. When no conversion rule exists the original
// quantity is returned unchanged; callers detect "not convertible" by
// comparing the result against the input.
func (c Config) ConvertQuantity(qty decimal.Decimal, fromUnit, toUnit string) decimal.Decimal {
	from := c.NormalizeUnit(fromUnit)
	to := c.NormalizeUnit(toUnit)
	if from == to {
		return qty
	}
	ratios, ok := c.UnitConversions[from]
	if !ok {
		return qty
	}
	ratio, ok := ratios[to]
	if !ok {
		return qty
	}
	return qty.Mul(decimal.NewFromFloat(ratio))
}

// Similarity returns a [0,1] string similarity for normalized
// descriptions, using Jaro-Winkler with the standard boost parameters.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}
