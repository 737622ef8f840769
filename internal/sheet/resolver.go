package sheet

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/centralpricelist/pricelist/internal/pricing"
)

const (
	// DefaultMinRows is the smallest sheet that can hold a header plus data.
	DefaultMinRows = 4
	// DefaultHeaderScanRows bounds the header search window.
	DefaultHeaderScanRows = 6
)

// DefaultDenylist names sheets that never carry vendor prices.
var DefaultDenylist = []string{
	"PRICING", "INDEX", "SUMMARY", "INFO", "Categories", "EOL Products",
	"Promotions", "New Products", "Warehouse Clearance", "Delivery",
}

var (
	skuTokens         = []string{"SKU", "CODE"}
	descriptionTokens = []string{"DESCRIPTION"}
	priceTokens       = []string{"PRICE"}
	// Manufacturer list prices are never the supplier's own price.
	excludedPriceTokens = []string{"SUGGESTED", "ADVERTISING", "MSRP"}

	costTokens   = []string{"COST", "DEALER", "TRADE", "NETT"}
	retailTokens = []string{"RETAIL", "RRP", "SELLING"}
	inclTokens   = []string{"INCL", "INC VAT", "VAT INC"}
	exclTokens   = []string{"EXCL", "EX VAT", "VAT EX"}
)

// Resolver finds header and data rows with token matching.
type Resolver struct {
	MinRows        int
	HeaderScanRows int
	Denylist       []string
}

// NewResolver returns a Resolver with the default thresholds and denylist.
func NewResolver() *Resolver {
	return &Resolver{
		MinRows:        DefaultMinRows,
		HeaderScanRows: DefaultHeaderScanRows,
		Denylist:       DefaultDenylist,
	}
}

// Denylisted reports whether a sheet must be skipped before any analysis.
// Matching ignores case and surrounding whitespace.
func (r *Resolver) Denylisted(name string) bool {
	name = strings.TrimSpace(name)
	for _, d := range r.Denylist {
		if strings.EqualFold(name, d) {
			return true
		}
	}
	return false
}

// Resolve inspects rows and returns the sheet structure. It never fails; a
// sheet it cannot understand comes back with IsValid false.
func (r *Resolver) Resolve(rows []RawRow, sheetName string) Structure {
	if r.Denylisted(sheetName) {
		return Invalid("denylisted sheet")
	}
	if len(rows) < r.MinRows {
		return Invalid("too few rows")
	}

	caser := cases.Upper(language.Und)
	headerIdx := -1
	var headers []string
	limit := min(r.HeaderScanRows, len(rows))
	for i := 0; i < limit; i++ {
		normalized := normalizeHeaders(caser, rows[i])
		if anyContains(normalized, skuTokens) && anyContains(normalized, descriptionTokens) && anyContains(normalized, priceTokens) {
			headerIdx = i
			headers = normalized
			break
		}
	}
	if headerIdx < 0 {
		return Invalid("no header row found")
	}

	used := map[int]bool{}
	skuCol := firstMatch(headers, used, func(h string) bool { return containsAny(h, skuTokens) })
	used[skuCol] = true
	descCol := firstMatch(headers, used, func(h string) bool { return containsAny(h, descriptionTokens) })
	used[descCol] = true
	priceCol := firstMatch(headers, used, func(h string) bool {
		return containsAny(h, priceTokens) && !containsAny(h, excludedPriceTokens)
	})
	if skuCol < 0 || descCol < 0 || priceCol < 0 {
		return Invalid("missing required columns")
	}

	return Structure{
		IsValid:           true,
		HeaderRowIndex:    headerIdx,
		DataStartRow:      headerIdx + 1,
		Columns:           Columns{Name: skuCol, Description: descCol, Price: priceCol, Category: NoColumn},
		DetectedPriceType: DetectPriceType(headers[priceCol]),
		Confidence:        HeuristicConfidence,
		Source:            SourceHeuristic,
	}
}

// DetectPriceType reads a price header such as "DEALER PRICE EXCL VAT". Both
// the cost/retail role and the VAT treatment must be stated, otherwise the
// result is empty and the caller's default applies.
func DetectPriceType(header string) pricing.PriceType {
	h := NormalizeHeader(header)
	cost := containsAny(h, costTokens)
	retail := containsAny(h, retailTokens)
	incl := containsAny(h, inclTokens)
	excl := containsAny(h, exclTokens)
	if cost == retail || incl == excl {
		return ""
	}
	switch {
	case cost && incl:
		return pricing.CostInclVAT
	case cost:
		return pricing.CostExclVAT
	case incl:
		return pricing.RetailInclVAT
	default:
		return pricing.RetailExclVAT
	}
}

// NormalizeHeader folds compatibility characters and upper-cases text.
func NormalizeHeader(s string) string {
	return cases.Upper(language.Und).String(norm.NFKC.String(strings.TrimSpace(s)))
}

func normalizeHeaders(caser cases.Caser, row RawRow) []string {
	out := make([]string, len(row))
	for i, c := range row {
		if s, ok := c.(string); ok {
			out[i] = caser.String(norm.NFKC.String(strings.TrimSpace(s)))
		}
	}
	return out
}

func firstMatch(headers []string, used map[int]bool, match func(string) bool) int {
	for i, h := range headers {
		if h == "" || used[i] {
			continue
		}
		if match(h) {
			return i
		}
	}
	return NoColumn
}

func anyContains(headers []string, tokens []string) bool {
	for _, h := range headers {
		if containsAny(h, tokens) {
			return true
		}
	}
	return false
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

var defaultResolver = NewResolver()

// Resolve runs the default Resolver.
func Resolve(rows []RawRow, sheetName string) Structure {
	return defaultResolver.Resolve(rows, sheetName)
}

// Denylisted checks the default denylist.
func Denylisted(name string) bool {
	return defaultResolver.Denylisted(name)
}
