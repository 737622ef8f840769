package sheet

import (
	"strings"
	"unicode/utf8"

	"github.com/centralpricelist/pricelist/internal/pricing"
)

// Rejection names why a data row was dropped.
type Rejection string

const (
	RejectMissingField     Rejection = "missing_field"
	RejectInvalidPrice     Rejection = "invalid_price"
	RejectCategoryBanner   Rejection = "category_banner"
	RejectShortDescription Rejection = "short_description"
	RejectInvalidSKU       Rejection = "invalid_sku"
)

const (
	minDescriptionLen = 5
	minSKULen         = 2
	bannerToken       = "CATEGORY"
)

// Candidate is an accepted data row.
type Candidate struct {
	Row         int // zero-based row index within the sheet
	Name        string
	Description string
	Category    string
	Price       float64
}

// Extraction is the outcome of reading the data rows of one sheet.
type Extraction struct {
	Candidates []Candidate
	Rejected   map[Rejection]int
}

// RejectedCount sums all rejections.
func (e Extraction) RejectedCount() int {
	n := 0
	for _, c := range e.Rejected {
		n += c
	}
	return n
}

// Extract applies s to rows. Blank rows are skipped without being counted.
// Header-matched structures use the strict banner filter; analyzer and
// fallback structures only require a name and a positive price.
func Extract(rows []RawRow, s Structure) Extraction {
	out := Extraction{Rejected: map[Rejection]int{}}
	if !s.IsValid || s.DataStartRow < 0 {
		return out
	}

	for i := s.DataStartRow; i < len(rows); i++ {
		row := rows[i]
		if row.Blank() {
			continue
		}
		c := Candidate{
			Row:         i,
			Name:        row.Cell(s.Columns.Name),
			Description: row.Cell(s.Columns.Description),
			Category:    row.Cell(s.Columns.Category),
		}

		var reason Rejection
		if s.Source == SourceHeuristic {
			reason = strictFilter(c, row.value(s.Columns.Price))
		} else {
			reason = lenientFilter(c, row.value(s.Columns.Price))
		}
		if reason != "" {
			out.Rejected[reason]++
			continue
		}

		c.Price, _ = pricing.ParseAmount(row.value(s.Columns.Price))
		out.Candidates = append(out.Candidates, c)
	}
	return out
}

// Accept reports whether a header-matched row passes the row filter.
func Accept(sku, description string, price any) bool {
	return strictFilter(Candidate{Name: strings.TrimSpace(sku), Description: strings.TrimSpace(description)}, price) == ""
}

// strictFilter rejects banners and stubs. An all upper-case description is
// taken as a category banner; genuine all-caps product names are lost too.
func strictFilter(c Candidate, price any) Rejection {
	if c.Name == "" || c.Description == "" || cellText(price) == "" {
		return RejectMissingField
	}
	if p, ok := pricing.ParseAmount(price); !ok || p <= 0 {
		return RejectInvalidPrice
	}
	upper := strings.ToUpper(c.Description)
	if strings.Contains(upper, bannerToken) || upper == c.Description {
		return RejectCategoryBanner
	}
	if utf8.RuneCountInString(c.Description) < minDescriptionLen {
		return RejectShortDescription
	}
	if strings.Contains(strings.ToUpper(c.Name), bannerToken) || utf8.RuneCountInString(c.Name) < minSKULen {
		return RejectInvalidSKU
	}
	return ""
}

func lenientFilter(c Candidate, price any) Rejection {
	if c.Name == "" || cellText(price) == "" {
		return RejectMissingField
	}
	if p, ok := pricing.ParseAmount(price); !ok || p <= 0 {
		return RejectInvalidPrice
	}
	return ""
}
