// Package sheet locates the header and data rows of supplier pricelist
// worksheets and turns accepted rows into price candidates.
package sheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/centralpricelist/pricelist/internal/pricing"
)

// RawRow is one worksheet row as decoded by the reader. Rows are ragged and
// empty cells are nil.
type RawRow []any

// Sheet is a named worksheet.
type Sheet struct {
	Name string
	Rows []RawRow
}

// Workbook is an ordered list of worksheets.
type Workbook struct {
	Sheets []Sheet
}

// Source records how a Structure was obtained.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceAnalyzer  Source = "analyzer"
	SourceFallback  Source = "fallback"
)

// NoColumn marks an absent optional column.
const NoColumn = -1

// FallbackConfidence is attached to the column 0/1/2 guess.
const FallbackConfidence = 0.60

// HeuristicConfidence is attached to header-token matches.
const HeuristicConfidence = 0.90

// Columns maps roles to zero-based column indices. Name holds the SKU for
// header-matched sheets and the product name otherwise.
type Columns struct {
	Name        int `json:"name"`
	Description int `json:"description"`
	Price       int `json:"price"`
	Category    int `json:"category"`
}

// Structure describes where the data of one sheet lives. When IsValid is
// false no other field is meaningful.
type Structure struct {
	IsValid           bool              `json:"is_valid"`
	HeaderRowIndex    int               `json:"header_row_index"`
	DataStartRow      int               `json:"data_start_row"`
	Columns           Columns           `json:"columns"`
	DetectedPriceType pricing.PriceType `json:"detected_price_type,omitempty"`
	SupplierGuess     string            `json:"supplier_guess,omitempty"`
	Confidence        float64           `json:"confidence"`
	Source            Source            `json:"source"`
	Reason            string            `json:"reason,omitempty"`
}

// ErrInvalidStructure is returned by Check.
var ErrInvalidStructure = errors.New("invalid sheet structure")

// Invalid builds a rejected structure carrying a reason for logs.
func Invalid(reason string) Structure {
	return Structure{Reason: reason, HeaderRowIndex: NoColumn, DataStartRow: NoColumn,
		Columns: Columns{NoColumn, NoColumn, NoColumn, NoColumn}}
}

// Fallback assumes name, price and description in the first three columns
// under a single header row.
func Fallback() Structure {
	return Structure{
		IsValid:           true,
		HeaderRowIndex:    0,
		DataStartRow:      1,
		Columns:           Columns{Name: 0, Price: 1, Description: 2, Category: NoColumn},
		DetectedPriceType: pricing.DefaultPriceType,
		Confidence:        FallbackConfidence,
		Source:            SourceFallback,
		Reason:            "fallback structure used",
	}
}

// Check verifies that a valid structure fits rows: the header row exists,
// name and price are set, present columns are distinct and within the
// header row's bounds.
func (s Structure) Check(rows []RawRow) error {
	if !s.IsValid {
		return fmt.Errorf("%w: %s", ErrInvalidStructure, s.Reason)
	}
	if s.HeaderRowIndex < 0 || s.HeaderRowIndex >= len(rows) {
		return fmt.Errorf("%w: header row %d out of range", ErrInvalidStructure, s.HeaderRowIndex)
	}
	if s.DataStartRow <= s.HeaderRowIndex {
		return fmt.Errorf("%w: data start %d not after header %d", ErrInvalidStructure, s.DataStartRow, s.HeaderRowIndex)
	}
	if s.Columns.Name < 0 || s.Columns.Price < 0 {
		return fmt.Errorf("%w: name and price columns are required", ErrInvalidStructure)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidStructure, s.Confidence)
	}

	width := len(rows[s.HeaderRowIndex])
	seen := make(map[int]struct{}, 4)
	for _, idx := range []int{s.Columns.Name, s.Columns.Description, s.Columns.Price, s.Columns.Category} {
		if idx == NoColumn {
			continue
		}
		if idx < 0 || idx >= width {
			return fmt.Errorf("%w: column %d outside header width %d", ErrInvalidStructure, idx, width)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("%w: column %d assigned twice", ErrInvalidStructure, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// cellText renders a cell as trimmed text. Nil yields "".
func cellText(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case []byte:
		return strings.TrimSpace(string(c))
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	case bool:
		return strconv.FormatBool(c)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Cell returns the text at idx or "" when the row is too short.
func (r RawRow) Cell(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return cellText(r[idx])
}

func (r RawRow) value(idx int) any {
	if idx < 0 || idx >= len(r) {
		return nil
	}
	return r[idx]
}

// Blank reports whether every cell is empty.
func (r RawRow) Blank() bool {
	for _, c := range r {
		if cellText(c) != "" {
			return false
		}
	}
	return true
}
