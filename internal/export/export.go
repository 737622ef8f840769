// Package export renders stored pricelist records for catalog import.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/centralpricelist/pricelist/internal/pricelist"
)

// Format is an export file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for anything but xlsx, csv and json.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat reads a format query value. Blank means xlsx.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
}

// ContentType is the response media type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// Filename names the attachment, e.g. pricelist-export-1710408600000.xlsx.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("pricelist-export-%d.%s", now.UnixMilli(), f)
}

// Write renders records in format f.
func Write(w io.Writer, f Format, records []pricelist.ProductRecord, now time.Time) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records, now)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// sku is the model number when the supplier published one.
func sku(rec pricelist.ProductRecord) string {
	if rec.ModelNumber != "" {
		return rec.ModelNumber
	}
	return rec.ProductID
}
