// Package pricelist turns supplier workbooks and PDFs into priced catalog
// records and persists them to the central pricelist.
package pricelist

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/centralpricelist/pricelist/internal/pricing"
)

// Currency is the only currency the catalog carries.
const Currency = "ZAR"

const (
	// MaxErrors bounds the error messages kept in a Summary.
	MaxErrors = 10
	// PreviewSize is the number of saved records echoed back to the uploader.
	PreviewSize = 5
	// maxNameRunes bounds the "<SKU> - <description>" product name.
	maxNameRunes = 100
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file is empty")
	ErrFileTooLarge      = errors.New("file exceeds upload limit")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrNoProducts        = errors.New("no products found")
	ErrUnreadable        = errors.New("document could not be read")
)

// Format is a supported document type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatPDF  Format = "pdf"
)

// DetectFormat maps a filename extension to a Format.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "xlsx", "xlsm":
		return FormatXLSX, nil
	case "xls":
		return FormatXLS, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", ErrUnsupportedFormat
}

// ProductRecord is one priced catalog entry. It is built once per accepted
// row and not modified afterwards.
type ProductRecord struct {
	ProductID       string              `json:"product_id"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	ModelNumber     string              `json:"model_number,omitempty"`
	CategoryID      int                 `json:"category_id"`
	Supplier        string              `json:"supplier"`
	SourceFile      string              `json:"source_file"`
	SourceSheet     string              `json:"source_sheet,omitempty"`
	Prices          pricing.PriceVector `json:"prices"`
	Currency        string              `json:"currency"`
	Confidence      float64             `json:"ai_confidence"`
	ProcessingNotes string              `json:"processing_notes,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Price is the storefront selling price.
func (r ProductRecord) Price() float64 {
	return r.Prices.RetailInclVAT
}

// Options are the uploader's choices for one document.
type Options struct {
	SupplierName string   `json:"supplier_name" validate:"required,max=100"`
	PriceType    string   `json:"price_type" validate:"omitempty,oneof=retail_incl_vat retail_excl_vat cost_incl_vat cost_excl_vat auto"`
	Markup       *float64 `json:"markup_percentage,omitempty" validate:"omitempty,gte=0,lte=1000"`
	Provider     string   `json:"ai_provider" validate:"omitempty,oneof=openai anthropic"`
	SourceFile   string   `json:"source_file" validate:"max=200"`
}

// Document is an uploaded file.
type Document struct {
	Filename string
	Data     []byte
}

// Stats counts the rows seen while parsing.
type Stats struct {
	Sheets        int            `json:"sheets"`
	SheetsSkipped int            `json:"sheets_skipped"`
	RowsFound     int            `json:"rows_found"`
	RowsAccepted  int            `json:"rows_accepted"`
	RowsRejected  int            `json:"rows_rejected"`
	OracleRows    int            `json:"oracle_rows"`
	Rejections    map[string]int `json:"rejections,omitempty"`
}

// Result is a parsed document before persistence.
type Result struct {
	Format    Format            `json:"format"`
	PriceType pricing.PriceType `json:"price_type"`
	Records   []ProductRecord   `json:"records"`
	Stats     Stats             `json:"stats"`
	Errors    []string          `json:"errors,omitempty"`
}

// Summary is what the uploader sees after a document was imported.
type Summary struct {
	Success          bool            `json:"success"`
	Filename         string          `json:"filename"`
	Format           Format          `json:"file_type"`
	Supplier         string          `json:"supplier"`
	TotalFound       int             `json:"total_found"`
	SavedCount       int             `json:"saved_count"`
	FailedCount      int             `json:"failed_count"`
	RejectedCount    int             `json:"rejected_count"`
	AIEnhancements   int             `json:"ai_enhancements_applied"`
	PriceType        string          `json:"price_type"`
	Markup           *float64        `json:"markup_percentage,omitempty"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	Preview          []ProductRecord `json:"products"`
	Errors           []string        `json:"errors,omitempty"`
}

// errorList keeps at most MaxErrors messages.
type errorList []string

func (l *errorList) add(msg string) {
	if len(*l) < MaxErrors {
		*l = append(*l, msg)
	}
}
