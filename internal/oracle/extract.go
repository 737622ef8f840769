package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/centralpricelist/pricelist/internal/pricing"
)

// DefaultMaxTextRunes caps the document text sent in one prompt.
const DefaultMaxTextRunes = 60000

// Amount accepts either a JSON number or a price string such as "R 1,299.00".
// Unparseable values decode to zero and fail validation later.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f, _ := pricing.ParseAmount(v)
	*a = Amount(f)
	return nil
}

// CandidateRow is one product read from a PDF by the oracle.
type CandidateRow struct {
	Name        string `json:"name"`
	Price       Amount `json:"price"`
	Description string `json:"description"`
	ModelNumber string `json:"model_number"`
	Category    string `json:"category"`
}

// Valid reports whether the row has a name and a positive price.
func (r CandidateRow) Valid() bool {
	return strings.TrimSpace(r.Name) != "" && r.Price > 0
}

// ExtractHints give the model the uploader's context.
type ExtractHints struct {
	SupplierName string
	PriceType    pricing.PriceType
	SourceFile   string
}

// TextExtractor turns PDF text into candidate rows.
type TextExtractor struct {
	completer    Completer
	maxTextRunes int
}

// NewTextExtractor builds an extractor on top of c.
func NewTextExtractor(c Completer) *TextExtractor {
	return &TextExtractor{completer: c, maxTextRunes: DefaultMaxTextRunes}
}

// Extract asks the oracle for products. Any provider or parse failure is
// returned; a document cannot be partially recovered.
func (e *TextExtractor) Extract(ctx context.Context, text string, hints ExtractHints) ([]CandidateRow, error) {
	answer, err := e.completer.Complete(ctx, e.prompt(text, hints))
	if err != nil {
		return nil, fmt.Errorf("oracle: extract: %w", err)
	}
	raw, err := ParseJSONArray(answer)
	if err != nil {
		return nil, fmt.Errorf("oracle: extract: %w", err)
	}
	var rows []CandidateRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("oracle: extract: decode rows: %w", err)
	}
	return rows, nil
}

func (e *TextExtractor) prompt(text string, hints ExtractHints) string {
	priceType := string(hints.PriceType)
	if priceType == "" {
		priceType = "auto-detect"
	}
	if e.maxTextRunes > 0 && utf8.RuneCountInString(text) > e.maxTextRunes {
		text = string([]rune(text)[:e.maxTextRunes])
	}

	var b strings.Builder
	b.WriteString("Extract product information from this pricelist text. Return a JSON array of products with the following structure:\n")
	b.WriteString(`{"name": "product name", "price": number, "description": "product description", "model_number": "model/SKU if available", "category": "product category"}`)
	b.WriteString("\n\nPricing context:\n")
	fmt.Fprintf(&b, "- Supplier: %s\n", hints.SupplierName)
	fmt.Fprintf(&b, "- Price type: %s\n", priceType)
	if hints.SourceFile != "" {
		fmt.Fprintf(&b, "- File: %s\n", hints.SourceFile)
	}
	b.WriteString("- Currency: look for ZAR, R, USD, $ or other indicators\n\n")
	b.WriteString("Text to analyze:\n")
	b.WriteString(text)
	return b.String()
}
