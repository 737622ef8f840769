package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/centralpricelist/pricelist/internal/pricing"
	"github.com/centralpricelist/pricelist/internal/sheet"
)

const (
	sampleRows  = 15
	sampleCells = 10
)

// StructureAnalyzer asks the oracle where the data of a sheet lives. It is
// used only for sheets the header heuristic could not understand.
type StructureAnalyzer struct {
	completer Completer
	logger    *slog.Logger
}

// NewStructureAnalyzer builds an analyzer on top of c.
func NewStructureAnalyzer(c Completer, logger *slog.Logger) *StructureAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StructureAnalyzer{completer: c, logger: logger}
}

type columnAnswer struct {
	Name        *int `json:"name"`
	Price       *int `json:"price"`
	Description *int `json:"description"`
	Category    *int `json:"category"`
}

type structureAnswer struct {
	IsValid           bool          `json:"isValid"`
	HeaderRowIndex    int           `json:"headerRowIndex"`
	DataStartRow      int           `json:"dataStartRow"`
	Columns           *columnAnswer `json:"columns"`
	DetectedPriceType string        `json:"detectedPriceType"`
	SupplierName      string        `json:"supplierName"`
	Confidence        float64       `json:"confidence"`
	Reasoning         string        `json:"reasoning"`
}

// Analyze never fails. Provider errors, unparseable answers and structures
// that do not fit the rows all yield sheet.Fallback.
func (a *StructureAnalyzer) Analyze(ctx context.Context, rows []sheet.RawRow, sheetName string) sheet.Structure {
	answer, err := a.completer.Complete(ctx, samplePrompt(rows, sheetName))
	if err != nil {
		a.logger.Warn("sheet analysis failed, using fallback structure",
			slog.String("sheet", sheetName), slog.Any("error", err))
		return sheet.Fallback()
	}

	s, err := decodeStructure(answer)
	if err != nil {
		a.logger.Warn("sheet analysis unusable, using fallback structure",
			slog.String("sheet", sheetName), slog.Any("error", err))
		return sheet.Fallback()
	}
	if err := s.Check(rows); err != nil {
		a.logger.Warn("sheet analysis does not fit rows, using fallback structure",
			slog.String("sheet", sheetName), slog.Any("error", err))
		return sheet.Fallback()
	}
	return s
}

func decodeStructure(answer string) (sheet.Structure, error) {
	raw, err := ParseJSONObject(answer)
	if err != nil {
		return sheet.Structure{}, err
	}
	var ans structureAnswer
	if err := json.Unmarshal(raw, &ans); err != nil {
		return sheet.Structure{}, fmt.Errorf("decode structure: %w", err)
	}
	if !ans.IsValid || ans.Columns == nil || ans.Columns.Name == nil || ans.Columns.Price == nil {
		return sheet.Structure{}, fmt.Errorf("%w: %s", sheet.ErrInvalidStructure, ans.Reasoning)
	}

	priceType, err := pricing.ParsePriceType(ans.DetectedPriceType)
	if err != nil {
		priceType = ""
	}
	dataStart := ans.DataStartRow
	if dataStart <= ans.HeaderRowIndex {
		dataStart = ans.HeaderRowIndex + 1
	}
	supplier := strings.TrimSpace(ans.SupplierName)
	if strings.EqualFold(supplier, "unknown") || supplier == "detected_supplier" {
		supplier = ""
	}

	return sheet.Structure{
		IsValid:        true,
		HeaderRowIndex: ans.HeaderRowIndex,
		DataStartRow:   dataStart,
		Columns: sheet.Columns{
			Name:        *ans.Columns.Name,
			Price:       *ans.Columns.Price,
			Description: optionalColumn(ans.Columns.Description),
			Category:    optionalColumn(ans.Columns.Category),
		},
		DetectedPriceType: priceType,
		SupplierGuess:     supplier,
		Confidence:        min(max(ans.Confidence, 0), 1),
		Source:            sheet.SourceAnalyzer,
		Reason:            ans.Reasoning,
	}, nil
}

func optionalColumn(idx *int) int {
	if idx == nil || *idx < 0 {
		return sheet.NoColumn
	}
	return *idx
}

func samplePrompt(rows []sheet.RawRow, sheetName string) string {
	var b strings.Builder
	b.WriteString("Analyze this Excel sheet data and identify the structure for a pricelist:\n\n")
	fmt.Fprintf(&b, "Sheet Name: %s\nSample Data:\n", sheetName)
	for i, row := range rows[:min(sampleRows, len(rows))] {
		cells := make([]string, 0, sampleCells)
		for j := 0; j < min(sampleCells, len(row)); j++ {
			cells = append(cells, row.Cell(j))
		}
		fmt.Fprintf(&b, "Row %d: %s\n", i, strings.Join(cells, " | "))
	}
	b.WriteString(`
Identify:
1. Header row index (which row contains column headers)
2. Zero-based column indices for: name, price, description, category
3. Price type: retail_incl_vat, retail_excl_vat, cost_excl_vat, or cost_incl_vat
4. Supplier name from sheet name or content

Return ONLY valid JSON:
{"isValid": true, "headerRowIndex": 0, "columns": {"name": 0, "price": 1, "description": 2, "category": 3}, "detectedPriceType": "retail_excl_vat", "supplierName": "detected_supplier", "confidence": 0.95, "dataStartRow": 1, "reasoning": "Brief explanation"}`)
	return b.String()
}
