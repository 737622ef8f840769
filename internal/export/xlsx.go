package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/centralpricelist/pricelist/internal/pricelist"
)

// SheetName is the worksheet holding the export.
const SheetName = "Products"

// XLSXHeader matches the storefront's product import template.
var XLSXHeader = []any{
	"Product ID", "Name", "Description", "Price", "Category ID", "Supplier", "SKU",
	"Stock", "Status", "Currency", "Tax Class", "Created", "Updated",
}

const (
	defaultStock    = 999
	defaultStatus   = 1
	defaultTaxClass = 1
)

// WriteXLSX streams records into a single-sheet workbook.
func WriteXLSX(w io.Writer, records []pricelist.ProductRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}
	if err := sw.SetRow("A1", XLSXHeader); err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			rec.ProductID,
			rec.Name,
			rec.Description,
			rec.Price(),
			rec.CategoryID,
			rec.Supplier,
			sku(rec),
			defaultStock,
			defaultStatus,
			rec.Currency,
			defaultTaxClass,
			formatTime(rec.CreatedAt),
			formatTime(rec.UpdatedAt),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("export: xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}
	_, err = f.WriteTo(w)
	return err
}
