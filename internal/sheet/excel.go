package sheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheets is returned for workbooks without any worksheet.
var ErrNoSheets = errors.New("workbook has no sheets")

// ReadWorkbook decodes an xlsx-family workbook. Cells keep their raw text so
// SKUs with leading zeros survive; empty cells become nil.
func ReadWorkbook(r io.Reader) (Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Workbook{}, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return Workbook{}, ErrNoSheets
	}

	wb := Workbook{Sheets: make([]Sheet, 0, len(names))}
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return Workbook{}, fmt.Errorf("sheet: read %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: toRawRows(rows)})
	}
	return wb, nil
}

func toRawRows(rows [][]string) []RawRow {
	out := make([]RawRow, len(rows))
	for i, row := range rows {
		raw := make(RawRow, len(row))
		for j, cell := range row {
			if cell != "" {
				raw[j] = cell
			}
		}
		out[i] = raw
	}
	return out
}
