package sheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// ErrLegacyWorkbook is returned when a BIFF file has no workbook stream.
var ErrLegacyWorkbook = errors.New("not a legacy excel workbook")

// legacyRow is the part of an xls row the reader needs.
type legacyRow interface {
	FirstCol() int
	LastCol() int
	Col(i int) string
}

// ReadLegacyWorkbook decodes a BIFF (.xls) workbook. The decoder panics on
// some malformed files; those come back as errors.
func ReadLegacyWorkbook(r io.ReadSeeker) (wb Workbook, err error) {
	defer func() {
		if p := recover(); p != nil {
			wb, err = Workbook{}, fmt.Errorf("sheet: open legacy workbook: %w: %v", ErrLegacyWorkbook, p)
		}
	}()

	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return Workbook{}, fmt.Errorf("sheet: open legacy workbook: %w", err)
	}
	if book == nil {
		return Workbook{}, ErrLegacyWorkbook
	}
	if book.NumSheets() == 0 {
		return Workbook{}, ErrNoSheets
	}

	wb = Workbook{Sheets: make([]Sheet, 0, book.NumSheets())}
	for i := 0; i < book.NumSheets(); i++ {
		ws := book.GetSheet(i)
		if ws == nil {
			continue
		}
		rows := make([]RawRow, 0, int(ws.MaxRow)+1)
		for n := 0; n <= int(ws.MaxRow); n++ {
			rows = append(rows, legacyCells(worksheetRow(ws, n)))
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: ws.Name, Rows: trimTrailingBlank(rows)})
	}
	return wb, nil
}

// worksheetRow returns nil for rows the file does not store.
func worksheetRow(ws *xls.WorkSheet, n int) (row legacyRow) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(n)
}

func legacyCells(row legacyRow) RawRow {
	if row == nil {
		return RawRow{}
	}
	last := row.LastCol()
	if last <= 0 {
		return RawRow{}
	}
	cells := make(RawRow, last)
	width := 0
	for c := max(row.FirstCol(), 0); c < last; c++ {
		if v := row.Col(c); v != "" {
			cells[c] = v
			width = c + 1
		}
	}
	return cells[:width]
}

func trimTrailingBlank(rows []RawRow) []RawRow {
	end := len(rows)
	for end > 0 && len(rows[end-1]) == 0 {
		end--
	}
	return rows[:end]
}
