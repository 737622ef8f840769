package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetName("Sheet1", "Yealink"))
	rows := [][]any{
		{"SKU", "DESCRIPTION", "DEALER PRICE"},
		{"0071", "Yealink T21P IP Phone", 1148.5},
		{nil, nil, nil},
		{"T33G", "Colour IP phone", "R 1,299.00"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Yealink", cell, &row))
	}
	_, err := f.NewSheet("Promotions")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Promotions", "A1", "SKU"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadWorkbook(t *testing.T) {
	wb, err := ReadWorkbook(buildWorkbook(t))
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)

	y := wb.Sheets[0]
	assert.Equal(t, "Yealink", y.Name)
	require.Len(t, y.Rows, 4)
	assert.Equal(t, "0071", y.Rows[1].Cell(0), "leading zeros are kept")
	assert.Equal(t, "1148.5", y.Rows[1].Cell(2))
	assert.True(t, y.Rows[2].Blank())
	assert.Equal(t, "Promotions", wb.Sheets[1].Name)
}

func TestReadWorkbookRejectsGarbage(t *testing.T) {
	_, err := ReadWorkbook(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
}
