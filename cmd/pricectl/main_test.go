package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/centralpricelist/pricelist/internal/pricelist"
	"github.com/centralpricelist/pricelist/jobs"
	_ "github.com/centralpricelist/pricelist/testing"
)

func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Yealink"))
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Yealink", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "Nology Dealer.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&env{})
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestParseCommandPricesLocalWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Nology Pricelist"},
		{},
		{"SKU", "DESCRIPTION", "SUGGESTED RETAIL PRICE", "DEALER PRICE"},
		{"T21P", "Yealink T21P IP Phone", "1499.00", "1148.50"},
		{"T46U", "Yealink T46U Gigabit Phone", "R 3,499.00", "R 2,650.00"},
	})

	out, err := run(t, "parse", path, "--supplier", "Nology", "--price-type", "cost_excl_vat", "--markup", "20")
	require.NoError(t, err)

	var res pricelist.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, pricelist.FormatXLSX, res.Format)
	require.Len(t, res.Records, 2)
	rec := res.Records[0]
	assert.Equal(t, pricelist.NewProductID("Nology", "T21P"), rec.ProductID)
	assert.Equal(t, "Nology Dealer.xlsx", rec.SourceFile)
	assert.Equal(t, 1148.50, rec.Prices.CostExclVAT)
	assert.Equal(t, 20.0, rec.Prices.MarkupPercentage)
}

func TestParseCommandErrors(t *testing.T) {
	_, err := run(t, "parse", filepath.Join(t.TempDir(), "missing.xlsx"), "--supplier", "Nology")
	assert.Error(t, err)

	path := writeWorkbook(t, [][]any{{"SKU", "DESCRIPTION", "PRICE"}})
	_, err = run(t, "parse", path)
	assert.ErrorContains(t, err, "supplier")

	_, err = run(t, "parse", path, "--supplier", "Nology", "--price-type", "wholesale")
	assert.ErrorIs(t, err, pricelist.ErrValidation)
}

func TestWriteQueueTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeQueueTable(&buf, []jobs.QueueStats{
		{Queue: jobs.QueueUploads, Pending: 2, Retry: 1},
		{Queue: jobs.QueueDefault},
	}))
	assert.Equal(t, ""+
		"QUEUE    PENDING  ACTIVE  SCHEDULED  RETRY  ARCHIVED\n"+
		"uploads  2        0       0          1      0\n"+
		"default  0        0       0          0      0\n", buf.String())
}

func TestHashPasswordCommand(t *testing.T) {
	var stdout bytes.Buffer
	root := newRootCmd(&env{})
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader("correct horse battery\n"))
	root.SetArgs([]string{"hash-password"})
	require.NoError(t, root.Execute())

	hash := strings.TrimSpace(stdout.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")))

	root = newRootCmd(&env{})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader("short"))
	root.SetArgs([]string{"hash-password"})
	assert.Error(t, root.Execute())
}
