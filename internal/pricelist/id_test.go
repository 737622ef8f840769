package pricelist

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var productIDPattern = regexp.MustCompile(`^PID_[0-9A-F]{12}$`)

func TestNewProductIDIsStable(t *testing.T) {
	id := NewProductID("Nology", "T21P")
	assert.Regexp(t, productIDPattern, id)
	assert.Equal(t, id, NewProductID("Nology", "T21P"))
	assert.Equal(t, id, NewProductID(" nology ", "t21p"), "supplier and key are normalized")
	assert.Equal(t, NewProductID("AV Distribution", "AT HDR"), NewProductID("AV  Distribution", "AT   HDR"))
}

func TestNewProductIDSeparatesSuppliers(t *testing.T) {
	assert.NotEqual(t, NewProductID("Nology", "T21P"), NewProductID("Platinum", "T21P"))
	assert.NotEqual(t, NewProductID("Nology", "T21P"), NewProductID("Nology", "T21"))
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"list.xlsx":      FormatXLSX,
		"LIST.XLSM":      FormatXLSX,
		"legacy.xls":     FormatXLS,
		"brochure.PDF":   FormatPDF,
		"dir/nested.pdf": FormatPDF,
	}
	for name, want := range cases {
		got, err := DetectFormat(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	for _, name := range []string{"notes.txt", "archive.zip", "noext", "data.csv"} {
		_, err := DetectFormat(name)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
}

func TestOptionsValidate(t *testing.T) {
	markup := 35.0
	ok := Options{SupplierName: "Nology", PriceType: " Retail_Incl_VAT ", Markup: &markup, Provider: "Anthropic"}
	assert.NoError(t, ok.Validate())

	assert.NoError(t, Options{SupplierName: "Nology", PriceType: "auto"}.Validate())

	assert.ErrorIs(t, Options{SupplierName: "  "}.Validate(), ErrValidation)
	assert.ErrorIs(t, Options{SupplierName: "Nology", PriceType: "wholesale"}.Validate(), ErrValidation)
	assert.ErrorIs(t, Options{SupplierName: "Nology", Provider: "gemini"}.Validate(), ErrValidation)

	negative := -1.0
	err := Options{SupplierName: "Nology", Markup: &negative}.Validate()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Markup")
}

func TestErrorListIsCapped(t *testing.T) {
	var l errorList
	for i := 0; i < MaxErrors+5; i++ {
		l.add("boom")
	}
	assert.Len(t, l, MaxErrors)
}
