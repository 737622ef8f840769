package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAppliesRowFilter(t *testing.T) {
	rows := nologyRows()
	rows = append(rows,
		RawRow{nil, nil, nil},
		RawRow{"CATEGORY", "Networking gear", "10", "5"},
		RawRow{"X", "Single char sku", "10", "5"},
		RawRow{"POE1", "PoE injector 24V", "150", "POA"},
		RawRow{"POE2", "PoE injector 48V", "150", "0"},
		RawRow{"ATH1", "Studio category pack", "10", "5"},
	)
	s := Resolve(rows, "Yealink")
	require.True(t, s.IsValid)

	ex := Extract(rows, s)
	require.Len(t, ex.Candidates, 1)
	c := ex.Candidates[0]
	assert.Equal(t, "T21P", c.Name)
	assert.Equal(t, "Yealink T21P IP Phone", c.Description)
	assert.Equal(t, 1148.50, c.Price)
	assert.Equal(t, 4, c.Row)

	assert.Equal(t, 1, ex.Rejected[RejectMissingField], "CATEGORY banner row without price")
	assert.Equal(t, 2, ex.Rejected[RejectCategoryBanner], "NETWORKING EQUIPMENT and the category pack")
	assert.Equal(t, 1, ex.Rejected[RejectShortDescription])
	assert.Equal(t, 2, ex.Rejected[RejectInvalidSKU], "CATEGORY sku and single-char sku")
	assert.Equal(t, 2, ex.Rejected[RejectInvalidPrice])
	assert.Equal(t, 8, ex.RejectedCount())
}

func TestAcceptBannerAndLengthRules(t *testing.T) {
	assert.False(t, Accept("RB750", "NETWORKING EQUIPMENT", 100.0), "all caps wins over length")
	assert.False(t, Accept("MC1", "Mic", 100.0), "short description")
	assert.False(t, Accept("CATEGORY", "NETWORKING", nil))
	assert.False(t, Accept("CATEGORY", "Networking gear", 100.0))
	assert.False(t, Accept("A1", "Rack mount kit", -1.0))
	assert.True(t, Accept("A1", "Rack mount kit", "R 1,200.00"))
	// Known false positive: an all-caps product name reads as a banner.
	assert.False(t, Accept("HUB1", "USB-C HUB", 350.0))
}

func TestExtractFallbackIsLenient(t *testing.T) {
	rows := []RawRow{
		{"Name", "Price", "Description"},
		{"HDMI CABLE 2M", "R 89.90", nil},
		{"Mic", "150", "x"},
		{"", "10", "missing name"},
		{"Free sample", "0", ""},
	}
	ex := Extract(rows, Fallback())
	require.Len(t, ex.Candidates, 2)
	assert.Equal(t, "HDMI CABLE 2M", ex.Candidates[0].Name)
	assert.Equal(t, 89.90, ex.Candidates[0].Price)
	assert.Equal(t, "Mic", ex.Candidates[1].Name)
	assert.Equal(t, 1, ex.Rejected[RejectMissingField])
	assert.Equal(t, 1, ex.Rejected[RejectInvalidPrice])
}

func TestExtractInvalidStructureYieldsNothing(t *testing.T) {
	ex := Extract(nologyRows(), Invalid("no header row found"))
	assert.Empty(t, ex.Candidates)
	assert.Zero(t, ex.RejectedCount())
}

func TestExtractReadsCategoryColumn(t *testing.T) {
	rows := []RawRow{
		{"Name", "Price", "Description", "Group"},
		{"Yealink T33G", "1200", "Colour IP phone", "Phones"},
	}
	s := Fallback()
	s.Columns.Category = 3
	ex := Extract(rows, s)
	require.Len(t, ex.Candidates, 1)
	assert.Equal(t, "Phones", ex.Candidates[0].Category)
}
