package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/centralpricelist/pricelist/internal/pricelist"
)

// Envelope is the JSON export document.
type Envelope struct {
	Success      bool                      `json:"success"`
	ExportDate   time.Time                 `json:"exportDate"`
	ProductCount int                       `json:"productCount"`
	Products     []pricelist.ProductRecord `json:"products"`
}

// WriteJSON encodes records inside an Envelope.
func WriteJSON(w io.Writer, records []pricelist.ProductRecord, now time.Time) error {
	if records == nil {
		records = []pricelist.ProductRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Envelope{
		Success:      true,
		ExportDate:   now.UTC(),
		ProductCount: len(records),
		Products:     records,
	})
}
