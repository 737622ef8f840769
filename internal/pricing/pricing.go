// Package pricing derives the four canonical price variants (cost/retail,
// excluding/including VAT) from a single observed supplier price.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// VATRate is the South African value-added tax rate. It is not configurable.
const VATRate = 0.15

// DefaultMarkup is applied when neither the user nor the estimate supplies one.
const DefaultMarkup = 30.0

// PriceType declares which canonical quantity an observed price represents.
type PriceType string

const (
	RetailInclVAT PriceType = "retail_incl_vat"
	RetailExclVAT PriceType = "retail_excl_vat"
	CostInclVAT   PriceType = "cost_incl_vat"
	CostExclVAT   PriceType = "cost_excl_vat"
)

// DefaultPriceType is used by callers when no type was declared or detected.
const DefaultPriceType = RetailExclVAT

var (
	// ErrUnknownPriceType is returned for any tag outside the four variants.
	ErrUnknownPriceType = errors.New("unknown price type")
	// ErrInvalidPrice is returned for non-positive observed prices.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrInvalidMarkup is returned for negative markups.
	ErrInvalidMarkup = errors.New("markup percentage must not be negative")
)

// PriceTypes lists every supported tag in display order.
func PriceTypes() []PriceType {
	return []PriceType{RetailInclVAT, RetailExclVAT, CostInclVAT, CostExclVAT}
}

// Valid reports whether t is one of the four supported tags.
func (t PriceType) Valid() bool {
	switch t {
	case RetailInclVAT, RetailExclVAT, CostInclVAT, CostExclVAT:
		return true
	}
	return false
}

// ParsePriceType converts user or oracle input into a PriceType. Blank input
// returns an empty type and no error so callers can request auto-detection.
func ParsePriceType(raw string) (PriceType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" || value == "auto" {
		return "", nil
	}
	t := PriceType(value)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPriceType, raw)
	}
	return t, nil
}

// Resolve picks the first non-empty tag from the override, the detected type
// and finally DefaultPriceType.
func Resolve(override, detected PriceType) PriceType {
	if override != "" {
		return override
	}
	if detected != "" {
		return detected
	}
	return DefaultPriceType
}

// PriceVector holds the four canonical monetary quantities.
type PriceVector struct {
	CostExclVAT       float64   `json:"cost_excl_vat"`
	CostInclVAT       float64   `json:"cost_incl_vat"`
	RetailExclVAT     float64   `json:"retail_excl_vat"`
	RetailInclVAT     float64   `json:"retail_incl_vat"`
	MarkupPercentage  float64   `json:"markup_percentage"`
	DetectedPriceType PriceType `json:"detected_price_type"`
}

// Normalize expands one observed price into the full price vector. Every
// derivation works on unrounded intermediates; rounding to cents happens last.
func Normalize(price float64, priceType PriceType, markup float64) (PriceVector, error) {
	if price <= 0 {
		return PriceVector{}, ErrInvalidPrice
	}
	if markup < 0 {
		return PriceVector{}, ErrInvalidMarkup
	}

	vat := 1 + VATRate
	factor := 1 + markup/100

	var v PriceVector
	switch priceType {
	case RetailInclVAT:
		v.RetailInclVAT = price
		v.RetailExclVAT = price / vat
		v.CostInclVAT = price / factor
		v.CostExclVAT = v.CostInclVAT / vat
	case RetailExclVAT:
		v.RetailExclVAT = price
		v.RetailInclVAT = price * vat
		v.CostExclVAT = price / factor
		v.CostInclVAT = v.CostExclVAT * vat
	case CostExclVAT:
		v.CostExclVAT = price
		v.CostInclVAT = price * vat
		v.RetailExclVAT = v.CostExclVAT * factor
		v.RetailInclVAT = v.RetailExclVAT * vat
	case CostInclVAT:
		v.CostInclVAT = price
		v.CostExclVAT = price / vat
		v.RetailInclVAT = price * factor
		v.RetailExclVAT = v.RetailInclVAT / vat
	default:
		return PriceVector{}, fmt.Errorf("%w: %q", ErrUnknownPriceType, string(priceType))
	}

	v.CostExclVAT = Round2(v.CostExclVAT)
	v.CostInclVAT = Round2(v.CostInclVAT)
	v.RetailExclVAT = Round2(v.RetailExclVAT)
	v.RetailInclVAT = Round2(v.RetailInclVAT)
	v.MarkupPercentage = Round2(markup)
	v.DetectedPriceType = priceType
	return v, nil
}

// Observed returns the component of v that corresponds to t.
func (v PriceVector) Observed(t PriceType) float64 {
	switch t {
	case RetailInclVAT:
		return v.RetailInclVAT
	case RetailExclVAT:
		return v.RetailExclVAT
	case CostInclVAT:
		return v.CostInclVAT
	case CostExclVAT:
		return v.CostExclVAT
	}
	return 0
}

// Round2 rounds half away from zero to two decimal places.
func Round2(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}
