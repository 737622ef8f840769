package pricing

import "strings"

// EstimateMarkup guesses a markup percentage from the product name and the
// supplier label when the uploader did not provide one. High-end AV lines carry
// thinner margins than audio accessories.
func EstimateMarkup(productName, supplier string) float64 {
	name := strings.ToLower(productName)
	sup := strings.ToLower(supplier)

	if strings.Contains(name, "atlona") || strings.Contains(name, "professional") || strings.Contains(sup, "av distribution") {
		return 25
	}
	if strings.Contains(name, "audio") || strings.Contains(name, "technica") || strings.Contains(sup, "platinum") {
		return 28
	}
	return DefaultMarkup
}

// ResolveMarkup returns the override when present, otherwise the estimate.
func ResolveMarkup(override *float64, productName, supplier string) float64 {
	if override != nil {
		return *override
	}
	return EstimateMarkup(productName, supplier)
}
