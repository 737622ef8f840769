// Package classify maps free text to a supplier label and a catalog category.
package classify

import (
	"regexp"
	"strings"
)

// UnknownSupplier is returned when neither the hint nor any pattern matches.
const UnknownSupplier = "Unknown Supplier"

// Category identifiers in the storefront catalog.
const (
	CategoryCommunications = 1
	CategoryAudioVideo     = 2
	CategoryAudio          = 3
)

// DefaultCategory receives anything no group matches.
// Misclassified products silently land here; there is no uncategorized bucket.
const DefaultCategory = CategoryCommunications

type supplierPattern struct {
	needle   string
	supplier string
}

// supplierPatterns is ordered; the first match wins. Brand names map to the
// distributor that carries them.
var supplierPatterns = []supplierPattern{
	{"nology", "Nology"},
	{"av distribution", "AV Distribution"},
	{"av-distribution", "AV Distribution"},
	{"avdistribution", "AV Distribution"},
	{"platinum", "Platinum"},
	{"yealink", "Nology"},
	{"atlona", "AV Distribution"},
	{"audio technica", "Platinum"},
	{"audiotechnica", "Platinum"},
}

type categoryGroup struct {
	id      int
	pattern *regexp.Regexp
}

// categoryGroups is ordered. The bare "av" alternative also matches words such
// as "available"; that false positive is known and kept.
var categoryGroups = []categoryGroup{
	{CategoryCommunications, regexp.MustCompile(`(?i)yealink|phone|headset|communication|voip|pbx`)},
	{CategoryAudioVideo, regexp.MustCompile(`(?i)hdmi|transmitter|video|av|atlona|broadcast|streaming`)},
	{CategoryAudio, regexp.MustCompile(`(?i)audio.*technica|headphone|speaker|monitor|microphone|platinum`)},
}

// Supplier resolves the supplier label. A hint that is neither blank nor
// "unknown" wins outright; otherwise the pattern table is tested against the
// lower-cased filename, sheet name and product name.
func Supplier(filename, sheetName, productName, hint string) string {
	if h := strings.TrimSpace(hint); h != "" && !strings.EqualFold(h, "unknown") && h != UnknownSupplier {
		return h
	}

	text := strings.ToLower(filename + " " + sheetName + " " + productName)
	for _, p := range supplierPatterns {
		if strings.Contains(text, p.needle) {
			return p.supplier
		}
	}
	return UnknownSupplier
}

// Category returns the catalog category id for a product.
func Category(name, description, supplier string) int {
	text := strings.ToLower(name + " " + description + " " + supplier)
	for _, g := range categoryGroups {
		if g.pattern.MatchString(text) {
			return g.id
		}
	}
	return DefaultCategory
}

// CategoryName returns a display label for id.
func CategoryName(id int) string {
	switch id {
	case CategoryCommunications:
		return "Communications"
	case CategoryAudioVideo:
		return "Audio/Video"
	case CategoryAudio:
		return "Audio Equipment"
	}
	return ""
}
