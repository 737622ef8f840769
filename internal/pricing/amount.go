package pricing

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// currencyReplacer strips the currency markers seen in South African supplier
// lists together with thousands separators.
var currencyReplacer = strings.NewReplacer(
	"ZAR", "",
	"R", "",
	"$", "",
	"€", "",
	"£", "",
	",", "",
)

// ParseAmount converts a cell value into a price. Numbers pass through; text
// is stripped of currency symbols, thousands separators and whitespace and
// whatever remains must parse as a float. It never fails loudly: ok is false
// for anything that is not a finite number.
func ParseAmount(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		return parseAmountText(v)
	case []byte:
		return parseAmountText(string(v))
	}
	return 0, false
}

func parseAmountText(text string) (float64, bool) {
	cleaned := currencyReplacer.Replace(strings.ToUpper(text))
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
