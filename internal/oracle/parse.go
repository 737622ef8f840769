package oracle

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoJSONArray is returned when a response holds no complete JSON array.
	ErrNoJSONArray = errors.New("response contains no JSON array")
	// ErrNoJSONObject is returned when a response holds no complete JSON object.
	ErrNoJSONObject = errors.New("response contains no JSON object")
)

// ParseJSONArray locates the first syntactically complete JSON array in text.
// Models wrap answers in prose or code fences; both are ignored.
func ParseJSONArray(text string) (json.RawMessage, error) {
	if raw, ok := firstJSON(text, '['); ok {
		return raw, nil
	}
	return nil, ErrNoJSONArray
}

// ParseJSONObject locates the first syntactically complete JSON object in text.
func ParseJSONObject(text string) (json.RawMessage, error) {
	if raw, ok := firstJSON(text, '{'); ok {
		return raw, nil
	}
	return nil, ErrNoJSONObject
}

func firstJSON(text string, open byte) (json.RawMessage, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err == nil {
			return raw, true
		}
	}
	return nil, false
}
