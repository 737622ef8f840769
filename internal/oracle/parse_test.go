package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONArray(t *testing.T) {
	text := "Here are the products:\n```json\n[{\"name\": \"T21P\", \"price\": 1148.5}]\n```\nLet me know [if] you need more."
	raw, err := ParseJSONArray(text)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"T21P","price":1148.5}]`, string(raw))
}

func TestParseJSONArraySkipsIncompleteBrackets(t *testing.T) {
	raw, err := ParseJSONArray("note [see below] then [1, 2]")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(raw))
}

func TestParseJSONArrayMissing(t *testing.T) {
	_, err := ParseJSONArray("I could not find any products.")
	assert.ErrorIs(t, err, ErrNoJSONArray)

	_, err = ParseJSONArray(`[{"name": "unterminated"`)
	assert.ErrorIs(t, err, ErrNoJSONArray)
}

func TestParseJSONObject(t *testing.T) {
	raw, err := ParseJSONObject("Sure! {\"isValid\": false}")
	require.NoError(t, err)
	assert.JSONEq(t, `{"isValid":false}`, string(raw))

	_, err = ParseJSONObject("[]")
	assert.ErrorIs(t, err, ErrNoJSONObject)
}
