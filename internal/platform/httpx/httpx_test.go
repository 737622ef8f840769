package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: upload abc", ErrNotFound), http.StatusNotFound},
		{ErrDuplicate, http.StatusConflict},
		{fmt.Errorf("%w: supplier_name required", ErrValidation), http.StatusBadRequest},
		{ErrTooLarge, http.StatusRequestEntityTooLarge},
		{ErrUpstream, http.StatusBadGateway},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestInternalErrorsHideDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.5:5432: refused"))
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
}

func TestJSONKeepsProductNamesReadable(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusOK, map[string]string{"name": "AV & Audio <Pro>"})
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "{\"name\":\"AV & Audio <Pro>\"}\n", rr.Body.String())
}

func TestDecodeJSONIsStrict(t *testing.T) {
	var target struct {
		IDs []string `json:"product_ids"`
	}
	req := httptest.NewRequest(http.MethodDelete, "/", strings.NewReader(`{"product_ids":["a"]}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, []string{"a"}, target.IDs)

	req = httptest.NewRequest(http.MethodDelete, "/", strings.NewReader(`{"ids":["a"]}`))
	assert.Error(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodDelete, "/", strings.NewReader(`{"product_ids":[]} {"x":1}`))
	assert.Error(t, DecodeJSON(req, &target))
}

func TestAttachmentHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	Attachment(rr, "text/csv; charset=utf-8", "pricelist-export-1.csv", []byte("a,b\n"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="pricelist-export-1.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", rr.Header().Get("Content-Length"))
	assert.Equal(t, "a,b\n", rr.Body.String())
}
