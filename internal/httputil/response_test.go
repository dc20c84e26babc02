package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/recordstore/internal/errors"
	"github.com/R3E-Network/recordstore/internal/logging"
)

func TestWriteErrorServiceError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/records/1", nil)
	req = req.WithContext(logging.WithTraceID(req.Context(), "trace-1"))
	rec := httptest.NewRecorder()

	WriteError(rec, req, fmt.Errorf("lookup: %w", errors.NotFound("record", "1")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.Equal(t, "trace-1", body.TraceID)
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Jazz"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "Jazz", dst.Name)

	cases := map[string]string{
		"empty":    ``,
		"unknown":  `{"name":"x","extra":1}`,
		"trailing": `{"name":"x"}{"name":"y"}`,
		"broken":   `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)
			assert.True(t, errors.IsCode(err, errors.CodeBadRequest), "got %v", err)
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/records?limit=10&in_stock=true&offset=x", nil)

	limit, err := QueryInt(req, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	missing, err := QueryInt(req, "page", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, missing)

	_, err = QueryInt(req, "offset", 0)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	inStock, err := QueryBool(req, "in_stock")
	require.NoError(t, err)
	assert.True(t, inStock)
}
