package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/paginate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_WritesEntriesAndNavigation(t *testing.T) {
	rec := httptest.NewRecorder()
	Page(rec, paginate.Paginate([]string{"a", "b", "c", "d", "e"}, 1, 2))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                     `json:"success"`
		Data    []paginate.Entry[string] `json:"data"`
		Meta    Meta                     `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.True(t, body.Success)
	require.Len(t, body.Data, 2)
	assert.Equal(t, 2, body.Data[0].GlobalIndex)
	assert.Equal(t, Meta{Page: 1, Limit: 2, Total: 5, TotalPages: 3, HasPrevious: true, HasNext: true}, body.Meta)
}

func TestPage_EmptyBoxIsAnEmptyList(t *testing.T) {
	rec := httptest.NewRecorder()
	Page(rec, paginate.Paginate[string](nil, 0, 10))

	assert.JSONEq(t, `{"success":true,"data":[],"meta":{"page":0,"limit":10,"total":0,"total_pages":1,"has_previous":false,"has_next":false}}`,
		rec.Body.String())
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apierror.TooManyRequests("sell offer cooldown", 1500*time.Millisecond))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	rec = httptest.NewRecorder()
	Error(rec, errors.New("sqlite: disk I/O error"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sqlite")
	assert.Empty(t, rec.Header().Get("Retry-After"))
}
