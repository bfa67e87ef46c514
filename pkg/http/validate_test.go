package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type windowRequest struct {
	Symbol string  `query:"symbol" validate:"required,numeric"`
	Start  string  `query:"start" validate:"omitempty,yyyymmdd"`
	Days   int     `query:"recent_days" default:"3" validate:"gte=2,lte=60"`
	Ratio  float64 `query:"volume_threshold" default:"2" validate:"gt=0"`
}

func bindQuery(t *testing.T, query string) interface{} {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?"+query, nil), httptest.NewRecorder())
	var r windowRequest
	return ReadAndValidateRequest(c, &r)
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?symbol=600000&start=20240229", nil), httptest.NewRecorder())

	var r windowRequest
	assert.Nil(t, ReadAndValidateRequest(c, &r))
	assert.Equal(t, "600000", r.Symbol)
	assert.Equal(t, 3, r.Days)
	assert.Equal(t, 2.0, r.Ratio)
}

func TestReadAndValidateRequestNamesWireFields(t *testing.T) {
	res := bindQuery(t, "recent_days=1&volume_threshold=-1")
	errs, ok := res.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 3)

	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "symbol", errs[0].Field)
	assert.Equal(t, "ERR_GTE", errs[1].Code)
	assert.Equal(t, "recent_days", errs[1].Field)
	assert.Equal(t, "2", errs[1].Params["min"])
	assert.Equal(t, "recent_days must be at least 2", errs[1].Message)
	assert.Equal(t, "ERR_GT", errs[2].Code)
	assert.Equal(t, "volume_threshold", errs[2].Field)
}

func TestReadAndValidateRequestRejectsImpossibleDate(t *testing.T) {
	res := bindQuery(t, "symbol=600000&start=20240231")
	errs, ok := res.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_YYYYMMDD", errs[0].Code)
	assert.Equal(t, "start", errs[0].Field)
	assert.Equal(t, "YYYYMMDD", errs[0].Params["layout"])
}
