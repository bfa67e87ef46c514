package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/service/universe"
	"QuietSpike/internal/services/analytics"
	"QuietSpike/internal/usecase"
	xlogger "QuietSpike/pkg/logger"
	"QuietSpike/pkg/metrics"
)

type stubProvider struct {
	bars map[string][]models.Bar
	errs map[string]error
}

func (p stubProvider) Series(_ context.Context, code string, _, _ time.Time) (*models.Series, error) {
	if err := p.errs[code]; err != nil {
		return nil, err
	}
	bars, ok := p.bars[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSymbolNotFound, code)
	}
	return models.NewSeries(code, bars)
}

func spikeBars(code string) []models.Bar {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 13)
	for i := range bars {
		vol, half := 1_000_000.0, 0.0
		if i >= 10 {
			vol, half = 3_000_000, 0.2
		}
		bars[i] = models.Bar{Date: day.AddDate(0, 0, i), Code: code, Open: 10, Close: 10, High: 10 + half, Low: 10 - half, Volume: vol}
	}
	return bars
}

func newTestServer() *echo.Echo {
	provider := stubProvider{
		bars: map[string][]models.Bar{"600000": spikeBars("600000"), "000001": spikeBars("000001")[:5]},
		errs: map[string]error{"300750": fmt.Errorf("%w: 503", models.ErrUpstreamUnavailable)},
	}
	pipeline := usecase.NewScreeningPipeline(provider, metrics.Noop{}, xlogger.Nop(), usecase.PipelineConfig{Workers: 2, RetryAttempts: 1})
	src := universe.StaticSource{{Code: "600000", Name: "PF Bank"}, {Code: "000001", Name: "PA Bank"}}
	uc := usecase.NewScreenUseCase(pipeline, provider, src, nil, nil, analytics.DefaultConfig(), 365, xlogger.Nop())

	e := echo.New()
	NewScreenEchoHandler(xlogger.Nop(), uc).RegisterRoutes(e)
	return e
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestSpikeEndpoint(t *testing.T) {
	e := newTestServer()

	code, env := do(t, e, http.MethodGet, "/api/spike?symbol=600000&start=20240101&end=20240630", "")
	require.Equal(t, http.StatusOK, code)
	var sig models.Signal
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.True(t, sig.Matched)
	assert.Equal(t, models.StrategyQuietSpike, sig.Strategy)

	// a volume threshold nothing can reach
	code, env = do(t, e, http.MethodGet, "/api/spike?symbol=600000&start=20240101&end=20240630&volume_threshold=50", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.False(t, sig.Matched)
	assert.Equal(t, analytics.ReasonNoConfirmedSpike, sig.Reason)
}

func TestSpikeEndpointErrors(t *testing.T) {
	e := newTestServer()
	cases := []struct {
		name   string
		target string
		status int
	}{
		{"missing symbol", "/api/spike", http.StatusBadRequest},
		{"bad date", "/api/spike?symbol=600000&end=2024-06-30", http.StatusBadRequest},
		{"reversed range", "/api/spike?symbol=600000&start=20240630&end=20240101", http.StatusBadRequest},
		{"unknown symbol", "/api/spike?symbol=999999", http.StatusNotFound},
		{"short history", "/api/spike?symbol=000001", http.StatusUnprocessableEntity},
		{"upstream down", "/api/spike?symbol=300750", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := do(t, e, http.MethodGet, tc.target, "")
			assert.Equal(t, tc.status, code)
			assert.Equal(t, tc.status, env.Status)
		})
	}
}

func TestScanEndpoint(t *testing.T) {
	e := newTestServer()
	code, env := do(t, e, http.MethodGet, "/api/scan?symbol=600000&lookback_days=5&recent_days=2&volume_threshold=2000000&volatility_threshold=0.001", "")
	require.Equal(t, http.StatusOK, code)
	var sig models.Signal
	require.NoError(t, json.Unmarshal(env.Data, &sig))
	assert.Equal(t, models.StrategyRolling, sig.Strategy)

	code, _ = do(t, e, http.MethodGet, "/api/scan?symbol=600000&lookback_days=500", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestScreenEndpoint(t *testing.T) {
	e := newTestServer()

	code, env := do(t, e, http.MethodPost, "/api/screen", `{"strategy":"quiet_spike"}`)
	require.Equal(t, http.StatusOK, code)
	var resp models.ScreenResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 1, resp.Evaluated)
	require.Len(t, resp.Matched, 1)
	assert.Equal(t, "PF Bank", resp.Matched[0].Name)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "insufficient_history", resp.Skipped[0].Kind)

	code, _ = do(t, e, http.MethodPost, "/api/screen", `{"strategy":"momentum"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBarsEndpoint(t *testing.T) {
	e := newTestServer()
	code, env := do(t, e, http.MethodGet, "/api/bars?symbol=600000", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []models.Bar `json:"rows"`
		Total int64        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 13, list.Total)
	assert.Len(t, list.Rows, 13)
}
