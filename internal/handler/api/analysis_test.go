package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
	drepo "TokenScope/internal/domain/repository"
	"TokenScope/internal/service/ratelimit"
	"TokenScope/internal/services/indicators"
	"TokenScope/internal/services/patterns"
	"TokenScope/internal/services/predictor"
	"TokenScope/internal/testutil"
	"TokenScope/internal/usecase"
	xhttp "TokenScope/pkg/http"
	"TokenScope/pkg/logger"
)

type stubSeries struct {
	series []models.Candle
	err    error
}

func (s stubSeries) FetchSeries(_ context.Context, _ string, _ drepo.Timeframe, limit int) ([]models.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return models.Tail(s.series, limit), nil
}

type nopMetrics struct{}

func (nopMetrics) RecordVerdict(string, string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordScore(string, float64) {}
func (nopMetrics) RecordLatency(string, float64) {}

type stubStorage struct {
	drepo.VerdictStorage
	rows []*models.AnalysisResult
}

func (s stubStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.AnalysisResult, error) {
	return s.rows, nil
}

func newServer(t *testing.T, series drepo.SeriesProvider, verdicts drepo.VerdictStorage, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	uc := usecase.NewAnalysisUseCase(
		usecase.AnalysisConfig{Timeout: 5 * time.Second, Timeframes: []drepo.Timeframe{drepo.TF1h}},
		series, nil,
		indicators.NewEngine(), predictor.NewOLS(), patterns.NewDetector(),
		nil, nopMetrics{}, logger.NewNop(),
	)
	h := NewAnalysisHandler(logger.NewNop(), uc, usecase.NewCandlesUseCase(series), verdicts, nil, limiter)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func get(e *echo.Echo, target string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body xhttp.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestStatusMapping(t *testing.T) {
	long := stubSeries{series: testutil.Geometric(150, 100, 0.01, 1000, 0.005)}
	short := stubSeries{series: testutil.Geometric(30, 100, 0.01, 1000, 0)}
	missing := stubSeries{err: &models.DataUnavailableError{TokenID: "tok"}}
	broken := stubSeries{series: func() []models.Candle {
		s := testutil.Flat(60, 100, 10)
		s[5].Timestamp = s[4].Timestamp
		return s
	}()}

	tests := []struct {
		name   string
		series drepo.SeriesProvider
		target string
		status int
	}{
		{"missing token", long, "/api/analysis", http.StatusBadRequest},
		{"bad timeframe", long, "/api/analysis?token=tok&tf=2h", http.StatusBadRequest},
		{"limit too small", long, "/api/indicators?token=tok&n=10", http.StatusBadRequest},
		{"no data", missing, "/api/analysis?token=tok", http.StatusNotFound},
		{"too short", short, "/api/analysis/quick?token=tok&n=50", http.StatusUnprocessableEntity},
		{"invalid series", broken, "/api/indicators?token=tok&n=60", http.StatusUnprocessableEntity},
		{"analysis", long, "/api/analysis?token=tok&n=150&timeframes=1h,4h", http.StatusOK},
		{"quick", long, "/api/analysis/quick?token=tok", http.StatusOK},
		{"regime", long, "/api/regime?token=tok&n=150", http.StatusOK},
		{"indicators", long, "/api/indicators?token=tok", http.StatusOK},
		{"candles", long, "/api/candles?token=tok&n=5", http.StatusOK},
		{"verdicts disabled", long, "/api/verdicts?token=tok", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(t, tt.series, nil, nil)
			rec, body := get(e, tt.target)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestAnalysisResponseBody(t *testing.T) {
	e := newServer(t, stubSeries{series: testutil.Geometric(150, 100, 0.01, 1000, 0.005)}, nil, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis?token=tok&n=150", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data models.AnalysisResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tok", body.Data.TokenID)
	assert.Equal(t, "1h", body.Data.Timeframe)
	assert.Equal(t, models.SourceStore, body.Data.DataSource)
	assert.NotEmpty(t, body.Data.ID)
	require.NotNil(t, body.Data.Regime)
}

func TestCandlesDefaults(t *testing.T) {
	e := newServer(t, stubSeries{series: testutil.Flat(300, 2, 10)}, nil, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/candles?token=tok", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data usecase.GetCandlesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 200, body.Data.Count)
	assert.Equal(t, "1h", body.Data.Timeframe)
}

func TestVerdictsFromStorage(t *testing.T) {
	rows := []*models.AnalysisResult{{TokenID: "tok", OverallScore: 61}}
	e := newServer(t, stubSeries{}, stubStorage{rows: rows}, nil)

	rec, body := get(e, "/api/verdicts?token=tok&hours=6")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body.Data, 1)

	rec, _ = get(e, "/api/verdicts?token=tok&hours=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(e, "/api/verdicts?token=tok&from=2025-01-02T00:00:00Z&to=2025-01-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = get(e, "/api/verdicts?token=tok&from=1735689600&to=1735776000")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimited(t *testing.T) {
	e := newServer(t, stubSeries{series: testutil.Flat(10, 2, 10)}, nil, ratelimit.New(0.001, 1))

	rec, _ := get(e, "/api/candles?token=tok&n=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = get(e, "/api/candles?token=tok&n=5")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestStreamDisabled(t *testing.T) {
	e := newServer(t, stubSeries{}, nil, nil)
	rec, _ := get(e, "/api/stream")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidationNamesQueryField(t *testing.T) {
	e := newServer(t, stubSeries{}, nil, nil)
	rec, _ := get(e, "/api/regime?tf=1h")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"token"`)
	assert.Contains(t, rec.Body.String(), "ERR_REQUIRED")
}

func TestInsufficientDataReportsCounts(t *testing.T) {
	e := newServer(t, stubSeries{series: testutil.Geometric(30, 100, 0.01, 1000, 0)}, nil, nil)
	rec, _ := get(e, "/api/analysis/quick?token=tok&n=50")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"have":30`)
	assert.Contains(t, rec.Body.String(), `"need"`)
}
