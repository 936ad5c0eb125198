package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	"TokenScope/internal/testutil"
	xhttp "TokenScope/pkg/http"
)

const token = "So11111111111111111111111111111111111111112"

func dexHandler(t *testing.T, rugStatus int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/latest/dex/tokens/"+token, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"pairs": []map[string]interface{}{
				{
					"priceUsd":    "1.10",
					"liquidity":   map[string]interface{}{"usd": 5000},
					"priceChange": map[string]interface{}{"h24": -3},
				},
				{
					"priceUsd":    "1.25",
					"priceChange": map[string]interface{}{"h24": 12.5},
					"volume":      map[string]interface{}{"h24": 250000},
					"liquidity":   map[string]interface{}{"usd": 800000},
					"fdv":         4000000,
					"txns":        map[string]interface{}{"h24": map[string]interface{}{"buys": 300, "sells": 120}},
				},
			},
		})
	})
	mux.HandleFunc("/v1/tokens/"+token+"/report/summary", func(w http.ResponseWriter, r *http.Request) {
		if rugStatus != http.StatusOK {
			w.WriteHeader(rugStatus)
			return
		}
		_, _ = w.Write([]byte(`{"score": 3, "lpLockedPct": 95.5, "rugged": false}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Logf("unexpected path %s", r.URL.Path)
		_, _ = w.Write([]byte(`{"pairs": []}`))
	})
	return mux
}

func newTestClient(url string) *DexScreenerClient {
	dex := NewHTTPServiceBase("dexscreener", url, time.Second, WithRate(100, 100), WithRetry(2, time.Millisecond))
	rug := NewHTTPServiceBase("rugcheck", url, time.Second, WithRate(100, 100))
	return NewDexScreenerClient(dex, rug, nil)
}

func TestFetchSnapshotPicksMostLiquidPair(t *testing.T) {
	srv := httptest.NewServer(dexHandler(t, http.StatusOK))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).FetchSnapshot(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, token, snap.TokenID)
	assert.Equal(t, 1.25, snap.PriceUSD)
	assert.Equal(t, 12.5, snap.PriceChange24h)
	assert.Equal(t, 250000.0, snap.Volume24h)
	assert.Equal(t, 800000.0, snap.LiquidityUSD)
	assert.Equal(t, 4000000.0, snap.MarketCap, "fdv stands in for a missing market cap")
	assert.Equal(t, 300, snap.Buys24h)
	assert.Equal(t, 120, snap.Sells24h)
	require.NotNil(t, snap.Rugcheck.Score)
	assert.Equal(t, 3.0, *snap.Rugcheck.Score)
	require.NotNil(t, snap.Rugcheck.LPLockedPct)
	assert.Equal(t, 95.5, *snap.Rugcheck.LPLockedPct)
}

func TestFetchSnapshotRugcheckFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(dexHandler(t, http.StatusInternalServerError))
	defer srv.Close()

	snap, err := newTestClient(srv.URL).FetchSnapshot(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, snap.Rugcheck.Score)
	assert.Equal(t, 1.25, snap.PriceUSD)
}

func TestFetchSnapshotWithoutPairs(t *testing.T) {
	srv := httptest.NewServer(dexHandler(t, http.StatusOK))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchSnapshot(context.Background(), "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewHTTPServiceBase("flaky", srv.URL, time.Second,
		WithRate(100, 100), WithRetry(1, time.Millisecond), WithBreaker(2, time.Minute))
	var out map[string]interface{}
	for i := 0; i < 2; i++ {
		require.Error(t, b.GetJSONWithRetry(context.Background(), "/x", nil, &out))
	}
	err := b.GetJSONWithRetry(context.Background(), "/x", nil, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "open", b.BreakerState())
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	b := NewHTTPServiceBase("retry", srv.URL, time.Second, WithRate(100, 100), WithRetry(3, time.Millisecond))
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, b.GetJSONWithRetry(context.Background(), "/x", nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPermanentStatusIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := NewHTTPServiceBase("missing", srv.URL, time.Second,
		WithRate(100, 100), WithRetry(3, time.Millisecond), WithBreaker(1, time.Minute))
	var out map[string]interface{}
	for i := 0; i < 3; i++ {
		err := b.GetJSONWithRetry(context.Background(), "/x", nil, &out)
		require.Error(t, err)
		assert.True(t, xhttp.IsPermanent(err))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, "closed", b.BreakerState())
}

func fixedGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Date(2024, 3, 1, 10, 17, 0, 0, time.UTC) }}
}

func sampleSnapshot(id string) *models.MarketSnapshot {
	return &models.MarketSnapshot{TokenID: id, PriceUSD: 2, PriceChange24h: 20, Volume24h: 120000, LiquidityUSD: 250000}
}

func TestGenerateIsDeterministicAndValid(t *testing.T) {
	g := fixedGenerator()
	a := g.Generate(sampleSnapshot("tok"), repository.TF1h, 150)
	b := g.Generate(sampleSnapshot("tok"), repository.TF1h, 150)
	c := g.Generate(sampleSnapshot("other"), repository.TF1h, 150)

	require.Len(t, a, 150)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.NoError(t, models.ValidateSeries(a))

	for _, k := range a {
		assert.GreaterOrEqual(t, k.Close, 1.0)
		assert.LessOrEqual(t, k.Close, 4.0)
	}
	last := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, last, a[len(a)-1].Timestamp)
	assert.Equal(t, time.Hour.Milliseconds(), a[1].Timestamp-a[0].Timestamp)
}

func TestGenerateRejectsMissingPrice(t *testing.T) {
	assert.Nil(t, fixedGenerator().Generate(&models.MarketSnapshot{TokenID: "x"}, repository.TF1h, 10))
	assert.Nil(t, fixedGenerator().Generate(nil, repository.TF1h, 10))
}

func TestVolatilityFactors(t *testing.T) {
	assert.InDelta(t, 0.02*2*1, Volatility(&models.MarketSnapshot{}), 1e-12)
	assert.InDelta(t, 0.02*0.5*1.5, Volatility(&models.MarketSnapshot{LiquidityUSD: 5e7, Volume24h: 1e7}), 1e-12)
	assert.InDelta(t, 0.02*1*0.8, Volatility(&models.MarketSnapshot{LiquidityUSD: 5e5, Volume24h: 10}), 1e-12)
}

type stubSeries struct {
	series []models.Candle
	err    error
}

func (s stubSeries) FetchSeries(context.Context, string, repository.Timeframe, int) ([]models.Candle, error) {
	return s.series, s.err
}

type stubSnapshots struct {
	snap *models.MarketSnapshot
	err  error
}

func (s stubSnapshots) FetchSnapshot(context.Context, string) (*models.MarketSnapshot, error) {
	return s.snap, s.err
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	missing := &models.DataUnavailableError{TokenID: "tok"}
	stored := testutil.Flat(60, 10, 100)

	t.Run("store hit", func(t *testing.T) {
		f := NewFallback(stubSeries{series: stored}, stubSnapshots{}, true, models.SourceStore, nil)
		got, src, err := f.FetchSeriesSourced(ctx, "tok", repository.TF1h, 60)
		require.NoError(t, err)
		assert.Equal(t, models.SourceStore, src)
		assert.Equal(t, stored, got)
	})

	t.Run("synthesized on missing data", func(t *testing.T) {
		f := NewFallback(stubSeries{err: missing}, stubSnapshots{snap: sampleSnapshot("tok")}, true, models.SourceStore, nil)
		got, src, err := f.FetchSeriesSourced(ctx, "tok", repository.TF1h, 80)
		require.NoError(t, err)
		assert.Equal(t, models.SourceSynthetic, src)
		assert.Len(t, got, 80)
	})

	t.Run("disabled", func(t *testing.T) {
		f := NewFallback(stubSeries{err: missing}, stubSnapshots{snap: sampleSnapshot("tok")}, false, models.SourceStore, nil)
		_, err := f.FetchSeries(ctx, "tok", repository.TF1h, 80)
		assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	})

	t.Run("snapshot unavailable keeps original error", func(t *testing.T) {
		f := NewFallback(stubSeries{err: missing}, stubSnapshots{err: errors.New("boom")}, true, models.SourceStore, nil)
		_, _, err := f.FetchSeriesSourced(ctx, "tok", repository.TF1h, 80)
		assert.Same(t, missing, err)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		boom := errors.New("connection refused")
		f := NewFallback(stubSeries{err: boom}, stubSnapshots{snap: sampleSnapshot("tok")}, true, models.SourceStore, nil)
		_, _, err := f.FetchSeriesSourced(ctx, "tok", repository.TF1h, 80)
		assert.Same(t, boom, err)
	})
}

func TestGenerateMicroPricedToken(t *testing.T) {
	snap := &models.MarketSnapshot{TokenID: "pepe", PriceUSD: 3.1e-9, PriceChange24h: 12, Volume24h: 80000, LiquidityUSD: 40000}
	series := fixedGenerator().Generate(snap, repository.TF1h, 120)

	require.Len(t, series, 120)
	require.NoError(t, models.ValidateSeries(series))
	for _, k := range series {
		assert.GreaterOrEqual(t, k.Close, 0.5*snap.PriceUSD*(1-1e-7))
		assert.LessOrEqual(t, k.Close, 2*snap.PriceUSD*(1+1e-7))
	}
}
