package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
	drepo "TokenScope/internal/domain/repository"
	domsvc "TokenScope/internal/domain/service"
	"TokenScope/internal/services/indicators"
	"TokenScope/internal/services/patterns"
	"TokenScope/internal/services/predictor"
	"TokenScope/internal/services/regime"
	"TokenScope/internal/testutil"
	"TokenScope/pkg/config"
	"TokenScope/pkg/logger"
)

func trainingSeries() []models.Candle {
	return testutil.Concat(
		testutil.Geometric(80, 100, 0.01, 1000, 0.01),
		testutil.Wave(80, 220, 0.03, 16, 0),
		testutil.Geometric(80, 220, -0.012, 1500, 0),
	)
}

// fakeSeries serves one series for every timeframe unless told otherwise.
type fakeSeries struct {
	series []models.Candle
	fail   map[drepo.Timeframe]error
	block  map[drepo.Timeframe]bool
	mu     sync.Mutex
	calls  []drepo.Timeframe
}

func (f *fakeSeries) FetchSeries(ctx context.Context, tokenID string, tf drepo.Timeframe, limit int) ([]models.Candle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tf)
	f.mu.Unlock()
	if f.block[tf] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.fail[tf]; err != nil {
		return nil, err
	}
	return models.Tail(f.series, limit), nil
}

type sourcedSeries struct {
	fakeSeries
	source models.DataSource
}

func (s *sourcedSeries) FetchSeriesSourced(ctx context.Context, tokenID string, tf drepo.Timeframe, limit int) ([]models.Candle, models.DataSource, error) {
	c, err := s.FetchSeries(ctx, tokenID, tf, limit)
	return c, s.source, err
}

type fakeSnapshots struct {
	snap *models.MarketSnapshot
	err  error
}

func (f fakeSnapshots) FetchSnapshot(context.Context, string) (*models.MarketSnapshot, error) {
	return f.snap, f.err
}

type recordingSink struct {
	mu  sync.Mutex
	got []*models.AnalysisResult
}

func (s *recordingSink) Deliver(_ context.Context, r *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, r)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	scores map[string]float64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{errors: map[string]int{}, scores: map[string]float64{}}
}

func (m *countingMetrics) RecordVerdict(string, string) {}
func (m *countingMetrics) RecordLatency(string, float64) {}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *countingMetrics) RecordScore(token string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[token] = score
}

func newUseCase(series drepo.SeriesProvider, snaps drepo.SnapshotProvider, sink VerdictDeliverer, metrics drepo.Metrics) *AnalysisUseCase {
	return NewAnalysisUseCase(
		AnalysisConfig{
			Timeout:          5 * time.Second,
			TimeframeTimeout: time.Second,
			Timeframes:       []drepo.Timeframe{drepo.TF15m, drepo.TF1h, drepo.TF4h},
			MTFLimit:         100,
			MTFMinScoring:    50,
		},
		series, snaps,
		indicators.NewEngine(),
		predictor.NewOLS(),
		patterns.NewDetector(),
		sink, metrics, logger.NewNop(),
	)
}

func TestAnalyzeFullPipeline(t *testing.T) {
	series := &fakeSeries{series: trainingSeries()}
	sink := &recordingSink{}
	metrics := newCountingMetrics()
	uc := newUseCase(series, nil, sink, metrics)

	res, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 240})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "tok", res.TokenID)
	assert.Equal(t, "1h", res.Timeframe)
	assert.Equal(t, models.SourceStore, res.DataSource)
	assert.GreaterOrEqual(t, res.OverallScore, 0.0)
	assert.LessOrEqual(t, res.OverallScore, 100.0)
	assert.Equal(t, models.LabelForScore(res.OverallScore), res.OverallSignal)
	require.NotNil(t, res.Regime)
	require.NotNil(t, res.Indicators)
	require.NotNil(t, res.Patterns)
	require.NotNil(t, res.MultiTimeframe)
	assert.Len(t, res.MultiTimeframe.Timeframes, 3)
	assert.NotEmpty(t, res.Features)

	require.Len(t, sink.got, 1)
	assert.Same(t, res, sink.got[0])
	assert.Equal(t, res.OverallScore, metrics.scores["tok"])
}

func TestAnalyzeModestUptrendIsBuy(t *testing.T) {
	// about +20% over 60 bars with rising volume
	series := &fakeSeries{series: testutil.Geometric(60, 100, 0.0031, 1000, 0.02)}
	uc := newUseCase(series, nil, &recordingSink{}, newCountingMetrics())

	res, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 60})
	require.NoError(t, err)
	require.NotNil(t, res.MultiTimeframe)
	assert.Contains(t, []models.SignalLabel{models.Buy, models.StrongBuy}, res.OverallSignal,
		"got %s at %.2f", res.OverallSignal, res.OverallScore)
	assert.GreaterOrEqual(t, res.OverallScore, 60.0)
}

func TestAnalyzeReportsSourcedProvider(t *testing.T) {
	series := &sourcedSeries{fakeSeries: fakeSeries{series: trainingSeries()}, source: models.SourceSynthetic}
	uc := newUseCase(series, nil, &recordingSink{}, newCountingMetrics())

	res, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 200})
	require.NoError(t, err)
	assert.Equal(t, models.SourceSynthetic, res.DataSource)
}

func TestAnalyzeDataUnavailable(t *testing.T) {
	series := &fakeSeries{fail: map[drepo.Timeframe]error{
		drepo.TF1h: &models.DataUnavailableError{TokenID: "tok", Timeframe: "1h"},
	}}
	sink := &recordingSink{}
	metrics := newCountingMetrics()
	uc := newUseCase(series, nil, sink, metrics)

	_, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Empty(t, sink.got)
	assert.Equal(t, 1, metrics.errors["analysis_full"])
}

func TestAnalyzeInsufficientData(t *testing.T) {
	series := &fakeSeries{series: testutil.Geometric(30, 100, 0.01, 1000, 0)}
	uc := newUseCase(series, nil, &recordingSink{}, newCountingMetrics())

	_, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 200})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	var ide *models.InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, "1h", ide.Timeframe)
}

func TestAnalyzeRejectsInvalidSeries(t *testing.T) {
	bad := trainingSeries()
	bad[10].Low = bad[10].High + 1
	uc := newUseCase(&fakeSeries{series: bad}, nil, &recordingSink{}, newCountingMetrics())

	_, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 240})
	assert.Error(t, err)
}

func TestAnalyzeRecordsTimeframeFailures(t *testing.T) {
	series := &fakeSeries{
		series: trainingSeries(),
		fail:   map[drepo.Timeframe]error{drepo.TF4h: errors.New("store down")},
	}
	uc := newUseCase(series, nil, &recordingSink{}, newCountingMetrics())

	res, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 200})
	require.NoError(t, err)
	require.NotNil(t, res.MultiTimeframe)
	assert.Len(t, res.MultiTimeframe.Timeframes, 2)
	assert.Contains(t, res.MultiTimeframe.Errors, "4h")
}

func TestAnalyzeTimeoutReturnsError(t *testing.T) {
	series := &fakeSeries{
		series: trainingSeries(),
		block:  map[drepo.Timeframe]bool{drepo.TF4h: true},
	}
	sink := &recordingSink{}
	uc := newUseCase(series, nil, sink, newCountingMetrics())
	uc.cfg.Timeout = 100 * time.Millisecond
	uc.cfg.TimeframeTimeout = time.Minute

	res, err := uc.Analyze(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 200})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, sink.got)
}

type countingModel struct {
	domsvc.RegimeClassifier
	trains *int
}

func (m countingModel) Train(series []models.Candle) (*models.TrainingSummary, error) {
	*m.trains++
	return m.RegimeClassifier.Train(series)
}

func TestEveryAnalysisOwnsItsModel(t *testing.T) {
	uc := newUseCase(&fakeSeries{series: trainingSeries()}, nil, &recordingSink{}, newCountingMetrics())
	built, trains := 0, 0
	uc.WithModelFactory(func() domsvc.RegimeClassifier {
		built++
		return countingModel{RegimeClassifier: regime.NewModel(), trains: &trains}
	})

	for i := 0; i < 2; i++ {
		res, err := uc.DetectRegime(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 240})
		require.NoError(t, err)
		assert.Equal(t, 240, res.Candles)
		require.NotNil(t, res.Regime)
	}
	assert.Equal(t, 2, built)
	assert.Equal(t, 2, trains)
}

func TestDetectRegimeShortSeriesUsesHeuristic(t *testing.T) {
	uc := newUseCase(&fakeSeries{series: testutil.Geometric(40, 100, 0.02, 1000, 0)}, nil, &recordingSink{}, newCountingMetrics())

	res, err := uc.DetectRegime(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 40})
	require.NoError(t, err)
	assert.Equal(t, models.MethodHeuristic, res.Regime.Method)
	assert.Nil(t, res.Training)
}

func TestIndicatorsReturnsFeatures(t *testing.T) {
	uc := newUseCase(&fakeSeries{series: trainingSeries()}, nil, &recordingSink{}, newCountingMetrics())

	res, err := uc.Indicators(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 200})
	require.NoError(t, err)
	require.NotNil(t, res.Indicators)
	assert.NotEmpty(t, res.Features.Group("tech_"))
}

func TestQuickWithAndWithoutSnapshot(t *testing.T) {
	series := &fakeSeries{series: trainingSeries()}
	snap := &models.MarketSnapshot{
		TokenID: "tok", PriceUSD: 180, PriceChange24h: 8, Volume24h: 2e6,
		LiquidityUSD: 2e6, MarketCap: 5e7, Buys24h: 900, Sells24h: 300,
	}

	withSnap := newUseCase(series, fakeSnapshots{snap: snap}, &recordingSink{}, newCountingMetrics())
	res, err := withSnap.Quick(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, "QUICK", res.Method)
	assert.NotEmpty(t, res.Levels.Supports)

	noSnap := newUseCase(series, fakeSnapshots{err: errors.New("dexscreener down")}, &recordingSink{}, newCountingMetrics())
	res, err = noSnap.Quick(context.Background(), AnalyzeParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.TokenID)
	assert.GreaterOrEqual(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Score, 100.0)
}

func TestGetCandles(t *testing.T) {
	uc := NewCandlesUseCase(&fakeSeries{series: testutil.Flat(10, 1, 5)})

	res, err := uc.GetCandles(context.Background(), GetCandlesParams{TokenID: "tok", Timeframe: drepo.TF1h, Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	assert.Equal(t, models.SourceStore, res.DataSource)
	assert.Equal(t, res.Candles[0].Time(), res.From)
	assert.Equal(t, res.Candles[3].Time(), res.To)

	_, err = uc.GetCandles(context.Background(), GetCandlesParams{})
	assert.Error(t, err)
}

type fakePublisher struct {
	err  error
	sent int
}

func (p *fakePublisher) Publish(context.Context, *models.AnalysisResult) error {
	p.sent++
	return p.err
}

func (p *fakePublisher) PublishBatch(_ context.Context, rs []*models.AnalysisResult) error {
	p.sent += len(rs)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeStorage struct {
	stored int
}

func (s *fakeStorage) Init(context.Context) error { return nil }
func (s *fakeStorage) Store(context.Context, *models.AnalysisResult) error {
	s.stored++
	return nil
}
func (s *fakeStorage) StoreBatch(_ context.Context, rs []*models.AnalysisResult) error {
	s.stored += len(rs)
	return nil
}
func (s *fakeStorage) Query(context.Context, string, time.Time, time.Time, int) ([]*models.AnalysisResult, error) {
	return nil, nil
}
func (s *fakeStorage) Health(context.Context) error { return nil }
func (s *fakeStorage) Close() error { return nil }

type fakeBroadcaster struct{ n int }

func (b *fakeBroadcaster) Broadcast(*models.AnalysisResult) { b.n++ }

func TestVerdictSinkRouting(t *testing.T) {
	tests := []struct {
		backend   string
		published int
		stored    int
	}{
		{config.BackendNone, 0, 0},
		{config.BackendKafka, 1, 0},
		{config.BackendClickHouse, 0, 1},
		{config.BackendBoth, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			pub, store, bc := &fakePublisher{}, &fakeStorage{}, &fakeBroadcaster{}
			sink := NewVerdictSink(pub, store, bc, newCountingMetrics(), tt.backend)

			require.NoError(t, sink.Deliver(context.Background(), &models.AnalysisResult{TokenID: "tok"}))
			assert.Equal(t, tt.published, pub.sent)
			assert.Equal(t, tt.stored, store.stored)
			assert.Equal(t, 1, bc.n)
		})
	}
}

func TestVerdictSinkBothKeepsStoringOnPublishFailure(t *testing.T) {
	pub, store, bc := &fakePublisher{err: errors.New("broker down")}, &fakeStorage{}, &fakeBroadcaster{}
	metrics := newCountingMetrics()
	sink := NewVerdictSink(pub, store, bc, metrics, config.BackendBoth)

	err := sink.DeliverBatch(context.Background(), []*models.AnalysisResult{{TokenID: "a"}, {TokenID: "b"}})
	require.Error(t, err)
	assert.Equal(t, 2, store.stored)
	assert.Equal(t, 2, bc.n)
	assert.Equal(t, 1, metrics.errors["sink_batch"])

	assert.Error(t, NewVerdictSink(nil, nil, nil, metrics, config.BackendKafka).Deliver(context.Background(), &models.AnalysisResult{TokenID: "a"}))
	assert.Error(t, NewVerdictSink(nil, nil, nil, metrics, "s3").Deliver(context.Background(), &models.AnalysisResult{TokenID: "a"}))
}

func TestAnalysisRequestHandler(t *testing.T) {
	sink := &recordingSink{}
	metrics := newCountingMetrics()
	uc := newUseCase(&fakeSeries{series: trainingSeries()}, nil, sink, metrics)
	h := NewAnalysisRequestHandler("tokenscope.analysis.requests", uc, metrics, logger.NewNop())
	assert.Equal(t, "tokenscope.analysis.requests", h.Topic())

	job, err := json.Marshal(models.AnalysisJob{TokenID: "tok"})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), job))
	require.Len(t, sink.got, 1)
	assert.Equal(t, "1h", sink.got[0].Timeframe)

	quick := []byte(`{"token_id":"tok","mode":"quick","limit":100}`)
	require.NoError(t, h.Handle(context.Background(), quick))
	assert.Len(t, sink.got, 1, "quick verdicts are not sunk")

	assert.Error(t, h.Handle(context.Background(), []byte(`{`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"timeframe":"1h"}`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"token_id":"tok","mode":"batch"}`)))
	assert.Equal(t, 1, metrics.errors["consumer_unmarshal"])
	assert.Equal(t, 2, metrics.errors["consumer_validate"])
}
