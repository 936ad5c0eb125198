package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TokenScope/internal/domain/models"
	drepo "TokenScope/internal/domain/repository"
	domsvc "TokenScope/internal/domain/service"
	svcmetrics "TokenScope/internal/service/metrics"
	"TokenScope/internal/services/combiner"
	"TokenScope/internal/services/features"
	"TokenScope/internal/services/regime"
	"TokenScope/internal/services/timeframes"
	"TokenScope/pkg/logger"
)

const (
	ModeFull  = "full"
	ModeQuick = "quick"
)

// AnalysisConfig holds the tunables of the analysis pipeline.
type AnalysisConfig struct {
	Timeout          time.Duration
	TimeframeTimeout time.Duration
	Timeframes       []drepo.Timeframe
	MTFLimit         int
	MTFMinScoring    int
	MaxIterations    int
	Tolerance        float64
	// Source tags series from a provider that does not report its own origin.
	Source models.DataSource
}

// VerdictDeliverer hands a completed verdict to its downstream targets.
type VerdictDeliverer interface {
	Deliver(ctx context.Context, r *models.AnalysisResult) error
}

// RegimeModelFactory builds a fresh regime model for one analysis.
type RegimeModelFactory func() domsvc.RegimeClassifier

// AnalysisUseCase runs the full and quick scoring pipelines for a token.
type AnalysisUseCase struct {
	cfg       AnalysisConfig
	series    drepo.SeriesProvider
	snapshots drepo.SnapshotProvider
	engine    domsvc.IndicatorAnalyzer
	predictor domsvc.PriceDirectionPredictor
	patterns  domsvc.PatternDetector
	newModel  RegimeModelFactory
	mtf       *timeframes.Aggregator
	combiner  *combiner.Combiner
	quick     *combiner.QuickCombiner
	sink      VerdictDeliverer
	metrics   drepo.Metrics
	log       *logger.Logger
}

func NewAnalysisUseCase(
	cfg AnalysisConfig,
	series drepo.SeriesProvider,
	snapshots drepo.SnapshotProvider,
	engine domsvc.IndicatorAnalyzer,
	predictor domsvc.PriceDirectionPredictor,
	patterns domsvc.PatternDetector,
	sink VerdictDeliverer,
	metrics drepo.Metrics,
	log *logger.Logger,
) *AnalysisUseCase {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TimeframeTimeout <= 0 {
		cfg.TimeframeTimeout = 10 * time.Second
	}
	if cfg.MTFLimit <= 0 {
		cfg.MTFLimit = 100
	}
	if cfg.Source == "" {
		cfg.Source = models.SourceStore
	}
	maxIter, tol := cfg.MaxIterations, cfg.Tolerance
	return &AnalysisUseCase{
		cfg:       cfg,
		series:    series,
		snapshots: snapshots,
		engine:    engine,
		predictor: predictor,
		patterns:  patterns,
		newModel: func() domsvc.RegimeClassifier {
			return regime.NewModel(regime.WithMaxIterations(maxIter), regime.WithTolerance(tol))
		},
		mtf:      timeframes.NewAggregator(engine, cfg.MTFMinScoring),
		combiner: combiner.NewCombiner(),
		quick:    combiner.NewQuickCombiner(),
		sink:     sink,
		metrics:  metrics,
		log:      log,
	}
}

// WithModelFactory swaps the regime model constructor.
func (uc *AnalysisUseCase) WithModelFactory(f RegimeModelFactory) *AnalysisUseCase {
	uc.newModel = f
	return uc
}

type AnalyzeParams struct {
	TokenID   string
	Timeframe drepo.Timeframe
	Limit     int
	// Timeframes overrides the configured multi-timeframe set when non-empty.
	Timeframes []drepo.Timeframe
}

// Analyze runs the full pipeline and sinks the verdict. A deadline hit at any
// stage fails the whole analysis.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*models.AnalysisResult, error) {
	if p.TokenID == "" {
		return nil, fmt.Errorf("token required")
	}
	if p.Limit <= 0 {
		p.Limit = 200
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()
	start := time.Now()

	series, source, err := uc.fetch(ctx, p.TokenID, p.Timeframe, p.Limit)
	if err != nil {
		return nil, uc.fail(ModeFull, fmt.Errorf("fetch series: %w", err))
	}
	res, err := uc.AnalyzeSeries(ctx, p, series, source)
	if err != nil {
		return nil, uc.fail(ModeFull, err)
	}
	uc.complete(ModeFull, res.TokenID, res.OverallScore, start)
	uc.log.Info("analysis completed",
		logger.String("token", res.TokenID),
		logger.String("timeframe", res.Timeframe),
		logger.String("signal", string(res.OverallSignal)),
		logger.Float64("score", res.OverallScore),
		logger.String("source", string(res.DataSource)),
		logger.Duration("took", time.Since(start)),
	)

	if uc.sink != nil {
		if err := uc.sink.Deliver(ctx, res); err != nil {
			uc.log.Error("sink verdict failed", logger.String("token", res.TokenID), logger.Error(err))
		}
	}
	return res, nil
}

// AnalyzeSeries runs the full pipeline over an already fetched series. The
// multi-timeframe layer still fetches through the series provider when one
// is configured.
func (uc *AnalysisUseCase) AnalyzeSeries(ctx context.Context, p AnalyzeParams, series []models.Candle, source models.DataSource) (*models.AnalysisResult, error) {
	tf := string(p.Timeframe)
	if err := models.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("validate series: %w", err)
	}

	t := time.Now()
	analysis, err := uc.engine.Analyze(series)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", models.WithTimeframe(err, tf))
	}
	observe("indicators", t)

	t = time.Now()
	fv, err := features.NewExtractor(tf).Extract(series, analysis)
	if err != nil {
		return nil, fmt.Errorf("features: %w", models.WithTimeframe(err, tf))
	}
	observe("features", t)

	t = time.Now()
	regimePred, training := uc.classify(p.TokenID, tf, series)
	observe("regime", t)

	t = time.Now()
	prediction, err := uc.predictor.Predict(series)
	if err != nil {
		uc.log.Debug("prediction skipped", logger.String("token", p.TokenID), logger.Error(err))
		prediction = nil
	}
	observe("prediction", t)

	t = time.Now()
	patterns := uc.patterns.Detect(series)
	observe("patterns", t)

	var mtf *models.MultiTimeframeResult
	if uc.series != nil {
		t = time.Now()
		mtf = uc.multiTimeframe(ctx, p)
		observe("multi_timeframe", t)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	return uc.combiner.Combine(combiner.Inputs{
		TokenID:        p.TokenID,
		Timeframe:      tf,
		DataSource:     source,
		Indicators:     analysis,
		Prediction:     prediction,
		MultiTimeframe: mtf,
		Patterns:       patterns,
		Regime:         regimePred,
		Training:       training,
		Features:       fv,
	}), nil
}

// classify trains a model owned by this call and predicts the current
// regime. Training problems degrade to the heuristic classifier.
func (uc *AnalysisUseCase) classify(tokenID, tf string, series []models.Candle) (*models.RegimePrediction, *models.TrainingSummary) {
	model := uc.newModel()
	summary, err := model.Train(series)
	switch {
	case err == nil:
		svcmetrics.HMMIterations.Observe(float64(summary.Iterations))
	case errors.Is(err, models.ErrInsufficientData):
		uc.log.Debug("regime training skipped",
			logger.String("token", tokenID), logger.String("timeframe", tf), logger.Error(err))
	default:
		uc.metrics.RecordError("regime_train")
		uc.log.Warn("regime training failed, using heuristic",
			logger.String("token", tokenID), logger.String("timeframe", tf), logger.Error(err))
	}
	return model.Predict(series), summary
}

type tfSeries struct {
	tf     drepo.Timeframe
	series []models.Candle
	err    error
}

// multiTimeframe fetches every timeframe concurrently. A failed or slow
// timeframe is recorded and never aborts the others.
func (uc *AnalysisUseCase) multiTimeframe(ctx context.Context, p AnalyzeParams) *models.MultiTimeframeResult {
	tfs := p.Timeframes
	if len(tfs) == 0 {
		tfs = uc.cfg.Timeframes
	}
	ch := make(chan tfSeries, len(tfs))
	var wg sync.WaitGroup
	for _, tf := range tfs {
		wg.Add(1)
		go func(tf drepo.Timeframe) {
			defer wg.Done()
			tctx, cancel := context.WithTimeout(ctx, uc.cfg.TimeframeTimeout)
			defer cancel()
			s, _, err := uc.fetch(tctx, p.TokenID, tf, uc.cfg.MTFLimit)
			ch <- tfSeries{tf: tf, series: s, err: err}
		}(tf)
	}
	go func() { wg.Wait(); close(ch) }()

	data := make(map[drepo.Timeframe][]models.Candle, len(tfs))
	failed := map[drepo.Timeframe]error{}
	for it := range ch {
		if it.err != nil {
			failed[it.tf] = it.err
			continue
		}
		data[it.tf] = it.series
	}

	res := uc.mtf.Analyze(data)
	for tf, err := range failed {
		uc.log.Debug("timeframe fetch failed",
			logger.String("token", p.TokenID), logger.String("timeframe", string(tf)), logger.Error(err))
		uc.mtf.RecordError(res, tf, err)
	}
	return res
}

// Quick runs the fast path: indicator engine plus market snapshot heuristics.
func (uc *AnalysisUseCase) Quick(ctx context.Context, p AnalyzeParams) (*models.QuickAnalysisResult, error) {
	if p.TokenID == "" {
		return nil, fmt.Errorf("token required")
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()
	start := time.Now()

	series, source, err := uc.fetch(ctx, p.TokenID, p.Timeframe, p.Limit)
	if err != nil {
		return nil, uc.fail(ModeQuick, fmt.Errorf("fetch series: %w", err))
	}
	var snap *models.MarketSnapshot
	if uc.snapshots != nil {
		if snap, err = uc.snapshots.FetchSnapshot(ctx, p.TokenID); err != nil {
			uc.log.Warn("snapshot unavailable, quick analysis without market votes",
				logger.String("token", p.TokenID), logger.Error(err))
			snap = nil
		}
	}
	res, err := uc.QuickSeries(p, series, source, snap)
	if err != nil {
		return nil, uc.fail(ModeQuick, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, uc.fail(ModeQuick, fmt.Errorf("analysis aborted: %w", err))
	}
	uc.complete(ModeQuick, res.TokenID, res.Score, start)
	return res, nil
}

// QuickSeries scores an already fetched series. snap may be nil.
func (uc *AnalysisUseCase) QuickSeries(p AnalyzeParams, series []models.Candle, source models.DataSource, snap *models.MarketSnapshot) (*models.QuickAnalysisResult, error) {
	tf := string(p.Timeframe)
	if err := models.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("validate series: %w", err)
	}
	analysis, err := uc.engine.Analyze(series)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", models.WithTimeframe(err, tf))
	}
	return uc.quick.Combine(combiner.QuickInputs{
		TokenID:    p.TokenID,
		Timeframe:  tf,
		DataSource: source,
		Series:     series,
		Indicators: analysis,
		Snapshot:   snap,
	}), nil
}

type RegimeResult struct {
	TokenID    string                   `json:"token_id"`
	Timeframe  string                   `json:"timeframe"`
	DataSource models.DataSource        `json:"data_source"`
	Candles    int                      `json:"candles"`
	Regime     *models.RegimePrediction `json:"regime"`
	Training   *models.TrainingSummary  `json:"training,omitempty"`
}

// DetectRegime trains a fresh model on the series and classifies its end.
func (uc *AnalysisUseCase) DetectRegime(ctx context.Context, p AnalyzeParams) (*RegimeResult, error) {
	if p.TokenID == "" {
		return nil, fmt.Errorf("token required")
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	series, source, err := uc.fetch(ctx, p.TokenID, p.Timeframe, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	return uc.RegimeSeries(p, series, source)
}

func (uc *AnalysisUseCase) RegimeSeries(p AnalyzeParams, series []models.Candle, source models.DataSource) (*RegimeResult, error) {
	if err := models.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("validate series: %w", err)
	}
	t := time.Now()
	pred, training := uc.classify(p.TokenID, string(p.Timeframe), series)
	observe("regime", t)
	return &RegimeResult{
		TokenID:    p.TokenID,
		Timeframe:  string(p.Timeframe),
		DataSource: source,
		Candles:    len(series),
		Regime:     pred,
		Training:   training,
	}, nil
}

type IndicatorsResult struct {
	TokenID    string                    `json:"token_id"`
	Timeframe  string                    `json:"timeframe"`
	DataSource models.DataSource         `json:"data_source"`
	Indicators *models.IndicatorAnalysis `json:"indicators"`
	Features   models.FeatureVector      `json:"features"`
}

// Indicators runs the indicator engine and feature extractor only.
func (uc *AnalysisUseCase) Indicators(ctx context.Context, p AnalyzeParams) (*IndicatorsResult, error) {
	if p.TokenID == "" {
		return nil, fmt.Errorf("token required")
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	series, source, err := uc.fetch(ctx, p.TokenID, p.Timeframe, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	return uc.IndicatorsSeries(p, series, source)
}

func (uc *AnalysisUseCase) IndicatorsSeries(p AnalyzeParams, series []models.Candle, source models.DataSource) (*IndicatorsResult, error) {
	tf := string(p.Timeframe)
	if err := models.ValidateSeries(series); err != nil {
		return nil, fmt.Errorf("validate series: %w", err)
	}
	analysis, err := uc.engine.Analyze(series)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", models.WithTimeframe(err, tf))
	}
	fv, err := features.NewExtractor(tf).Extract(series, analysis)
	if err != nil {
		return nil, fmt.Errorf("features: %w", models.WithTimeframe(err, tf))
	}
	return &IndicatorsResult{
		TokenID:    p.TokenID,
		Timeframe:  tf,
		DataSource: source,
		Indicators: analysis,
		Features:   fv,
	}, nil
}

func (uc *AnalysisUseCase) fetch(ctx context.Context, tokenID string, tf drepo.Timeframe, limit int) ([]models.Candle, models.DataSource, error) {
	if uc.series == nil {
		return nil, "", &models.DataUnavailableError{TokenID: tokenID, Timeframe: string(tf), Err: errors.New("no series provider")}
	}
	if sp, ok := uc.series.(drepo.SourcedSeriesProvider); ok {
		return sp.FetchSeriesSourced(ctx, tokenID, tf, limit)
	}
	s, err := uc.series.FetchSeries(ctx, tokenID, tf, limit)
	return s, uc.cfg.Source, err
}

func (uc *AnalysisUseCase) fail(mode string, err error) error {
	svcmetrics.AnalysesTotal.WithLabelValues(mode, "error").Inc()
	uc.metrics.RecordError("analysis_" + mode)
	return err
}

func (uc *AnalysisUseCase) complete(mode, tokenID string, score float64, start time.Time) {
	svcmetrics.AnalysesTotal.WithLabelValues(mode, "ok").Inc()
	uc.metrics.RecordScore(tokenID, score)
	uc.metrics.RecordLatency("analysis_"+mode, time.Since(start).Seconds())
}

func observe(stage string, start time.Time) {
	svcmetrics.StageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
