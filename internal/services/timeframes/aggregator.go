// Package timeframes builds a trend consensus across candle resolutions.
package timeframes

import (
	"math"
	"sort"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	domsvc "TokenScope/internal/domain/service"
	"TokenScope/pkg/util"
)

const (
	MinTrendCandles = 20
	trendEdge       = 5
	trendThreshold  = 0.02
	momentumLag     = 10
	weightedEdge    = 0.2
)

type Aggregator struct {
	engine     domsvc.IndicatorAnalyzer
	minScoring int
}

// NewAggregator attaches engine scores to timeframes with at least minScoring candles.
func NewAggregator(engine domsvc.IndicatorAnalyzer, minScoring int) *Aggregator {
	return &Aggregator{engine: engine, minScoring: minScoring}
}

// Analyze classifies each timeframe and reduces them to a consensus. Timeframes
// that are too short are listed in Errors and left out of every count.
func (a *Aggregator) Analyze(data map[repository.Timeframe][]models.Candle) *models.MultiTimeframeResult {
	res := &models.MultiTimeframeResult{
		Timeframes:        []models.TimeframeTrend{},
		Consensus:         models.MarketNeutral,
		AlignmentStrength: models.AlignWeak,
		WeightedTrend:     models.MarketNeutral,
	}

	tfs := make([]repository.Timeframe, 0, len(data))
	for tf := range data {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i].Duration() < tfs[j].Duration() })

	var num, den float64
	for _, tf := range tfs {
		series := data[tf]
		if len(series) < MinTrendCandles {
			a.recordError(res, tf, &models.InsufficientDataError{Op: "timeframe_trend", Timeframe: string(tf), Have: len(series), Need: MinTrendCandles})
			continue
		}
		tt := a.analyzeOne(tf, series)
		res.Timeframes = append(res.Timeframes, tt)

		switch tt.Trend {
		case models.MarketBullish:
			res.BullishCount++
		case models.MarketBearish:
			res.BearishCount++
		default:
			res.NeutralCount++
		}
		w := tf.Weight() * tt.Confidence
		num += w * direction(tt.Trend)
		den += w
	}

	analyzed := len(res.Timeframes)
	res.Consensus = consensus(res.BullishCount, res.BearishCount, analyzed)
	if analyzed > 0 {
		agreeing := res.NeutralCount
		switch res.Consensus {
		case models.MarketBullish:
			agreeing = res.BullishCount
		case models.MarketBearish:
			agreeing = res.BearishCount
		}
		res.AlignmentPct = float64(agreeing) / float64(analyzed) * 100
	}
	switch {
	case res.AlignmentPct >= 80:
		res.AlignmentStrength = models.AlignStrong
	case res.AlignmentPct >= 60:
		res.AlignmentStrength = models.AlignModerate
	}

	res.WeightedScore = util.SafeDiv(num, den, 0)
	switch {
	case res.WeightedScore >= weightedEdge:
		res.WeightedTrend = models.MarketBullish
	case res.WeightedScore <= -weightedEdge:
		res.WeightedTrend = models.MarketBearish
	}
	return res
}

// RecordError notes a timeframe that could not be fetched or analyzed.
func (a *Aggregator) RecordError(res *models.MultiTimeframeResult, tf repository.Timeframe, err error) {
	a.recordError(res, tf, err)
}

func (a *Aggregator) recordError(res *models.MultiTimeframeResult, tf repository.Timeframe, err error) {
	if res.Errors == nil {
		res.Errors = map[string]string{}
	}
	res.Errors[string(tf)] = err.Error()
}

func (a *Aggregator) analyzeOne(tf repository.Timeframe, series []models.Candle) models.TimeframeTrend {
	closes := models.Closes(series)
	window := util.Tail(closes, MinTrendCandles)
	first := util.Mean(window[:trendEdge])
	last := util.Mean(window[len(window)-trendEdge:])
	change := util.SafeDiv(last-first, first, 0)

	tt := models.TimeframeTrend{
		Timeframe:     string(tf),
		Candles:       len(series),
		Trend:         models.MarketNeutral,
		Change:        change,
		TrendStrength: math.Min(1, math.Abs(change)/0.1),
	}
	switch {
	case change > trendThreshold:
		tt.Trend = models.MarketBullish
	case change < -trendThreshold:
		tt.Trend = models.MarketBearish
	}
	if len(closes) > momentumLag {
		ref := closes[len(closes)-1-momentumLag]
		tt.Momentum = util.SafeDiv(closes[len(closes)-1]-ref, ref, 0) * 100
	}
	tt.Confidence = tt.TrendStrength

	if a.engine != nil && len(series) >= a.minScoring {
		if ia, err := a.engine.Analyze(series); err == nil {
			score := ia.Scores.Overall
			tt.Score = &score
			tt.Signal = ia.OverallSignal
			tt.Confidence = ia.Confidence
		}
	}
	return tt
}

// consensus needs a two-vote margin, except that a unanimous non-neutral
// set of timeframes always carries its trend.
func consensus(bull, bear, analyzed int) models.MarketTrend {
	switch {
	case bull >= bear+2:
		return models.MarketBullish
	case bear >= bull+2:
		return models.MarketBearish
	case analyzed > 0 && bull == analyzed:
		return models.MarketBullish
	case analyzed > 0 && bear == analyzed:
		return models.MarketBearish
	default:
		return models.MarketNeutral
	}
}

func direction(t models.MarketTrend) float64 {
	switch t {
	case models.MarketBullish:
		return 1
	case models.MarketBearish:
		return -1
	default:
		return 0
	}
}
