package indicators

import (
	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

const (
	weightMomentum   = 0.3
	weightTrend      = 0.4
	weightVolatility = 0.2
	weightVolume     = 0.1
)

func scoreSignals(sig models.IndicatorSignals, set *models.IndicatorSet) models.SubScores {
	s := models.SubScores{
		Momentum:   momentumScore(sig),
		Trend:      trendScore(sig),
		Volatility: volatilityScore(sig, set),
		Volume:     volumeScore(sig),
	}
	s.Overall = util.Clamp(
		s.Momentum*weightMomentum+s.Trend*weightTrend+s.Volatility*weightVolatility+s.Volume*weightVolume,
		0, 100)
	return s
}

func momentumScore(sig models.IndicatorSignals) float64 {
	score := 50.0
	switch rsi := sig.RSI.Value; {
	case rsi < 30:
		score += 20
	case rsi < 40:
		score += 10
	case rsi > 70:
		score -= 20
	case rsi > 60:
		score -= 10
	}
	switch k := sig.Stochastic.K; {
	case k < 20:
		score += 10
	case k > 80:
		score -= 10
	}
	return util.Clamp(score, 0, 100)
}

func trendScore(sig models.IndicatorSignals) float64 {
	score := 50.0
	switch sig.MA.Alignment {
	case models.AlignmentBullish:
		score += 25
	case models.AlignmentBearish:
		score -= 25
	case models.AlignmentWeakBullish:
		score += 10
	case models.AlignmentWeakBearish:
		score -= 10
	}

	step := 8.0
	if sig.MACD.Strength == models.StrengthStrong {
		step = 15
	}
	switch {
	case sig.MACD.Histogram > 0:
		score += step
	case sig.MACD.Histogram < 0:
		score -= step
	}

	if sig.Trend.ADX > 25 {
		switch sig.Trend.Direction {
		case models.TrendUp:
			score += 10
		case models.TrendDown:
			score -= 10
		}
	}
	return util.Clamp(score, 0, 100)
}

func volatilityScore(sig models.IndicatorSignals, set *models.IndicatorSet) float64 {
	score := 50.0
	switch pos := sig.Bollinger.Position; {
	case pos < 0.2:
		score += 15
	case pos > 0.8:
		score -= 15
	}
	atrRatio := util.SafeDiv(util.Last(set.ATR), util.Mean(util.Tail(set.ATR, volumeWindow)), 1)
	switch {
	case atrRatio > 1.5:
		score -= 10
	case atrRatio < 0.5:
		score += 5
	}
	return util.Clamp(score, 0, 100)
}

func volumeScore(sig models.IndicatorSignals) float64 {
	score := 50.0
	switch sig.Volume.OBVTrend {
	case models.VolumeIncreasing:
		score += 15
	case models.VolumeDecreasing:
		score -= 10
	}
	switch sig.Volume.Confirmation {
	case models.VolumeConfirmed:
		score += 10
	case models.VolumeWeak:
		score += 5
	}
	return util.Clamp(score, 0, 100)
}

// subSignals lists the labels that take part in the buy/sell consensus.
func subSignals(sig models.IndicatorSignals) []models.SignalLabel {
	return []models.SignalLabel{
		sig.RSI.Label,
		sig.MACD.Label,
		sig.Bollinger.Label,
		sig.MA.Label,
		sig.Stochastic.Label,
		sig.WilliamsR.Label,
		sig.CCI.Label,
		sig.ROC.Label,
		sig.Volume.Label,
	}
}

// confidence blends signal consensus, volume confirmation and trend strength,
// averaged over the three factors.
func confidence(sig models.IndicatorSignals) float64 {
	labels := subSignals(sig)
	var buys, sells int
	for _, l := range labels {
		switch {
		case l.IsBuy():
			buys++
		case l.IsSell():
			sells++
		}
	}
	diff := buys - sells
	if diff < 0 {
		diff = -diff
	}
	c := 0.4 * float64(diff) / float64(len(labels))

	switch sig.Volume.Confirmation {
	case models.VolumeConfirmed:
		c += 0.3
	case models.VolumeWeak:
		c += 0.15
	}
	switch sig.Trend.Strength {
	case models.TrendStrong, models.TrendVeryStrong:
		c += 0.3
	case models.TrendModerate:
		c += 0.15
	}
	return util.Clamp(c/3, 0, 1)
}
