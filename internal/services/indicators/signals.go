package indicators

import (
	"math"

	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

// relTol absorbs float drift in running-sum averages so a flat series compares equal.
const relTol = 1e-9

func above(a, b float64) bool { return a-b > relTol*math.Abs(b) }

func below(a, b float64) bool { return b-a > relTol*math.Abs(b) }

func deriveSignals(series []models.Candle, set *models.IndicatorSet) models.IndicatorSignals {
	price := series[len(series)-1].Close
	return models.IndicatorSignals{
		RSI:        rsiSignal(util.Last(set.RSI)),
		MACD:       macdSignalOf(price, set),
		Bollinger:  bollingerSignal(price, set),
		MA:         movingAverageSignal(price, set),
		Stochastic: stochasticSignal(set),
		WilliamsR:  thresholdSignal("williams_r", util.Last(set.WilliamsR), -80, -20),
		CCI:        thresholdSignal("cci", util.Last(set.CCI), -100, 100),
		ROC:        rocSignal(util.Last(set.ROC)),
		Volume:     volumeSignal(series, set),
		Trend:      trendOf(set),
	}
}

func rsiSignal(v float64) models.Signal {
	s := models.Signal{Name: "rsi", Value: v, Label: models.Neutral, Strength: models.StrengthWeak}
	switch {
	case v > 70:
		s.Label = models.Sell
	case v < 30:
		s.Label = models.Buy
	}
	if v > 80 || v < 20 {
		s.Strength = models.StrengthStrong
	}
	return s
}

func macdSignalOf(price float64, set *models.IndicatorSet) models.MACDResult {
	hist := util.Last(set.MACDHist)
	if math.Abs(hist) <= relTol*price {
		hist = 0
	}
	r := models.MACDResult{
		Signal:     models.Signal{Name: "macd", Value: hist, Label: models.Sell, Strength: models.StrengthWeak},
		Line:       util.Last(set.MACD),
		SignalLine: util.Last(set.MACDSignal),
		Histogram:  hist,
	}
	if hist > 0 {
		r.Label = models.Buy
	}
	if math.Abs(hist) > 0.1 {
		r.Strength = models.StrengthStrong
	}
	if len(set.MACDHist) >= 2 {
		prev := util.Prev(set.MACDHist)
		if math.Abs(prev) <= relTol*price {
			prev = 0
		}
		switch {
		case prev <= 0 && hist > 0:
			r.Crossover = models.CrossoverBullish
		case prev >= 0 && hist < 0:
			r.Crossover = models.CrossoverBearish
		}
	}
	return r
}

func bandWidth(upper, middle, lower float64) float64 {
	return util.SafeDiv(upper-lower, middle, 0)
}

func bollingerSignal(price float64, set *models.IndicatorSet) models.BollingerResult {
	up, mid, lo := util.Last(set.BBUpper), util.Last(set.BBMiddle), util.Last(set.BBLower)
	r := models.BollingerResult{
		Signal:   models.Signal{Name: "bollinger", Label: models.Neutral, Strength: models.StrengthWeak},
		Upper:    up,
		Middle:   mid,
		Lower:    lo,
		Position: util.SafeDiv(price-lo, up-lo, 0.5),
		Width:    bandWidth(up, mid, lo),
	}
	r.Value = r.Position
	switch {
	case below(price, lo):
		r.Label = models.Buy
	case above(price, up):
		r.Label = models.Sell
	}

	n := len(set.BBMiddle)
	start := n - volumeWindow
	if start < 0 {
		start = 0
	}
	widths := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		widths = append(widths, bandWidth(set.BBUpper[i], set.BBMiddle[i], set.BBLower[i]))
	}
	r.Squeeze = r.Width < 0.7*util.Mean(widths)
	return r
}

func movingAverageSignal(price float64, set *models.IndicatorSet) models.MovingAverageResult {
	r := models.MovingAverageResult{
		Signal:  models.Signal{Name: "moving_averages", Label: models.Neutral, Strength: models.StrengthWeak},
		Periods: make([]models.MAPoint, 0, len(MAPeriods)),
	}
	for _, p := range MAPeriods {
		pt := models.MAPoint{Period: p}
		sma, ok1 := set.SMA[p]
		ema, ok2 := set.EMA[p]
		if ok1 && ok2 && len(sma) > 0 && len(ema) > 0 {
			pt.Available = true
			pt.SMA, pt.EMA = util.Last(sma), util.Last(ema)
			pt.AboveSMA, pt.AboveEMA = above(price, pt.SMA), above(price, pt.EMA)
			switch {
			case pt.AboveSMA && pt.AboveEMA:
				r.BullishCount++
			case below(price, pt.SMA) && below(price, pt.EMA):
				r.BearishCount++
			}
		}
		r.Periods = append(r.Periods, pt)
	}

	switch {
	case r.BullishCount >= 4:
		r.Alignment, r.Label, r.Strength = models.AlignmentBullish, models.Buy, models.StrengthStrong
	case r.BearishCount >= 4:
		r.Alignment, r.Label, r.Strength = models.AlignmentBearish, models.Sell, models.StrengthStrong
	case r.BullishCount > r.BearishCount:
		r.Alignment, r.Label = models.AlignmentWeakBullish, models.WeakBuy
	case r.BearishCount > r.BullishCount:
		r.Alignment, r.Label = models.AlignmentWeakBearish, models.WeakSell
	default:
		r.Alignment = models.AlignmentNeutral
	}
	r.Value = float64(r.BullishCount - r.BearishCount)
	return r
}

func stochasticSignal(set *models.IndicatorSet) models.StochasticResult {
	k, d := util.Last(set.StochK), util.Last(set.StochD)
	r := models.StochasticResult{
		Signal: models.Signal{Name: "stochastic", Value: k, Label: models.Neutral, Strength: models.StrengthWeak},
		K:      k,
		D:      d,
	}
	switch {
	case k > 80:
		r.Label = models.Sell
	case k < 20:
		r.Label = models.Buy
	}
	if len(set.StochK) >= 2 && len(set.StochD) >= 2 {
		pk, pd := util.Prev(set.StochK), util.Prev(set.StochD)
		switch {
		case pk <= pd && k > d:
			r.Crossover = models.CrossoverBullish
		case pk >= pd && k < d:
			r.Crossover = models.CrossoverBearish
		}
	}
	return r
}

// thresholdSignal emits BUY below lo and SELL above hi.
func thresholdSignal(name string, v, lo, hi float64) models.Signal {
	s := models.Signal{Name: name, Value: v, Label: models.Neutral, Strength: models.StrengthWeak}
	switch {
	case v < lo:
		s.Label = models.Buy
	case v > hi:
		s.Label = models.Sell
	}
	return s
}

func rocSignal(v float64) models.Signal {
	s := models.Signal{Name: "roc", Value: v, Label: models.Neutral, Strength: models.StrengthWeak}
	switch {
	case v > 0:
		s.Label = models.Buy
	case v < 0:
		s.Label = models.Sell
	}
	return s
}

func volumeSignal(series []models.Candle, set *models.IndicatorSet) models.VolumeResult {
	vols := models.Volumes(series)
	cur := vols[len(vols)-1]
	ratio := util.SafeDiv(cur, util.Mean(util.Tail(vols, volumeWindow)), 1)

	r := models.VolumeResult{
		Signal:       models.Signal{Name: "volume", Value: ratio, Label: models.Neutral, Strength: models.StrengthWeak},
		Ratio:        ratio,
		OBVTrend:     obvTrend(set.OBV),
		Confirmation: models.VolumeUnconfirmed,
	}
	switch {
	case ratio > 1.5:
		r.Confirmation = models.VolumeConfirmed
		r.Strength = models.StrengthStrong
	case ratio > 1.2:
		r.Confirmation = models.VolumeWeak
	}
	if ratio > 1.2 {
		switch r.OBVTrend {
		case models.VolumeIncreasing:
			r.Label = models.Buy
		case models.VolumeDecreasing:
			r.Label = models.Sell
		}
	}
	return r
}

// obvTrend is the sign of the mean first difference over the trailing OBV window.
func obvTrend(obv []float64) models.VolumeTrend {
	w := util.Tail(obv, obvWindow)
	if len(w) < 2 {
		return models.VolumeNeutral
	}
	slope := (w[len(w)-1] - w[0]) / float64(len(w)-1)
	switch {
	case slope > 0:
		return models.VolumeIncreasing
	case slope < 0:
		return models.VolumeDecreasing
	default:
		return models.VolumeNeutral
	}
}

func trendOf(set *models.IndicatorSet) models.TrendResult {
	r := models.TrendResult{Direction: models.TrendSideways, ADX: util.Last(set.ADX)}
	if ema := set.EMA[20]; len(ema) >= 2 {
		switch cur, prev := util.Last(ema), util.Prev(ema); {
		case above(cur, prev):
			r.Direction = models.TrendUp
		case below(cur, prev):
			r.Direction = models.TrendDown
		}
	}
	switch {
	case r.ADX > 40:
		r.Strength = models.TrendVeryStrong
	case r.ADX > 25:
		r.Strength = models.TrendStrong
	case r.ADX > 15:
		r.Strength = models.TrendModerate
	default:
		r.Strength = models.TrendWeak
	}
	return r
}
