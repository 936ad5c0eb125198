package features

import (
	"fmt"
	"math"

	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

// MinCandles is the shortest series the extractor accepts.
const MinCandles = 21

const (
	window      = 20
	realizedWin = 20
)

// Extractor turns a series plus its indicator analysis into a flat FeatureVector.
type Extractor struct {
	timeframe string
}

func NewExtractor(timeframe string) *Extractor {
	return &Extractor{timeframe: timeframe}
}

// Extract computes price, technical, volume, statistical and pattern features
// for the last candle. analysis may be nil, in which case technical features are skipped.
func (e *Extractor) Extract(series []models.Candle, analysis *models.IndicatorAnalysis) (models.FeatureVector, error) {
	if len(series) < MinCandles {
		return nil, &models.InsufficientDataError{Op: "features", Timeframe: e.timeframe, Have: len(series), Need: MinCandles}
	}
	fv := models.FeatureVector{}
	closes := models.Closes(series)

	priceFeatures(fv, series, closes)
	logRets := ComputeLogReturns(series)
	fv["price_log_return_mean"] = util.Mean(util.Tail(logRets, window))
	fv["price_realized_vol"] = RealizedVolatility(logRets, realizedWin, BarsPerYearForTF(e.timeframe))
	if analysis != nil && analysis.Set != nil {
		technicalFeatures(fv, analysis)
	}
	volumeFeatures(fv, series, closes)
	statisticalFeatures(fv, closes)
	patternFeatures(fv, series)

	for k, v := range fv {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %s is not finite", k)
		}
	}
	return fv, nil
}

func priceFeatures(fv models.FeatureVector, series []models.Candle, closes []float64) {
	n := len(closes)
	last := closes[n-1]
	for _, k := range []int{1, 5, 10, 20} {
		fv[fmt.Sprintf("price_return_%d", k)] = util.SafeDiv(last, closes[n-1-k], 1) - 1
	}
	for _, k := range []int{5, 10} {
		fv[fmt.Sprintf("price_momentum_%d", k)] = last - closes[n-1-k]
	}
	fv["price_roc_10"] = (util.SafeDiv(last, closes[n-11], 1) - 1) * 100

	tail := models.Tail(series, window)
	lo, _ := util.MinMax(models.Lows(tail))
	_, hi := util.MinMax(models.Highs(tail))
	fv["price_hl_position_20"] = util.SafeDiv(last-lo, hi-lo, 0.5)
	fv["price_atr"] = averageTrueRange(tail)
}

func averageTrueRange(series []models.Candle) float64 {
	if len(series) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(series); i++ {
		c, pc := series[i], series[i-1].Close
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-pc), math.Abs(c.Low-pc)))
		sum += tr
	}
	return sum / float64(len(series)-1)
}

func technicalFeatures(fv models.FeatureVector, a *models.IndicatorAnalysis) {
	set := a.Set
	price := a.Close
	fv["tech_rsi"] = util.Last(set.RSI)
	fv["tech_macd"] = util.Last(set.MACD)
	fv["tech_macd_signal"] = util.Last(set.MACDSignal)
	fv["tech_macd_hist"] = util.Last(set.MACDHist)
	fv["tech_bb_upper"] = util.Last(set.BBUpper)
	fv["tech_bb_middle"] = util.Last(set.BBMiddle)
	fv["tech_bb_lower"] = util.Last(set.BBLower)
	fv["tech_bb_position"] = a.Signals.Bollinger.Position
	fv["tech_bb_width"] = a.Signals.Bollinger.Width
	fv["tech_stoch_k"] = util.Last(set.StochK)
	fv["tech_stoch_d"] = util.Last(set.StochD)
	fv["tech_williams_r"] = util.Last(set.WilliamsR)
	fv["tech_cci"] = util.Last(set.CCI)
	fv["tech_roc"] = util.Last(set.ROC)
	fv["tech_obv"] = util.Last(set.OBV)
	fv["tech_atr"] = util.Last(set.ATR)
	fv["tech_adx"] = util.Last(set.ADX)
	for p, sma := range set.SMA {
		if len(sma) == 0 {
			continue
		}
		fv[fmt.Sprintf("tech_sma_%d", p)] = util.Last(sma)
		fv[fmt.Sprintf("tech_close_sma_%d", p)] = util.SafeDiv(price, util.Last(sma), 1)
	}
	for p, ema := range set.EMA {
		if len(ema) == 0 {
			continue
		}
		fv[fmt.Sprintf("tech_ema_%d", p)] = util.Last(ema)
		fv[fmt.Sprintf("tech_close_ema_%d", p)] = util.SafeDiv(price, util.Last(ema), 1)
	}
	if s5, s20 := set.SMA[5], set.SMA[20]; len(s5) > 0 && len(s20) > 0 {
		fv["tech_sma5_sma20"] = util.SafeDiv(util.Last(s5), util.Last(s20), 1)
	}
}

func volumeFeatures(fv models.FeatureVector, series []models.Candle, closes []float64) {
	vols := models.Volumes(series)
	tailVols := util.Tail(vols, window)
	fv["vol_ratio_20"] = util.SafeDiv(util.Last(vols), util.Mean(tailVols), 1)
	fv["vol_std_20"] = util.StdDev(tailVols)
	fv["vol_price_corr_20"] = util.Pearson(util.Tail(closes, window), tailVols)

	pvt := 0.0
	for i := 1; i < len(series); i++ {
		pvt += vols[i] * util.SafeDiv(closes[i]-closes[i-1], closes[i-1], 0)
	}
	fv["vol_pvt"] = pvt

	var pv, v float64
	for _, c := range models.Tail(series, window) {
		typical := (c.High + c.Low + c.Close) / 3
		pv += typical * c.Volume
		v += c.Volume
	}
	fv["vol_vwap_20"] = util.SafeDiv(pv, v, util.Last(closes))
}

func statisticalFeatures(fv models.FeatureVector, closes []float64) {
	rets := util.SimpleReturns(closes)
	fv["stat_volatility"] = util.StdDev(rets)
	fv["stat_skewness"] = util.Skewness(rets)
	fv["stat_kurtosis"] = util.Kurtosis(rets)
	fv["stat_max_drawdown"] = MaxDrawdown(closes)
	fv["stat_mean_reversion"] = util.Clamp(-lag1Autocorrelation(rets), -1, 1)
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of the peak.
func MaxDrawdown(closes []float64) float64 {
	peak, mdd := 0.0, 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if dd := util.SafeDiv(peak-c, peak, 0); dd > mdd {
			mdd = dd
		}
	}
	return mdd
}

func lag1Autocorrelation(xs []float64) float64 {
	if len(xs) < 3 {
		return 0
	}
	return util.Pearson(xs[:len(xs)-1], xs[1:])
}

func patternFeatures(fv models.FeatureVector, series []models.Candle) {
	c := series[len(series)-1]
	rng := c.High - c.Low
	body := math.Abs(c.Close - c.Open)
	fv["pattern_body_ratio"] = util.SafeDiv(body, rng, 0)
	fv["pattern_upper_shadow"] = util.SafeDiv(c.High-math.Max(c.Open, c.Close), rng, 0)
	fv["pattern_lower_shadow"] = util.SafeDiv(math.Min(c.Open, c.Close)-c.Low, rng, 0)

	up, down := 0, 0
	for i := len(series) - 1; i > 0 && series[i].Close > series[i-1].Close; i-- {
		up++
	}
	for i := len(series) - 1; i > 0 && series[i].Close < series[i-1].Close; i-- {
		down++
	}
	fv["pattern_consecutive_up"] = float64(up)
	fv["pattern_consecutive_down"] = float64(down)
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over a rolling window
// using the provided number of bars per year. Returns the latest window sigma.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	// annualize
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a timeframe.
func BarsPerYearForTF(tf string) float64 {
	switch tf {
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	case "15m":
		return 365 * 24 * 4
	case "1h":
		return 365 * 24
	case "4h":
		return 365 * 6
	case "1d":
		return 365
	default:
		return 365 * 24
	}
}
