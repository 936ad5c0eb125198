package regime

import (
	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

// WindowFeatures summarizes one sliding window of candles.
type WindowFeatures struct {
	MeanReturn       float64 `json:"mean_return"`
	ReturnVolatility float64 `json:"return_volatility"`
	ReturnSkew       float64 `json:"return_skew"`
	ReturnKurtosis   float64 `json:"return_kurtosis"`
	PriceChange      float64 `json:"price_change"`
	PriceVolatility  float64 `json:"price_volatility"`
	VolumeRatio      float64 `json:"volume_ratio"`
	VolumeVolatility float64 `json:"volume_volatility"`
	HighLowRatio     float64 `json:"high_low_ratio"`
	AverageRange     float64 `json:"average_range"`
	Momentum         float64 `json:"momentum"`
	SimpleRSI        float64 `json:"simple_rsi"`
}

// Reduced is the 5-dimensional projection used for clustering.
func (w WindowFeatures) Reduced() []float64 {
	return []float64{w.MeanReturn, w.ReturnVolatility, w.PriceChange, w.VolumeRatio, w.Momentum}
}

const momentumLag = 10

// ExtractWindows computes features over series[t-window : t+1] for every t >= window.
func ExtractWindows(series []models.Candle, window int) []WindowFeatures {
	if len(series) <= window {
		return nil
	}
	out := make([]WindowFeatures, 0, len(series)-window)
	for t := window; t < len(series); t++ {
		out = append(out, windowFeatures(series[t-window:t+1]))
	}
	return out
}

func windowFeatures(seg []models.Candle) WindowFeatures {
	closes := models.Closes(seg)
	vols := models.Volumes(seg)
	rets := util.SimpleReturns(closes)
	first, last := closes[0], closes[len(closes)-1]

	w := WindowFeatures{
		MeanReturn:       util.Mean(rets),
		ReturnVolatility: util.StdDev(rets),
		ReturnSkew:       util.Skewness(rets),
		ReturnKurtosis:   util.Kurtosis(rets),
		PriceChange:      util.SafeDiv(last-first, first, 0),
		PriceVolatility:  util.SafeDiv(util.StdDev(closes), util.Mean(closes), 0),
		VolumeRatio:      util.SafeDiv(util.Last(vols), util.Mean(vols), 1),
		VolumeVolatility: util.SafeDiv(util.StdDev(vols), util.Mean(vols), 0),
		SimpleRSI:        simpleRSI(rets),
	}

	lo, _ := util.MinMax(models.Lows(seg))
	_, hi := util.MinMax(models.Highs(seg))
	w.HighLowRatio = util.SafeDiv(hi, lo, 1)

	ranges := make([]float64, len(seg))
	for i, c := range seg {
		ranges[i] = util.SafeDiv(c.High-c.Low, c.Close, 0)
	}
	w.AverageRange = util.Mean(ranges)

	if len(closes) > momentumLag {
		ref := closes[len(closes)-1-momentumLag]
		w.Momentum = util.SafeDiv(last, ref, 1) - 1
	}
	return w
}

// simpleRSI uses plain averages of gains and losses over the window.
func simpleRSI(rets []float64) float64 {
	var gain, loss float64
	for _, r := range rets {
		if r > 0 {
			gain += r
		} else {
			loss -= r
		}
	}
	switch {
	case gain == 0 && loss == 0:
		return 50
	case loss == 0:
		return 100
	default:
		return 100 - 100/(1+gain/loss)
	}
}
