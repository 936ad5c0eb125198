package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"TokenScope/internal/domain/models"
	domsvc "TokenScope/internal/domain/service"
	"TokenScope/pkg/util"
)

// MinCandles is the shortest series the engine analyzes.
const MinCandles = 50

const (
	rsiPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	bbPeriod     = 20
	bbDev        = 2.0
	stochK       = 14
	stochD       = 3
	willRPeriod  = 14
	cciPeriod    = 20
	rocPeriod    = 10
	atrPeriod    = 14
	adxPeriod    = 14
	volumeWindow = 20
	obvWindow    = 10
)

// MAPeriods are the moving-average periods checked for alignment.
var MAPeriods = []int{5, 10, 20, 50, 200}

// Engine computes the indicator battery and derived signals for a candle series.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	minCandles int
}

type Option func(*Engine)

// WithMinCandles overrides the minimum series length. Values below MinCandles are ignored.
func WithMinCandles(n int) Option {
	return func(e *Engine) {
		if n >= MinCandles {
			e.minCandles = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{minCandles: MinCandles}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze computes indicators, signals, scores, confidence and price targets.
func (e *Engine) Analyze(series []models.Candle) (*models.IndicatorAnalysis, error) {
	set, err := e.Compute(series)
	if err != nil {
		return nil, err
	}
	last := series[len(series)-1].Close
	sig := deriveSignals(series, set)
	scores := scoreSignals(sig, set)
	return &models.IndicatorAnalysis{
		Close:         last,
		Candles:       len(series),
		Signals:       sig,
		Scores:        scores,
		OverallSignal: models.LabelForScore(scores.Overall),
		Confidence:    confidence(sig),
		Targets:       priceTargets(last, sig.Bollinger, util.Last(set.ATR)),
		Set:           set,
	}, nil
}

// Compute returns the raw indicator arrays, each trimmed of its lookback prefix.
func (e *Engine) Compute(series []models.Candle) (*models.IndicatorSet, error) {
	if len(series) < e.minCandles {
		return nil, &models.InsufficientDataError{Op: "indicators", Have: len(series), Need: e.minCandles}
	}
	closes := models.Closes(series)
	highs := models.Highs(series)
	lows := models.Lows(series)
	vols := models.Volumes(series)

	// talib compares against absolute epsilons, so prices are normalized to the
	// last close and price-denominated outputs are scaled back.
	scale := closes[len(closes)-1]
	if scale <= 0 {
		scale = 1
	}
	nc, nh, nl := normalize(closes, scale), normalize(highs, scale), normalize(lows, scale)

	set := &models.IndicatorSet{
		SMA: make(map[int][]float64, len(MAPeriods)),
		EMA: make(map[int][]float64, len(MAPeriods)),
	}

	set.RSI = wilderRSI(closes, rsiPeriod)

	m, sg, h := talib.Macd(nc, macdFast, macdSlow, macdSignal)
	lb := macdSlow - 1 + macdSignal - 1
	set.MACD, set.MACDSignal, set.MACDHist = rescale(m, lb, scale), rescale(sg, lb, scale), rescale(h, lb, scale)

	up, mid, lo := talib.BBands(nc, bbPeriod, bbDev, bbDev, talib.SMA)
	set.BBUpper = rescale(up, bbPeriod-1, scale)
	set.BBMiddle = rescale(mid, bbPeriod-1, scale)
	set.BBLower = rescale(lo, bbPeriod-1, scale)

	for _, p := range MAPeriods {
		if len(closes) < p {
			continue
		}
		set.SMA[p] = rescale(talib.Sma(nc, p), p-1, scale)
		set.EMA[p] = rescale(talib.Ema(nc, p), p-1, scale)
	}

	set.StochK, set.StochD = fastStochastic(highs, lows, closes, stochK, stochD)
	set.WilliamsR = williamsR(highs, lows, closes, willRPeriod)
	set.CCI = trim(talib.Cci(nh, nl, nc, cciPeriod), cciPeriod-1)
	set.ROC = trim(talib.Roc(closes, rocPeriod), rocPeriod)
	set.OBV = talib.Obv(closes, vols)
	set.ATR = rescale(talib.Atr(nh, nl, nc, atrPeriod), atrPeriod, scale)
	set.ADX = trim(talib.Adx(nh, nl, nc, adxPeriod), 2*adxPeriod-1)

	for name, arr := range map[string][]float64{
		"rsi": set.RSI, "macd": set.MACDHist, "bollinger": set.BBMiddle,
		"stochastic": set.StochD, "williams_r": set.WilliamsR, "cci": set.CCI,
		"roc": set.ROC, "atr": set.ATR, "adx": set.ADX,
	} {
		if len(arr) == 0 {
			return nil, fmt.Errorf("indicator %s: %w", name,
				&models.InsufficientDataError{Op: "indicators", Have: len(series), Need: e.minCandles})
		}
	}
	return set, nil
}

func normalize(xs []float64, scale float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x / scale
	}
	return out
}

// rescale trims the lookback prefix and converts normalized values back to price units.
func rescale(values []float64, lookback int, scale float64) []float64 {
	out := trim(values, lookback)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// trim drops talib's zero-filled lookback prefix. Non-finite values become 0.
func trim(values []float64, lookback int) []float64 {
	if lookback >= len(values) {
		return nil
	}
	out := make([]float64, len(values)-lookback)
	for i, v := range values[lookback:] {
		out[i] = util.Finite(v, 0)
	}
	return out
}

var _ domsvc.IndicatorAnalyzer = (*Engine)(nil)
