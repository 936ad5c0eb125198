// Package patterns scores candlestick formations and swing structures.
package patterns

import (
	"math"

	"TokenScope/internal/domain/models"
	domsvc "TokenScope/internal/domain/service"
	"TokenScope/pkg/util"
)

const (
	DefaultLookback  = 3
	DefaultTolerance = 0.02
	trendBars        = 5

	weightDoji      = 5.0
	weightHammer    = 10.0
	weightStar      = 10.0
	weightEngulfing = 15.0
	weightDouble    = 20.0
)

const (
	NameDoji             = "doji"
	NameHammer           = "hammer"
	NameShootingStar     = "shooting_star"
	NameBullishEngulfing = "bullish_engulfing"
	NameBearishEngulfing = "bearish_engulfing"
	NameDoubleTop        = "double_top"
	NameDoubleBottom     = "double_bottom"
)

type Detector struct {
	lookback  int
	tolerance float64
}

func NewDetector() *Detector {
	return &Detector{lookback: DefaultLookback, tolerance: DefaultTolerance}
}

// Detect inspects the last candles for reversal formations and the whole
// series for double tops and bottoms. Score is 50 when nothing is found.
func (d *Detector) Detect(series []models.Candle) *models.PatternResult {
	res := &models.PatternResult{Patterns: []models.DetectedPattern{}, Score: 50}
	if len(series) < 2 {
		return res
	}
	res.Patterns = append(res.Patterns, d.candlestick(series)...)
	res.Patterns = append(res.Patterns, d.doubles(series)...)

	score := 50.0
	for _, p := range res.Patterns {
		if p.Bias == models.PatternBullish {
			score += p.Weight
		} else {
			score -= p.Weight
		}
	}
	res.Score = util.Clamp(score, 0, 100)
	return res
}

func body(c models.Candle) float64 { return math.Abs(c.Close - c.Open) }
func span(c models.Candle) float64 { return c.High - c.Low }
func upperShadow(c models.Candle) float64 { return c.High - math.Max(c.Open, c.Close) }
func lowerShadow(c models.Candle) float64 { return math.Min(c.Open, c.Close) - c.Low }
func bullish(c models.Candle) bool { return c.Close > c.Open }
func bearish(c models.Candle) bool { return c.Close < c.Open }

// priorTrend is +1, -1 or 0 for the move into the candle at idx.
func priorTrend(series []models.Candle, idx int) int {
	if idx < trendBars {
		return 0
	}
	from, to := series[idx-trendBars].Close, series[idx-1].Close
	switch {
	case to > from*1.01:
		return 1
	case to < from*0.99:
		return -1
	}
	return 0
}

func (d *Detector) candlestick(series []models.Candle) []models.DetectedPattern {
	var out []models.DetectedPattern
	idx := len(series) - 1
	cur, prev := series[idx], series[idx-1]
	trend := priorTrend(series, idx)

	if r := span(cur); r > 0 {
		b := body(cur)
		switch {
		case b <= 0.1*r && trend != 0:
			bias := models.PatternBullish
			if trend > 0 {
				bias = models.PatternBearish
			}
			out = append(out, models.DetectedPattern{Name: NameDoji, Bias: bias, Weight: weightDoji, Index: idx})
		case b > 0 && lowerShadow(cur) >= 2*b && upperShadow(cur) <= b && trend < 0:
			out = append(out, models.DetectedPattern{Name: NameHammer, Bias: models.PatternBullish, Weight: weightHammer, Index: idx})
		case b > 0 && upperShadow(cur) >= 2*b && lowerShadow(cur) <= b && trend > 0:
			out = append(out, models.DetectedPattern{Name: NameShootingStar, Bias: models.PatternBearish, Weight: weightStar, Index: idx})
		}
	}

	switch {
	case bearish(prev) && bullish(cur) && cur.Open <= prev.Close && cur.Close >= prev.Open && body(cur) > body(prev):
		out = append(out, models.DetectedPattern{Name: NameBullishEngulfing, Bias: models.PatternBullish, Weight: weightEngulfing, Index: idx})
	case bullish(prev) && bearish(cur) && cur.Open >= prev.Close && cur.Close <= prev.Open && body(cur) > body(prev):
		out = append(out, models.DetectedPattern{Name: NameBearishEngulfing, Bias: models.PatternBearish, Weight: weightEngulfing, Index: idx})
	}
	return out
}

type swingPoint struct {
	price float64
	index int
}

func (d *Detector) swings(series []models.Candle, high bool) []swingPoint {
	var points []swingPoint
	for i := d.lookback; i < len(series)-d.lookback; i++ {
		v := series[i].Low
		if high {
			v = series[i].High
		}
		isSwing := true
		for j := 1; j <= d.lookback && isSwing; j++ {
			a, b := series[i-j].Low, series[i+j].Low
			if high {
				a, b = series[i-j].High, series[i+j].High
				isSwing = a < v && b < v
			} else {
				isSwing = a > v && b > v
			}
		}
		if isSwing {
			points = append(points, swingPoint{price: v, index: i})
		}
	}
	return points
}

// doubles reports a double top when the last two swing highs sit within
// tolerance of each other and price has since closed below both by at least
// tolerance. Double bottoms mirror this.
func (d *Detector) doubles(series []models.Candle) []models.DetectedPattern {
	var out []models.DetectedPattern
	last := series[len(series)-1].Close

	if hs := d.swings(series, true); len(hs) >= 2 {
		a, b := hs[len(hs)-2], hs[len(hs)-1]
		top := math.Max(a.price, b.price)
		if math.Abs(a.price-b.price)/top <= d.tolerance && last < math.Min(a.price, b.price)*(1-d.tolerance) {
			out = append(out, models.DetectedPattern{Name: NameDoubleTop, Bias: models.PatternBearish, Weight: weightDouble, Index: b.index})
		}
	}
	if ls := d.swings(series, false); len(ls) >= 2 {
		a, b := ls[len(ls)-2], ls[len(ls)-1]
		bottom := math.Min(a.price, b.price)
		if bottom > 0 && math.Abs(a.price-b.price)/bottom <= d.tolerance && last > math.Max(a.price, b.price)*(1+d.tolerance) {
			out = append(out, models.DetectedPattern{Name: NameDoubleBottom, Bias: models.PatternBullish, Weight: weightDouble, Index: b.index})
		}
	}
	return out
}

var _ domsvc.PatternDetector = (*Detector)(nil)
