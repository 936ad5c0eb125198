package combiner

import (
	"math"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/services/indicators"
)

const (
	MethodFibonacci      = "FIBONACCI"
	MethodVolumeWeighted = "VOLUME_WEIGHTED"
	MethodFixed          = "FIXED_PERCENT"
)

// FibonacciLevels places retracement supports above the series low and two
// resistances below the series high.
func FibonacciLevels(series []models.Candle) models.LevelSet {
	set := models.LevelSet{Supports: []models.PriceLevel{}, Resistances: []models.PriceLevel{}, Method: MethodFibonacci}
	if len(series) == 0 {
		return set
	}
	low, high := math.Inf(1), math.Inf(-1)
	for _, c := range series {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	span := high - low
	for _, r := range []float64{0.236, 0.382, 0.5, 0.618} {
		set.Supports = append(set.Supports, models.PriceLevel{Price: indicators.RoundPrice(low + span*r), Confidence: r})
	}
	for _, r := range []float64{0.382, 0.214} {
		set.Resistances = append(set.Resistances, models.PriceLevel{Price: indicators.RoundPrice(high - span*r), Confidence: 1 - r})
	}
	return set
}

// VolumeWeightedLevels shifts fixed percentage levels by the 24h buy and sell
// share. Without transactions it returns the unshifted levels.
func VolumeWeightedLevels(price, volume24h float64, buys, sells int) models.LevelSet {
	total := buys + sells
	if total == 0 {
		return models.LevelSet{
			Supports: []models.PriceLevel{
				{Price: indicators.RoundPrice(price * 0.97), Confidence: 0.3},
				{Price: indicators.RoundPrice(price * 0.94), Confidence: 0.2},
			},
			Resistances: []models.PriceLevel{
				{Price: indicators.RoundPrice(price * 1.03), Confidence: 0.3},
				{Price: indicators.RoundPrice(price * 1.06), Confidence: 0.2},
			},
			Method: MethodFixed,
		}
	}
	bw := float64(buys) / float64(total)
	sw := float64(sells) / float64(total)
	base := (math.Min(volume24h/1e6, 1) + math.Min(float64(total)/1000, 1)) / 2

	return models.LevelSet{
		Supports: []models.PriceLevel{
			{Price: indicators.RoundPrice(price * (0.97 - bw*0.01)), Confidence: math.Min(base+bw*0.3, 0.9)},
			{Price: indicators.RoundPrice(price * (0.94 - bw*0.02)), Confidence: math.Min(base+bw*0.2, 0.8)},
		},
		Resistances: []models.PriceLevel{
			{Price: indicators.RoundPrice(price * (1.03 + sw*0.01)), Confidence: math.Min(base+sw*0.3, 0.9)},
			{Price: indicators.RoundPrice(price * (1.06 + sw*0.02)), Confidence: math.Min(base+sw*0.2, 0.8)},
		},
		Method: MethodVolumeWeighted,
	}
}
