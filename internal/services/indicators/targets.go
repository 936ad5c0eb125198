package indicators

import (
	"math"

	"github.com/shopspring/decimal"

	"TokenScope/internal/domain/models"
)

// PriceSigDigits is the number of significant digits kept on price levels.
// Memecoin prices span from 1e-10 to 1e5, so a fixed decimal count would
// zero the smallest of them.
const PriceSigDigits = 8

// RoundPrice rounds a price to PriceSigDigits significant digits.
func RoundPrice(v float64) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	places := PriceSigDigits - 1 - int(math.Floor(math.Log10(math.Abs(v))))
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}

func priceTargets(price float64, bb models.BollingerResult, atr float64) models.PriceTargets {
	if atr < 0 || math.IsNaN(atr) || math.IsInf(atr, 0) {
		atr = 0
	}
	support := math.Min(bb.Lower, price-atr)
	resistance := math.Max(bb.Upper, price+atr)
	return models.PriceTargets{
		Entry:       RoundPrice(price),
		StopLoss:    RoundPrice(math.Max(price-1.5*atr, 0)),
		TakeProfit1: RoundPrice(price + atr),
		TakeProfit2: RoundPrice(price + 2*atr),
		Support:     RoundPrice(math.Max(support, 0)),
		Resistance:  RoundPrice(resistance),
		RiskReward:  decimal.NewFromFloat(2).Div(decimal.NewFromFloat(1.5)).Round(4).InexactFloat64(),
	}
}
