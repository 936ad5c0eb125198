package combiner

import (
	"math"

	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// RiskScore rates a token from 0 (safe) to 1 (dangerous) using rugcheck,
// liquidity, market cap, 24h volatility and LP lock share.
func RiskScore(s *models.MarketSnapshot) (float64, string) {
	if s == nil {
		s = &models.MarketSnapshot{}
	}
	// a token rugcheck has not scored rates like the worst score band
	var rug float64
	switch {
	case s.Rugcheck.Rugged:
		rug = 1
	case s.Rugcheck.Score == nil:
		rug = 0.9
	case *s.Rugcheck.Score <= 1:
		rug = 0.1
	case *s.Rugcheck.Score <= 5:
		rug = 0.3
	case *s.Rugcheck.Score <= 10:
		rug = 0.6
	default:
		rug = 0.9
	}
	liquidity := math.Max(0, 1-s.LiquidityUSD/1e6)
	mcap := math.Max(0, 1-s.MarketCap/1e7)
	volatility := math.Min(1, math.Abs(s.PriceChange24h)/50)
	lpLocked := 0.0
	if s.Rugcheck.LPLockedPct != nil {
		lpLocked = *s.Rugcheck.LPLockedPct
	}
	lp := math.Max(0, 1-lpLocked/80)

	score := util.Clamp(rug*0.5+liquidity*0.2+mcap*0.15+volatility*0.1+lp*0.05, 0, 1)
	return score, riskLevel(score)
}

func riskLevel(score float64) string {
	switch {
	case score < 0.3:
		return RiskLow
	case score < 0.6:
		return RiskMedium
	default:
		return RiskHigh
	}
}
