package combiner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/services/indicators"
	"TokenScope/internal/testutil"
)

func ptr(v float64) *float64 { return &v }

func TestQuickCombineThresholds(t *testing.T) {
	buy := &models.IndicatorAnalysis{OverallSignal: models.Buy, Scores: models.SubScores{Overall: 65}}
	sell := &models.IndicatorAnalysis{OverallSignal: models.Sell, Scores: models.SubScores{Overall: 30}}
	pump := &models.MarketSnapshot{PriceUSD: 1, PriceChange24h: 8, Volume24h: 100000, LiquidityUSD: 2e6, Buys24h: 300, Sells24h: 100}
	dump := &models.MarketSnapshot{PriceUSD: 1, PriceChange24h: -20, Volume24h: 100000, LiquidityUSD: 5000, Buys24h: 50, Sells24h: 200}

	tests := []struct {
		name   string
		in     QuickInputs
		action string
		conf   float64
	}{
		{"all bullish", QuickInputs{Indicators: buy, Snapshot: pump}, ActionBuy, 0.9},
		{"engine only", QuickInputs{Indicators: buy}, ActionBuy, 0.7},
		{"mixed", QuickInputs{Indicators: buy, Snapshot: dump}, ActionSell, 0.6 + (1.0/3)*0.3},
		{"all bearish", QuickInputs{Indicators: sell, Snapshot: dump}, ActionSell, 0.9},
		{"nothing", QuickInputs{}, ActionHold, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewQuickCombiner().Combine(tt.in)
			assert.Equal(t, tt.action, res.Action)
			assert.InDelta(t, tt.conf, res.Confidence, 1e-9)
			assert.Equal(t, MethodQuick, res.Method)
			assert.GreaterOrEqual(t, res.Score, 0.0)
			assert.LessOrEqual(t, res.Score, 100.0)
		})
	}
}

func TestQuickCombineWithEngine(t *testing.T) {
	series := testutil.Geometric(60, 100, 0.01, 1000, 0.05)
	ia, err := indicators.NewEngine().Analyze(series)
	require.NoError(t, err)

	res := NewQuickCombiner().Combine(QuickInputs{TokenID: "tok", Series: series, Indicators: ia})
	assert.NotEmpty(t, res.ID)
	assert.InDelta(t, 0.6*ia.Scores.Overall+0.4*50, res.Score, 1e-9)
	assert.Equal(t, MethodFixed, res.Levels.Method)
	assert.InDelta(t, indicators.RoundPrice(series[59].Close*0.97), res.Levels.Supports[0].Price, 1e-9)
	assert.Len(t, res.Fibonacci.Supports, 4)
}

func TestHeuristicScore(t *testing.T) {
	assert.Equal(t, 50.0, HeuristicScore(nil))
	s := &models.MarketSnapshot{PriceChange24h: 30, LiquidityUSD: 2e6, Buys24h: 200, Sells24h: 100}
	assert.Equal(t, 95.0, HeuristicScore(s))
	s = &models.MarketSnapshot{PriceChange24h: -5, LiquidityUSD: 5000, Buys24h: 100, Sells24h: 200}
	assert.Equal(t, 15.0, HeuristicScore(s))
}

func TestRiskScore(t *testing.T) {
	safe := &models.MarketSnapshot{
		LiquidityUSD: 5e6, MarketCap: 5e7,
		Rugcheck: models.Rugcheck{Score: ptr(1), LPLockedPct: ptr(100)},
	}
	score, level := RiskScore(safe)
	assert.InDelta(t, 0.05, score, 1e-9)
	assert.Equal(t, RiskLow, level)

	rugged := &models.MarketSnapshot{PriceChange24h: -80, Rugcheck: models.Rugcheck{Rugged: true}}
	score, level = RiskScore(rugged)
	assert.InDelta(t, 1, score, 1e-9)
	assert.Equal(t, RiskHigh, level)

	score, level = RiskScore(nil)
	assert.InDelta(t, 0.45+0.2+0.15+0.05, score, 1e-9)
	assert.Equal(t, RiskHigh, level)

	mid := &models.MarketSnapshot{LiquidityUSD: 5e5, MarketCap: 5e6, PriceChange24h: 10, Rugcheck: models.Rugcheck{Score: ptr(7), LPLockedPct: ptr(40)}}
	score, level = RiskScore(mid)
	assert.InDelta(t, 0.3+0.1+0.075+0.02+0.025, score, 1e-9)
	assert.Equal(t, RiskMedium, level)
}

func TestRiskScoreUnscoredTokenIsNotLow(t *testing.T) {
	// deep liquidity and a fully locked LP cannot hide a missing rugcheck score
	unscored := &models.MarketSnapshot{
		LiquidityUSD: 5e6, MarketCap: 5e7,
		Rugcheck: models.Rugcheck{LPLockedPct: ptr(100)},
	}
	score, level := RiskScore(unscored)
	assert.InDelta(t, 0.45, score, 1e-9)
	assert.Equal(t, RiskMedium, level)

	worst := &models.MarketSnapshot{
		LiquidityUSD: 5e6, MarketCap: 5e7,
		Rugcheck: models.Rugcheck{Score: ptr(50), LPLockedPct: ptr(100)},
	}
	worstScore, _ := RiskScore(worst)
	assert.InDelta(t, worstScore, score, 1e-9)
}

func TestFibonacciOrdering(t *testing.T) {
	series := testutil.Wave(80, 100, 0.1, 20, 0)
	set := FibonacciLevels(series)
	require.Len(t, set.Supports, 4)
	require.Len(t, set.Resistances, 2)
	for i := 1; i < len(set.Supports); i++ {
		assert.Greater(t, set.Supports[i].Price, set.Supports[i-1].Price)
	}
	assert.Greater(t, set.Resistances[1].Price, set.Resistances[0].Price)
	assert.InDelta(t, set.Supports[3].Price, set.Resistances[0].Price, 2e-8)

	assert.Empty(t, FibonacciLevels(nil).Supports)
}

func TestVolumeWeightedLevels(t *testing.T) {
	set := VolumeWeightedLevels(100, 2e6, 750, 250)
	assert.Equal(t, MethodVolumeWeighted, set.Method)
	assert.InDelta(t, 96.25, set.Supports[0].Price, 1e-9)
	assert.InDelta(t, 92.5, set.Supports[1].Price, 1e-9)
	assert.InDelta(t, 103.25, set.Resistances[0].Price, 1e-9)
	assert.InDelta(t, 106.5, set.Resistances[1].Price, 1e-9)
	assert.InDelta(t, 0.9, set.Supports[0].Confidence, 1e-9)
	assert.InDelta(t, 0.8, set.Resistances[1].Confidence, 1e-9)

	fixed := VolumeWeightedLevels(100, 0, 0, 0)
	assert.Equal(t, MethodFixed, fixed.Method)
	assert.InDelta(t, 0.3, fixed.Supports[0].Confidence, 1e-9)
}
