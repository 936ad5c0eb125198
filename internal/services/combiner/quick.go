package combiner

import (
	"math"
	"time"

	"github.com/google/uuid"

	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

const (
	MethodQuick = "QUICK"
	voteEdge    = 0.3
)

type QuickInputs struct {
	TokenID    string
	Timeframe  string
	DataSource models.DataSource
	Series     []models.Candle
	Indicators *models.IndicatorAnalysis
	// Snapshot is optional; without it the market votes are neutral.
	Snapshot *models.MarketSnapshot
}

// QuickCombiner produces a verdict from the indicator engine and the market
// snapshot alone.
type QuickCombiner struct {
	now   func() time.Time
	newID func() string
}

func NewQuickCombiner() *QuickCombiner {
	return &QuickCombiner{now: time.Now, newID: uuid.NewString}
}

func (q *QuickCombiner) Combine(in QuickInputs) *models.QuickAnalysisResult {
	engineScore := 50.0
	var engineVote float64
	if in.Indicators != nil {
		engineScore = in.Indicators.Scores.Overall
		switch {
		case in.Indicators.OverallSignal.IsBuy():
			engineVote = 1
		case in.Indicators.OverallSignal.IsSell():
			engineVote = -1
		}
	}
	marketVote, pressureVote := snapshotVotes(in.Snapshot)
	avg := (engineVote + marketVote + pressureVote) / 3

	action, conf := ActionHold, 0.5+math.Abs(avg)*0.2
	switch {
	case avg > voteEdge:
		action, conf = ActionBuy, math.Min(0.95, 0.6+math.Abs(avg)*0.3)
	case avg < -voteEdge:
		action, conf = ActionSell, math.Min(0.95, 0.6+math.Abs(avg)*0.3)
	}

	score := util.Clamp(0.6*engineScore+0.4*HeuristicScore(in.Snapshot), 0, 100)
	risk, level := RiskScore(in.Snapshot)

	price := 0.0
	if n := len(in.Series); n > 0 {
		price = in.Series[n-1].Close
	}
	levels := VolumeWeightedLevels(price, 0, 0, 0)
	if in.Snapshot != nil {
		if in.Snapshot.PriceUSD > 0 {
			price = in.Snapshot.PriceUSD
		}
		levels = VolumeWeightedLevels(price, in.Snapshot.Volume24h, in.Snapshot.Buys24h, in.Snapshot.Sells24h)
	}

	return &models.QuickAnalysisResult{
		ID:          q.newID(),
		TokenID:     in.TokenID,
		Timeframe:   in.Timeframe,
		GeneratedAt: q.now().UTC(),
		DataSource:  in.DataSource,
		Signal:      models.LabelForScore(score),
		Action:      action,
		Score:       score,
		Confidence:  conf,
		RiskScore:   risk,
		RiskLevel:   level,
		Levels:      levels,
		Fibonacci:   FibonacciLevels(in.Series),
		Method:      MethodQuick,
	}
}

// snapshotVotes returns the 24h momentum vote and the buy pressure vote.
func snapshotVotes(s *models.MarketSnapshot) (float64, float64) {
	if s == nil {
		return 0, 0
	}
	var market, pressure float64
	switch {
	case s.PriceChange24h > 5 && s.Volume24h > 50000:
		market = 1
	case s.PriceChange24h < -10:
		market = -1
	}
	buys, sells := float64(s.Buys24h), float64(s.Sells24h)
	switch {
	case buys > 1.5*sells:
		pressure = 1
	case sells > 1.5*buys:
		pressure = -1
	}
	return market, pressure
}

// HeuristicScore rates the snapshot on 24h change, liquidity tier and flow.
func HeuristicScore(s *models.MarketSnapshot) float64 {
	if s == nil {
		return 50
	}
	score := 50 + util.Clamp(2*s.PriceChange24h, -25, 25)
	switch {
	case s.LiquidityUSD > 1e6:
		score += 10
	case s.LiquidityUSD > 1e5:
		score += 5
	case s.LiquidityUSD < 1e4:
		score -= 15
	}
	_, pressure := snapshotVotes(s)
	score += 10 * pressure
	return util.Clamp(score, 0, 100)
}
