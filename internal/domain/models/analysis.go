package models

import "time"

type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// PricePrediction is the output of a PriceDirectionPredictor.
type PricePrediction struct {
	Direction       Direction `json:"direction"`
	Probability     float64   `json:"probability"`
	PredictedChange float64   `json:"predicted_change"`
	Model           string    `json:"model"`
}

type MarketTrend string

const (
	MarketBullish MarketTrend = "BULLISH"
	MarketBearish MarketTrend = "BEARISH"
	MarketNeutral MarketTrend = "NEUTRAL"
)

type AlignmentStrength string

const (
	AlignStrong   AlignmentStrength = "STRONG"
	AlignModerate AlignmentStrength = "MODERATE"
	AlignWeak     AlignmentStrength = "WEAK"
)

type TimeframeTrend struct {
	Timeframe     string      `json:"timeframe"`
	Candles       int         `json:"candles"`
	Trend         MarketTrend `json:"trend"`
	Change        float64     `json:"change"`
	Momentum      float64     `json:"momentum"`
	TrendStrength float64     `json:"trend_strength"`
	Confidence    float64     `json:"confidence"`
	Score         *float64    `json:"score,omitempty"`
	Signal        SignalLabel `json:"signal,omitempty"`
}

type MultiTimeframeResult struct {
	Timeframes        []TimeframeTrend  `json:"timeframes"`
	BullishCount      int               `json:"bullish_count"`
	BearishCount      int               `json:"bearish_count"`
	NeutralCount      int               `json:"neutral_count"`
	Consensus         MarketTrend       `json:"consensus"`
	AlignmentPct      float64           `json:"alignment_pct"`
	AlignmentStrength AlignmentStrength `json:"alignment_strength"`
	WeightedScore     float64           `json:"weighted_score"`
	WeightedTrend     MarketTrend       `json:"weighted_trend"`
	Errors            map[string]string `json:"errors,omitempty"`
}

type PatternBias string

const (
	PatternBullish PatternBias = "BULLISH"
	PatternBearish PatternBias = "BEARISH"
)

type DetectedPattern struct {
	Name   string      `json:"name"`
	Bias   PatternBias `json:"bias"`
	Weight float64     `json:"weight"`
	Index  int         `json:"index"`
}

type PatternResult struct {
	Patterns []DetectedPattern `json:"patterns"`
	Score    float64           `json:"score"`
}

type ComponentScores struct {
	Traditional    float64 `json:"traditional"`
	ML             float64 `json:"ml"`
	MultiTimeframe float64 `json:"multi_timeframe"`
	Patterns       float64 `json:"patterns"`
	HMM            float64 `json:"hmm"`
}

type Recommendation struct {
	Action       string `json:"action"`
	PositionSize string `json:"position_size"`
}

type DataSource string

const (
	SourceStore     DataSource = "STORE"
	SourceProvider  DataSource = "PROVIDER"
	SourceSynthetic DataSource = "SYNTHETIC"
)

// AnalysisResult is the full verdict for one token and timeframe.
type AnalysisResult struct {
	ID              string                `json:"id"`
	TokenID         string                `json:"token_id"`
	Timeframe       string                `json:"timeframe"`
	GeneratedAt     time.Time             `json:"generated_at"`
	DataSource      DataSource            `json:"data_source"`
	OverallSignal   SignalLabel           `json:"overall_signal"`
	OverallScore    float64               `json:"overall_score"`
	Confidence      float64               `json:"confidence"`
	Recommendation  Recommendation        `json:"recommendation"`
	ComponentScores ComponentScores       `json:"component_scores"`
	PriceTargets    PriceTargets          `json:"price_targets"`
	Regime          *RegimePrediction     `json:"regime"`
	Indicators      *IndicatorAnalysis    `json:"indicators,omitempty"`
	MultiTimeframe  *MultiTimeframeResult `json:"multi_timeframe,omitempty"`
	Prediction      *PricePrediction      `json:"prediction,omitempty"`
	Patterns        *PatternResult        `json:"patterns,omitempty"`
	Training        *TrainingSummary      `json:"training,omitempty"`
	Features        FeatureVector         `json:"features,omitempty"`
}

type PriceLevel struct {
	Price      float64 `json:"price"`
	Confidence float64 `json:"confidence"`
}

type LevelSet struct {
	Supports    []PriceLevel `json:"supports"`
	Resistances []PriceLevel `json:"resistances"`
	Method      string       `json:"method"`
}

// QuickAnalysisResult is the fast-path verdict without regime or regression layers.
type QuickAnalysisResult struct {
	ID          string      `json:"id"`
	TokenID     string      `json:"token_id"`
	Timeframe   string      `json:"timeframe"`
	GeneratedAt time.Time   `json:"generated_at"`
	DataSource  DataSource  `json:"data_source"`
	Signal      SignalLabel `json:"signal"`
	Action      string      `json:"action"`
	Score       float64     `json:"score"`
	Confidence  float64     `json:"confidence"`
	RiskScore   float64     `json:"risk_score"`
	RiskLevel   string      `json:"risk_level"`
	Levels      LevelSet    `json:"levels"`
	Fibonacci   LevelSet    `json:"fibonacci"`
	Method      string      `json:"method"`
}

type Rugcheck struct {
	Score       *float64 `json:"score,omitempty"`
	Rugged      bool     `json:"rugged"`
	LPLockedPct *float64 `json:"lp_locked_pct,omitempty"`
}

// MarketSnapshot is the latest market state for a token from a snapshot provider.
type MarketSnapshot struct {
	TokenID        string    `json:"token_id"`
	PriceUSD       float64   `json:"price_usd"`
	PriceChange24h float64   `json:"price_change_24h"`
	Volume24h      float64   `json:"volume_24h"`
	LiquidityUSD   float64   `json:"liquidity_usd"`
	MarketCap      float64   `json:"market_cap"`
	Buys24h        int       `json:"buys_24h"`
	Sells24h       int       `json:"sells_24h"`
	Rugcheck       Rugcheck  `json:"rugcheck"`
	FetchedAt      time.Time `json:"fetched_at"`
}
