package models

// IndicatorSet holds trailing-aligned indicator arrays for one series.
// Index len(x)-1 of every array is the latest candle.
type IndicatorSet struct {
	RSI        []float64         `json:"rsi"`
	MACD       []float64         `json:"macd"`
	MACDSignal []float64         `json:"macd_signal"`
	MACDHist   []float64         `json:"macd_hist"`
	BBUpper    []float64         `json:"bb_upper"`
	BBMiddle   []float64         `json:"bb_middle"`
	BBLower    []float64         `json:"bb_lower"`
	SMA        map[int][]float64 `json:"sma"`
	EMA        map[int][]float64 `json:"ema"`
	StochK     []float64         `json:"stoch_k"`
	StochD     []float64         `json:"stoch_d"`
	WilliamsR  []float64         `json:"williams_r"`
	CCI        []float64         `json:"cci"`
	ROC        []float64         `json:"roc"`
	OBV        []float64         `json:"obv"`
	ATR        []float64         `json:"atr"`
	ADX        []float64         `json:"adx"`
}

type MAAlignment string

const (
	AlignmentBullish     MAAlignment = "BULLISH"
	AlignmentWeakBullish MAAlignment = "WEAK_BULLISH"
	AlignmentNeutral     MAAlignment = "NEUTRAL"
	AlignmentWeakBearish MAAlignment = "WEAK_BEARISH"
	AlignmentBearish     MAAlignment = "BEARISH"
)

type VolumeTrend string

const (
	VolumeIncreasing VolumeTrend = "INCREASING"
	VolumeDecreasing VolumeTrend = "DECREASING"
	VolumeNeutral    VolumeTrend = "NEUTRAL"
)

type VolumeConfirmation string

const (
	VolumeConfirmed   VolumeConfirmation = "CONFIRMED"
	VolumeWeak        VolumeConfirmation = "WEAK"
	VolumeUnconfirmed VolumeConfirmation = "UNCONFIRMED"
)

type TrendDirection string

const (
	TrendUp       TrendDirection = "UP"
	TrendDown     TrendDirection = "DOWN"
	TrendSideways TrendDirection = "SIDEWAYS"
)

type TrendStrength string

const (
	TrendVeryStrong TrendStrength = "VERY_STRONG"
	TrendStrong     TrendStrength = "STRONG"
	TrendModerate   TrendStrength = "MODERATE"
	TrendWeak       TrendStrength = "WEAK"
)

type MACDResult struct {
	Signal
	Line       float64 `json:"line"`
	SignalLine float64 `json:"signal_line"`
	Histogram  float64 `json:"histogram"`
}

type BollingerResult struct {
	Signal
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Position float64 `json:"position"`
	Width    float64 `json:"width"`
	Squeeze  bool    `json:"squeeze"`
}

type MAPoint struct {
	Period    int     `json:"period"`
	Available bool    `json:"available"`
	SMA       float64 `json:"sma"`
	EMA       float64 `json:"ema"`
	AboveSMA  bool    `json:"above_sma"`
	AboveEMA  bool    `json:"above_ema"`
}

type MovingAverageResult struct {
	Signal
	Alignment    MAAlignment `json:"alignment"`
	BullishCount int         `json:"bullish_count"`
	BearishCount int         `json:"bearish_count"`
	Periods      []MAPoint   `json:"periods"`
}

type StochasticResult struct {
	Signal
	K float64 `json:"k"`
	D float64 `json:"d"`
}

type VolumeResult struct {
	Signal
	Ratio        float64            `json:"ratio"`
	OBVTrend     VolumeTrend        `json:"obv_trend"`
	Confirmation VolumeConfirmation `json:"confirmation"`
}

type TrendResult struct {
	Direction TrendDirection `json:"direction"`
	ADX       float64        `json:"adx"`
	Strength  TrendStrength  `json:"strength"`
}

// IndicatorSignals groups every per-family signal derived from an IndicatorSet.
type IndicatorSignals struct {
	RSI        Signal              `json:"rsi"`
	MACD       MACDResult          `json:"macd"`
	Bollinger  BollingerResult     `json:"bollinger"`
	MA         MovingAverageResult `json:"moving_averages"`
	Stochastic StochasticResult    `json:"stochastic"`
	WilliamsR  Signal              `json:"williams_r"`
	CCI        Signal              `json:"cci"`
	ROC        Signal              `json:"roc"`
	Volume     VolumeResult        `json:"volume"`
	Trend      TrendResult         `json:"trend"`
}

// SubScores are the four 0..100 engine scores plus their weighted blend.
type SubScores struct {
	Momentum   float64 `json:"momentum"`
	Trend      float64 `json:"trend"`
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`
	Overall    float64 `json:"overall"`
}

type PriceTargets struct {
	Entry       float64 `json:"entry"`
	StopLoss    float64 `json:"stop_loss"`
	TakeProfit1 float64 `json:"take_profit_1"`
	TakeProfit2 float64 `json:"take_profit_2"`
	Support     float64 `json:"support"`
	Resistance  float64 `json:"resistance"`
	RiskReward  float64 `json:"risk_reward"`
}

// IndicatorAnalysis is the Indicator Engine output for one series.
type IndicatorAnalysis struct {
	Close         float64          `json:"close"`
	Candles       int              `json:"candles"`
	Signals       IndicatorSignals `json:"signals"`
	Scores        SubScores        `json:"scores"`
	OverallSignal SignalLabel      `json:"overall_signal"`
	Confidence    float64          `json:"confidence"`
	Targets       PriceTargets     `json:"price_targets"`
	Set           *IndicatorSet    `json:"-"`
}
