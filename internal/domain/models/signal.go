package models

// SignalLabel is a discrete trading signal.
type SignalLabel string

const (
	StrongBuy  SignalLabel = "STRONG_BUY"
	Buy        SignalLabel = "BUY"
	WeakBuy    SignalLabel = "WEAK_BUY"
	Neutral    SignalLabel = "NEUTRAL"
	WeakSell   SignalLabel = "WEAK_SELL"
	Sell       SignalLabel = "SELL"
	StrongSell SignalLabel = "STRONG_SELL"
)

// IsBuy reports whether the label belongs to the buy family.
func (l SignalLabel) IsBuy() bool { return l == StrongBuy || l == Buy || l == WeakBuy }

// IsSell reports whether the label belongs to the sell family.
func (l SignalLabel) IsSell() bool { return l == StrongSell || l == Sell || l == WeakSell }

// LabelForScore maps a 0..100 score to a label. Lower bounds are inclusive.
func LabelForScore(score float64) SignalLabel {
	switch {
	case score >= 75:
		return StrongBuy
	case score >= 60:
		return Buy
	case score >= 55:
		return WeakBuy
	case score >= 45:
		return Neutral
	case score >= 40:
		return WeakSell
	case score >= 25:
		return Sell
	default:
		return StrongSell
	}
}

type Strength string

const (
	StrengthWeak   Strength = "WEAK"
	StrengthStrong Strength = "STRONG"
)

type Crossover string

const (
	CrossoverNone    Crossover = ""
	CrossoverBullish Crossover = "BULLISH_CROSSOVER"
	CrossoverBearish Crossover = "BEARISH_CROSSOVER"
)

// Signal is one indicator family's verdict.
type Signal struct {
	Name      string      `json:"name"`
	Value     float64     `json:"value"`
	Label     SignalLabel `json:"label"`
	Strength  Strength    `json:"strength"`
	Crossover Crossover   `json:"crossover,omitempty"`
}
