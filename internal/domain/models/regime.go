package models

// Regime is a hidden market state.
type Regime string

const (
	RegimeBull           Regime = "BULL"
	RegimeBear           Regime = "BEAR"
	RegimeSideways       Regime = "SIDEWAYS"
	RegimeHighVolatility Regime = "HIGH_VOLATILITY"
	RegimeUnknown        Regime = "UNKNOWN"
)

// RegimeStates is the fixed HMM state order.
var RegimeStates = []Regime{RegimeBull, RegimeBear, RegimeSideways, RegimeHighVolatility}

type PredictionMethod string

const (
	MethodHMM       PredictionMethod = "HMM"
	MethodHeuristic PredictionMethod = "HEURISTIC"
)

type Persistence struct {
	ConsecutivePeriods        int     `json:"consecutive_periods"`
	ExpectedDuration          float64 `json:"expected_duration"`
	ProbabilityOfContinuation float64 `json:"probability_of_continuation"`
}

type RegimeRecommendation struct {
	Action       string `json:"action"`
	RiskLevel    string `json:"risk_level"`
	PositionSize string `json:"position_size"`
}

type RegimePrediction struct {
	CurrentRegime          Regime               `json:"current_regime"`
	Confidence             float64              `json:"confidence"`
	Method                 PredictionMethod     `json:"method"`
	StateProbabilities     map[Regime]float64   `json:"state_probabilities"`
	NextStateProbabilities map[Regime]float64   `json:"next_state_probabilities"`
	Persistence            Persistence          `json:"persistence"`
	RecentStateSequence    []Regime             `json:"recent_state_sequence"`
	Recommendation         RegimeRecommendation `json:"recommendation"`
}

// TrainingSummary describes one Baum-Welch run.
type TrainingSummary struct {
	Iterations    int     `json:"iterations"`
	LogLikelihood float64 `json:"log_likelihood"`
	Converged     bool    `json:"converged"`
	Observations  int     `json:"observations"`
}
