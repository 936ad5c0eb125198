// Package combiner fuses engine, regression, regime, pattern and timeframe
// layers into one verdict.
package combiner

import (
	"time"

	"github.com/google/uuid"

	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

const (
	weightTraditional = 0.35
	weightML          = 0.25
	weightMTF         = 0.15
	weightPatterns    = 0.10
	weightHMM         = 0.15

	ActionBuy    = "BUY"
	ActionSell   = "SELL"
	ActionReduce = "REDUCE"
	ActionHold   = "HOLD"

	SizeLarge  = "LARGE"
	SizeNormal = "NORMAL"
	SizeSmall  = "SMALL"
	SizeNone   = "NONE"
)

// Inputs carries every layer of one analysis. Only Indicators is required;
// a nil layer contributes a neutral component score.
type Inputs struct {
	TokenID        string
	Timeframe      string
	DataSource     models.DataSource
	Indicators     *models.IndicatorAnalysis
	Prediction     *models.PricePrediction
	MultiTimeframe *models.MultiTimeframeResult
	Patterns       *models.PatternResult
	Regime         *models.RegimePrediction
	Training       *models.TrainingSummary
	Features       models.FeatureVector
}

type Combiner struct {
	now   func() time.Time
	newID func() string
}

func NewCombiner() *Combiner {
	return &Combiner{now: time.Now, newID: uuid.NewString}
}

func (c *Combiner) Combine(in Inputs) *models.AnalysisResult {
	scores := models.ComponentScores{
		Traditional:    50,
		ML:             mlScore(in.Prediction),
		MultiTimeframe: mtfScore(in.MultiTimeframe),
		Patterns:       50,
		HMM:            hmmScore(in.Regime),
	}
	engineConf := 0.0
	var targets models.PriceTargets
	if in.Indicators != nil {
		scores.Traditional = in.Indicators.Scores.Overall
		engineConf = in.Indicators.Confidence
		targets = in.Indicators.Targets
	}
	if in.Patterns != nil {
		scores.Patterns = in.Patterns.Score
	}

	overall := util.Clamp(
		weightTraditional*scores.Traditional+
			weightML*scores.ML+
			weightMTF*scores.MultiTimeframe+
			weightPatterns*scores.Patterns+
			weightHMM*scores.HMM, 0, 100)

	mlConf := 0.0
	if in.Prediction != nil {
		mlConf = in.Prediction.Probability
	}
	confidence := util.Clamp(0.6*engineConf+0.4*mlConf, 0, 1)
	label := models.LabelForScore(overall)

	return &models.AnalysisResult{
		ID:              c.newID(),
		TokenID:         in.TokenID,
		Timeframe:       in.Timeframe,
		GeneratedAt:     c.now().UTC(),
		DataSource:      in.DataSource,
		OverallSignal:   label,
		OverallScore:    overall,
		Confidence:      confidence,
		Recommendation:  recommend(label, confidence),
		ComponentScores: scores,
		PriceTargets:    targets,
		Regime:          in.Regime,
		Indicators:      in.Indicators,
		MultiTimeframe:  in.MultiTimeframe,
		Prediction:      in.Prediction,
		Patterns:        in.Patterns,
		Training:        in.Training,
		Features:        in.Features,
	}
}

// directional maps a three-way call to 75, 50 or 25.
func directional(sign int) float64 {
	switch {
	case sign > 0:
		return 75
	case sign < 0:
		return 25
	default:
		return 50
	}
}

func mlScore(p *models.PricePrediction) float64 {
	if p == nil {
		return 50
	}
	sign := 0
	switch p.Direction {
	case models.DirectionUp:
		sign = 1
	case models.DirectionDown:
		sign = -1
	}
	return 50 + (directional(sign)-50)*util.Clamp(p.Probability, 0, 1)
}

func mtfScore(r *models.MultiTimeframeResult) float64 {
	if r == nil {
		return 50
	}
	sign := 0
	switch r.Consensus {
	case models.MarketBullish:
		sign = 1
	case models.MarketBearish:
		sign = -1
	}
	factor := 0.4
	switch r.AlignmentStrength {
	case models.AlignStrong:
		factor = 1
	case models.AlignModerate:
		factor = 0.7
	}
	return 50 + (directional(sign)-50)*factor
}

func hmmScore(p *models.RegimePrediction) float64 {
	if p == nil {
		return 50
	}
	base, sign := 50.0, 0.0
	switch p.CurrentRegime {
	case models.RegimeBull:
		base, sign = 75, 1
	case models.RegimeBear:
		base, sign = 25, -1
	case models.RegimeSideways:
		base = 45
	case models.RegimeHighVolatility:
		base, sign = 35, -1
	}
	return util.Clamp(base+sign*20*(p.Confidence-0.5), 0, 100)
}

func recommend(label models.SignalLabel, confidence float64) models.Recommendation {
	switch {
	case label.IsBuy():
		size := SizeSmall
		switch {
		case confidence > 0.8:
			size = SizeLarge
		case confidence > 0.7:
			size = SizeNormal
		}
		return models.Recommendation{Action: ActionBuy, PositionSize: size}
	case label.IsSell():
		return models.Recommendation{Action: ActionReduce, PositionSize: SizeNone}
	default:
		return models.Recommendation{Action: ActionHold, PositionSize: SizeNone}
	}
}
