package regime

import (
	"TokenScope/internal/domain/models"
	"TokenScope/pkg/util"
)

// Heuristic classifies the trailing window with fixed return/volatility thresholds.
// It is the fallback whenever no trained model is available.
func Heuristic(recent []models.Candle, window int) *models.RegimePrediction {
	tail := models.Tail(recent, window+1)
	if len(tail) < 2 {
		return unknownPrediction()
	}
	closes := models.Closes(tail)
	rets := util.SimpleReturns(closes)
	mean := util.Mean(rets)
	std := util.StdDev(rets)
	change := util.SafeDiv(closes[len(closes)-1]-closes[0], closes[0], 0)

	regime, conf := models.RegimeSideways, 0.6
	switch {
	case mean > 0.01 && change > 0.05:
		regime, conf = models.RegimeBull, 0.7
	case mean < -0.01 && change < -0.05:
		regime, conf = models.RegimeBear, 0.7
	case std > 0.05:
		regime, conf = models.RegimeHighVolatility, 0.8
	}

	probs := make(map[models.Regime]float64, len(models.RegimeStates))
	rest := (1 - conf) / float64(len(models.RegimeStates)-1)
	for _, s := range models.RegimeStates {
		probs[s] = rest
	}
	probs[regime] = conf

	next := make(map[models.Regime]float64, len(probs))
	for k, v := range probs {
		next[k] = v
	}
	return &models.RegimePrediction{
		CurrentRegime:          regime,
		Confidence:             conf,
		Method:                 models.MethodHeuristic,
		StateProbabilities:     probs,
		NextStateProbabilities: next,
		Persistence: models.Persistence{
			ConsecutivePeriods:        1,
			ExpectedDuration:          1 / (1 - conf),
			ProbabilityOfContinuation: conf,
		},
		RecentStateSequence: []models.Regime{regime},
		Recommendation:      Recommend(regime, conf),
	}
}

func unknownPrediction() *models.RegimePrediction {
	probs := make(map[models.Regime]float64, len(models.RegimeStates))
	for _, s := range models.RegimeStates {
		probs[s] = 1 / float64(len(models.RegimeStates))
	}
	next := make(map[models.Regime]float64, len(probs))
	for k, v := range probs {
		next[k] = v
	}
	return &models.RegimePrediction{
		CurrentRegime:          models.RegimeUnknown,
		Method:                 models.MethodHeuristic,
		StateProbabilities:     probs,
		NextStateProbabilities: next,
		Persistence:            models.Persistence{ExpectedDuration: 1},
		RecentStateSequence:    []models.Regime{},
		Recommendation:         Recommend(models.RegimeUnknown, 0),
	}
}
