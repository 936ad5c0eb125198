package regime

import "TokenScope/internal/domain/models"

const (
	ActionBuy         = "BUY"
	ActionCautiousBuy = "CAUTIOUS_BUY"
	ActionSell        = "SELL"
	ActionReduce      = "REDUCE"
	ActionHold        = "HOLD"
	ActionCaution     = "CAUTION"

	RiskMedium  = "MEDIUM"
	RiskHigh    = "HIGH"
	RiskUnknown = "UNKNOWN"

	SizeNone    = "NONE"
	SizeMinimal = "MINIMAL"
	SizeSmall   = "SMALL"
	SizeNormal  = "NORMAL"
)

// confidentAbove is the confidence at which directional regimes commit fully.
const confidentAbove = 0.7

// Recommend maps a regime and its confidence to an action, risk level and size tier.
func Recommend(r models.Regime, confidence float64) models.RegimeRecommendation {
	switch r {
	case models.RegimeBull:
		if confidence > confidentAbove {
			return models.RegimeRecommendation{Action: ActionBuy, RiskLevel: RiskMedium, PositionSize: SizeNormal}
		}
		return models.RegimeRecommendation{Action: ActionCautiousBuy, RiskLevel: RiskMedium, PositionSize: SizeSmall}
	case models.RegimeBear:
		if confidence > confidentAbove {
			return models.RegimeRecommendation{Action: ActionSell, RiskLevel: RiskHigh, PositionSize: SizeNone}
		}
		return models.RegimeRecommendation{Action: ActionReduce, RiskLevel: RiskHigh, PositionSize: SizeSmall}
	case models.RegimeSideways:
		return models.RegimeRecommendation{Action: ActionHold, RiskLevel: RiskMedium, PositionSize: SizeSmall}
	case models.RegimeHighVolatility:
		return models.RegimeRecommendation{Action: ActionCaution, RiskLevel: RiskHigh, PositionSize: SizeMinimal}
	default:
		return models.RegimeRecommendation{Action: ActionHold, RiskLevel: RiskUnknown, PositionSize: SizeNone}
	}
}
