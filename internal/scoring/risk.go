package scoring

import (
	"github.com/wonny/dipscreener/internal/contracts"
)

// Risk modifier names
const (
	ModifierSectorUptrend = "sector_uptrend"
	ModifierShortFloat    = "high_short_float"
	ModifierHighBeta      = "high_beta_elevated_volatility"
)

// riskAdjustment returns the additive layer-4 adjustment for a pre-modifier
// subtotal. The sector multiplier contributes subtotal*(mult-1); the result
// is clamped to ±risk_range.
func (s *Scorer) riskAdjustment(m contracts.Metrics, mc contracts.MarketContext, subtotal float64) layerResult {
	k := s.params.Risk
	res := layerResult{components: make(map[string]float64, 3)}

	if mc.SectorUptrend != nil && *mc.SectorUptrend {
		bonus := subtotal * (k.SectorMultiplier - 1)
		res.components["risk."+ModifierSectorUptrend] = round2(bonus)
		res.triggers = append(res.triggers, ModifierSectorUptrend)
		res.points += bonus
	}

	if m.ShortFloat != nil && *m.ShortFloat > k.ShortFloatThreshold {
		res.components["risk."+ModifierShortFloat] = -k.ShortFloatPenalty
		res.triggers = append(res.triggers, ModifierShortFloat)
		res.points -= k.ShortFloatPenalty
	}

	if m.Beta != nil && *m.Beta > k.BetaThreshold &&
		mc.VolatilityIndex != nil && *mc.VolatilityIndex >= k.VolatilityThreshold {
		res.components["risk."+ModifierHighBeta] = -k.HighBetaPenalty
		res.triggers = append(res.triggers, ModifierHighBeta)
		res.points -= k.HighBetaPenalty
	}

	rangeCap := s.params.Weights.RiskRange
	res.points = clamp(res.points, -rangeCap, rangeCap)
	return res
}

// inBlackout reports an upcoming earnings event inside the blackout window
func (s *Scorer) inBlackout(m contracts.Metrics) bool {
	if m.DaysToEarnings == nil {
		return false
	}
	d := *m.DaysToEarnings
	return d >= 0 && d < s.params.Risk.BlackoutDays
}
