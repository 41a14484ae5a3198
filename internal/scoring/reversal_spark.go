package scoring

import (
	"math"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Reversal trigger names
const (
	TriggerMACDCross        = "macd_bullish_cross"
	TriggerReversalCandle   = "reversal_candle"
	TriggerEarningsSurprise = "earnings_surprise_during_dip"
)

// reversalSpark adds fixed points per fired trigger, no partial credit
func (s *Scorer) reversalSpark(m contracts.Metrics) layerResult {
	r := s.params.Reversal
	res := layerResult{components: make(map[string]float64, 3)}

	fire := func(name string, fired bool, pts float64) {
		if !fired {
			res.components["reversal."+name] = 0
			return
		}
		res.components["reversal."+name] = pts
		res.triggers = append(res.triggers, name)
		res.points += pts
	}

	fire(TriggerMACDCross, m.MACDBullishCross, r.MACDCrossPoints)
	fire(TriggerReversalCandle, m.ReversalPattern != "", r.CandlePoints)

	surprise := m.EarningsSurprisePct != nil && *m.EarningsSurprisePct > 0 &&
		m.EarningsReportedDaysAgo != nil && *m.EarningsReportedDaysAgo <= r.EarningsRecencyDays &&
		m.PercentBelowHigh != nil && *m.PercentBelowHigh >= s.params.Dip.DropBand.Low
	fire(TriggerEarningsSurprise, surprise, r.EarningsSurprisePoints)

	res.points = math.Min(res.points, s.reversalWeight)
	return res
}
