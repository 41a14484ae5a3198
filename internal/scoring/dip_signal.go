package scoring

import (
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

type layerResult struct {
	points     float64
	components map[string]float64
	triggers   []string
	issues     []string
}

// dipSignal scores how far and how oversold the decline is. Each of the four
// terms is capped independently.
func (s *Scorer) dipSignal(m contracts.Metrics) layerResult {
	d := s.params.Dip
	share := s.dipWeight / d.Caps.Sum()
	res := layerResult{components: make(map[string]float64, 4)}

	band := func(name string, v *float64, b scoringparams.Band, cap float64) {
		pts := 0.0
		if v == nil {
			res.issues = append(res.issues, "missing:"+name)
		} else {
			pts = cap * BandScore(*v, b)
		}
		res.components["dip."+name] = round2(pts)
		res.points += pts
	}

	band("percent_below_high", m.PercentBelowHigh, d.DropBand, d.Caps.Drop*share)
	band("rsi", m.RSI14, d.RSIBand, d.Caps.RSI*share)
	band("volume_ratio", m.VolumeRatio, d.VolumeBand, d.Caps.Volume*share)

	// temporary pullback: under the medium-term trend, still above the long-term one
	ma := 0.0
	switch {
	case m.SMA50 == nil || m.SMA200 == nil:
		res.issues = append(res.issues, "missing:moving_averages")
	case m.Price < *m.SMA50 && m.Price > *m.SMA200:
		ma = d.Caps.MA * share
		res.triggers = append(res.triggers, "pullback_above_long_trend")
	}
	res.components["dip.moving_average"] = round2(ma)
	res.points += ma

	return res
}
