package scoring

import (
	"math"

	"github.com/wonny/dipscreener/internal/scoringparams"
)

// BandScore returns 1 inside [Low, High], falls linearly to 0 at the outer
// bounds and stays 0 beyond them. Strictly decreasing on both sides of the
// band up to the outer bound.
func BandScore(value float64, b scoringparams.Band) float64 {
	switch {
	case math.IsNaN(value):
		return 0
	case value >= b.Low && value <= b.High:
		return 1
	case value < b.Low:
		if value <= b.OuterLow {
			return 0
		}
		return (value - b.OuterLow) / (b.Low - b.OuterLow)
	default:
		if value >= b.OuterHigh {
			return 0
		}
		return (b.OuterHigh - value) / (b.OuterHigh - b.High)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
