package s3_analysis

import (
	"math"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Reversal candle pattern names
const (
	PatternHammer           = "hammer"
	PatternBullishEngulfing = "bullish_engulfing"
)

// IsHammer: a long lower wick (more than twice the body), a short upper wick
// and a small body relative to the range
func IsHammer(c contracts.Candle) bool {
	rng := c.High - c.Low
	if rng <= 0 {
		return false
	}
	body := math.Abs(c.Close - c.Open)
	lower := math.Min(c.Open, c.Close) - c.Low
	upper := c.High - math.Max(c.Open, c.Close)

	return lower > 2*body && upper < 0.5*body && body/rng < 0.3
}

// IsBullishEngulfing: a down bar followed by an up bar whose body covers it
func IsBullishEngulfing(prev, cur contracts.Candle) bool {
	return prev.Close < prev.Open &&
		cur.Close > cur.Open &&
		cur.Open <= prev.Close &&
		cur.Close >= prev.Open
}

// ReversalPattern returns the most recent pattern within the last lookback
// bars, or ""
func ReversalPattern(candles []contracts.Candle, lookback int) string {
	if lookback < 1 {
		return ""
	}
	start := len(candles) - lookback
	if start < 0 {
		start = 0
	}

	for i := len(candles) - 1; i >= start; i-- {
		if i > 0 && IsBullishEngulfing(candles[i-1], candles[i]) {
			return PatternBullishEngulfing
		}
		if IsHammer(candles[i]) {
			return PatternHammer
		}
	}
	return ""
}
