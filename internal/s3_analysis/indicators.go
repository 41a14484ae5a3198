package s3_analysis

import (
	"math"

	"github.com/wonny/dipscreener/internal/contracts"
)

// closes extracts close prices, oldest first
func closes(candles []contracts.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA is the simple average of the last period values.
// Returns nil when the series is too short.
func SMA(values []float64, period int) *float64 {
	if period < 1 || len(values) < period {
		return nil
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	avg := sum / float64(period)
	return &avg
}

// RSI uses simple means of gains and losses over the last period changes
func RSI(values []float64, period int) *float64 {
	if period < 1 || len(values) < period+1 {
		return nil
	}

	var gains, losses float64
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	var rsi float64
	switch {
	case gains == 0 && losses == 0:
		rsi = 50
	case losses == 0:
		rsi = 100
	default:
		rs := (gains / float64(period)) / (losses / float64(period))
		rsi = 100 - 100/(1+rs)
	}
	return &rsi
}

// EMA returns the exponential moving average series, seeded with the first
// value (no bias adjustment)
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span < 1 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD returns the MACD(fast, slow) line and its signal line
func MACD(values []float64, fast, slow, signal int) (line, sig []float64) {
	if len(values) == 0 {
		return nil, nil
	}
	f := EMA(values, fast)
	s := EMA(values, slow)
	line = make([]float64, len(values))
	for i := range values {
		line[i] = f[i] - s[i]
	}
	return line, EMA(line, signal)
}

// MACDBullishCross reports a MACD(12,26,9) line crossing above its signal
// within the last lookback bars
func MACDBullishCross(values []float64, lookback int) bool {
	if len(values) < 35 || lookback < 1 {
		return false
	}
	line, sig := MACD(values, 12, 26, 9)

	start := len(values) - lookback
	if start < 1 {
		start = 1
	}
	for i := start; i < len(values); i++ {
		if line[i-1] <= sig[i-1] && line[i] > sig[i] {
			return true
		}
	}
	return false
}

// VolumeRatio is the latest volume over the average of the avgDays bars
// before it
func VolumeRatio(candles []contracts.Candle, avgDays int) *float64 {
	if avgDays < 1 || len(candles) < avgDays+1 {
		return nil
	}
	last := len(candles) - 1

	sum := 0.0
	for _, c := range candles[last-avgDays : last] {
		sum += c.Volume
	}
	if sum <= 0 {
		return nil
	}
	ratio := candles[last].Volume / (sum / float64(avgDays))
	return &ratio
}

// HighOf returns the highest high of the last n candles
func HighOf(candles []contracts.Candle, n int) *float64 {
	if len(candles) == 0 {
		return nil
	}
	if n > len(candles) || n < 1 {
		n = len(candles)
	}
	high := math.Inf(-1)
	for _, c := range candles[len(candles)-n:] {
		high = math.Max(high, c.High)
	}
	if high <= 0 {
		return nil
	}
	return &high
}

// InUptrend reports close > SMA(medium) > SMA(long) at the last bar
func InUptrend(candles []contracts.Candle, medium, long int) *bool {
	c := closes(candles)
	mid, lng := SMA(c, medium), SMA(c, long)
	if mid == nil || lng == nil {
		return nil
	}
	up := c[len(c)-1] > *mid && *mid > *lng
	return &up
}
