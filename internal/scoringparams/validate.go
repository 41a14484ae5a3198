package scoringparams

import (
	"fmt"
	"math"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Warning flags a legal but questionable setting
type Warning struct {
	Code    string
	Message string
}

type problems []string

func (p *problems) add(field, format string, args ...interface{}) {
	*p = append(*p, field+": "+fmt.Sprintf(format, args...))
}

// Validate checks every constraint and reports all violations at once
// as a *contracts.ConfigurationError
func Validate(p *Params) error {
	var errs problems

	if p.Meta.Name == "" {
		errs.add("meta.name", "required")
	}

	// === Weights ===
	w := p.Weights
	for field, v := range map[string]float64{
		"weights.quality_gate":   w.QualityGate,
		"weights.dip_signal":     w.DipSignal,
		"weights.reversal_spark": w.ReversalSpark,
	} {
		if v < 0 || v > 100 {
			errs.add(field, "must be in [0, 100], got %v", v)
		}
	}
	if w.RiskRange < 0 || w.RiskRange > 50 {
		errs.add("weights.risk_range", "must be in [0, 50], got %v", w.RiskRange)
	}
	if sum := w.QualityGate + w.DipSignal + w.ReversalSpark; sum <= 0 {
		errs.add("weights", "positive layer weights must not all be zero")
	} else if !w.Normalize && sum > 100 {
		errs.add("weights", "quality_gate + dip_signal + reversal_spark = %v exceeds 100; lower them or set normalize: true", sum)
	}

	// === Quality ===
	q := p.Quality
	validateCaps(&errs, "quality.caps", []float64{q.Caps.CashFlow, q.Caps.Valuation, q.Caps.Leverage, q.Caps.Profitability, q.Caps.Margin})
	if q.PEMultiplier < 1 {
		errs.add("quality.pe_multiplier", "must be >= 1")
	}
	if q.DebtEBITDAMax <= 0 {
		errs.add("quality.debt_ebitda_max", "must be > 0")
	}
	if q.ROEMin < 0 || q.ROEMin >= 1 {
		errs.add("quality.roe_min", "must be in [0, 1)")
	}
	if q.MarginMin < 0 || q.MarginMin >= 1 {
		errs.add("quality.margin_min", "must be in [0, 1)")
	}
	if q.GateFailThreshold < 1 || q.GateFailThreshold > 5 {
		errs.add("quality.gate_fail_threshold", "must be in [1, 5]")
	}
	if q.MarginalCredit <= 0 || q.MarginalCredit > 1 {
		errs.add("quality.marginal_credit", "must be in (0, 1]")
	}
	if q.UnknownCredit < 0 || q.UnknownCredit > 1 {
		errs.add("quality.unknown_credit", "must be in [0, 1]")
	}
	if q.DefaultSectorPE <= 0 {
		errs.add("quality.default_sector_pe", "must be > 0")
	}
	if q.MinSectorPeers < 1 {
		errs.add("quality.min_sector_peers", "must be >= 1")
	}

	// === Dip ===
	d := p.Dip
	validateCaps(&errs, "dip.caps", []float64{d.Caps.Drop, d.Caps.RSI, d.Caps.Volume, d.Caps.MA})
	validateBand(&errs, "dip.drop_band", d.DropBand)
	validateBand(&errs, "dip.rsi_band", d.RSIBand)
	validateBand(&errs, "dip.volume_band", d.VolumeBand)
	if d.RSIPeriod < 2 {
		errs.add("dip.rsi_period", "must be >= 2")
	}
	if d.VolumeAvgDays < 2 {
		errs.add("dip.volume_avg_days", "must be >= 2")
	}
	if d.SMAMedium < 2 || d.SMAMedium >= d.SMALong {
		errs.add("dip.sma_medium", "must be >= 2 and below sma_long")
	}

	// === Reversal ===
	r := p.Reversal
	if r.MACDCrossPoints < 0 || r.CandlePoints < 0 || r.EarningsSurprisePoints < 0 {
		errs.add("reversal", "trigger points must be >= 0")
	}
	if r.MACDLookbackBars < 1 || r.CandleLookbackBars < 1 {
		errs.add("reversal", "lookback bars must be >= 1")
	}
	if r.EarningsRecencyDays < 1 {
		errs.add("reversal.earnings_recency_days", "must be >= 1")
	}

	// === Risk ===
	k := p.Risk
	if k.SectorMultiplier < 1 || k.SectorMultiplier > 2 {
		errs.add("risk.sector_multiplier", "must be in [1, 2]")
	}
	if k.ShortFloatThreshold <= 0 || k.ShortFloatThreshold >= 1 {
		errs.add("risk.short_float_threshold", "must be in (0, 1)")
	}
	if k.ShortFloatPenalty < 0 || k.HighBetaPenalty < 0 {
		errs.add("risk", "penalties are magnitudes and must be >= 0")
	}
	if k.BlackoutDays < 0 {
		errs.add("risk.blackout_days", "must be >= 0")
	}

	// === Mappings ===
	validateThresholds(&errs, "grades", p.Grades)
	validateLabelOrder(&errs, "grades", "floor_grade", p.FloorGrade, p.Grades, gradeRank)
	validateThresholds(&errs, "recommendations", p.Recommendations)
	validateLabelOrder(&errs, "recommendations", "floor_recommendation", p.FloorRec, p.Recommendations, recommendationRank)

	// === Tiers ===
	m := p.MasterList
	if m.TTL <= 0 {
		errs.add("master_list.ttl", "must be > 0")
	}
	if m.MinMarketCap < 0 || m.MinAverageVolume < 0 {
		errs.add("master_list", "floors must be >= 0")
	}
	if len(m.AllowedExchanges) == 0 {
		errs.add("master_list.allowed_exchanges", "must not be empty")
	}
	for _, ex := range m.PreferredExchanges {
		if !contains(m.AllowedExchanges, ex) {
			errs.add("master_list.preferred_exchanges", "%q is not an allowed exchange", ex)
		}
	}
	if m.TargetSize < 0 {
		errs.add("master_list.target_size", "must be >= 0")
	}
	if p.Screening.TTL <= 0 {
		errs.add("screening.ttl", "must be > 0")
	}
	if p.Screening.DipHeuristicWeight < 0 {
		errs.add("screening.dip_heuristic_weight", "must be >= 0")
	}

	c := p.Cache
	if c.Universe <= 0 || c.Profile <= 0 || c.Quote <= 0 || c.Fundamentals <= 0 ||
		c.Candles <= 0 || c.Earnings <= 0 || c.Calendar <= 0 {
		errs.add("cache_ttl", "every kind needs a ttl > 0")
	}

	// === Rate limit ===
	if p.RateLimit.MinInterval < 0 {
		errs.add("rate_limit.min_interval", "must be >= 0")
	}
	if p.RateLimit.MaxCallsPerMinute < 1 {
		errs.add("rate_limit.max_calls_per_minute", "must be >= 1")
	}
	if p.Retry.MaxAttempts < 1 {
		errs.add("retry.max_attempts", "must be >= 1")
	}
	if p.Retry.InitialDelay < 0 || p.Retry.MaxDelay < p.Retry.InitialDelay {
		errs.add("retry", "need 0 <= initial_delay <= max_delay")
	}

	if len(errs) > 0 {
		return &contracts.ConfigurationError{Source: p.Meta.Name, Problems: errs}
	}
	return nil
}

// Warn reports legal settings that deserve an operator's attention
func Warn(p *Params) []Warning {
	var warnings []Warning

	sum := p.Weights.QualityGate + p.Weights.DipSignal + p.Weights.ReversalSpark
	if !p.Weights.Normalize && math.Abs(sum+p.Weights.RiskRange-100) > 1e-9 {
		warnings = append(warnings, Warning{
			Code:    "UNNORMALIZED_WEIGHTS",
			Message: fmt.Sprintf("layer caps total %.1f (+%.1f risk); scores are not rescaled to 100", sum, p.Weights.RiskRange),
		})
	}

	if p.RateLimit.MinInterval > 0 {
		bySpacing := int(60e9 / float64(p.RateLimit.MinInterval))
		if bySpacing < p.RateLimit.MaxCallsPerMinute {
			warnings = append(warnings, Warning{
				Code:    "SPACING_DOMINATES",
				Message: fmt.Sprintf("min_interval allows only %d calls/min, below max_calls_per_minute=%d", bySpacing, p.RateLimit.MaxCallsPerMinute),
			})
		}
	}

	if p.MasterList.TargetSize == 0 {
		warnings = append(warnings, Warning{
			Code:    "UNBOUNDED_MASTER_LIST",
			Message: "master_list.target_size is 0: every symbol passing the filters is kept",
		})
	}

	return warnings
}

func validateCaps(errs *problems, field string, caps []float64) {
	sum := 0.0
	for _, c := range caps {
		if c < 0 {
			errs.add(field, "caps must be >= 0")
			return
		}
		sum += c
	}
	if sum <= 0 {
		errs.add(field, "caps must not all be zero")
	}
}

// validateBand requires OuterLow < Low <= High < OuterHigh so the score is
// strictly decreasing outside the band
func validateBand(errs *problems, field string, b Band) {
	if !(b.OuterLow < b.Low && b.Low <= b.High && b.High < b.OuterHigh) {
		errs.add(field, "need outer_low < low <= high < outer_high, got %v/%v/%v/%v", b.OuterLow, b.Low, b.High, b.OuterHigh)
	}
}

// validateThresholds requires strictly ascending minimums so the mapping is monotone
func validateThresholds(errs *problems, field string, ts []Threshold) {
	if len(ts) == 0 {
		errs.add(field, "must not be empty")
		return
	}
	seen := make(map[string]bool, len(ts))
	for i, t := range ts {
		if t.Label == "" {
			errs.add(field, "entry %d has no label", i)
		}
		if seen[t.Label] {
			errs.add(field, "duplicate label %q", t.Label)
		}
		seen[t.Label] = true
		if t.Min < 0 || t.Min > 100 {
			errs.add(field, "%s min must be in [0, 100]", t.Label)
		}
		if i > 0 && t.Min <= ts[i-1].Min {
			errs.add(field, "thresholds must be strictly ascending (%s after %s)", t.Label, ts[i-1].Label)
		}
	}
}

// gradeRank orders letter grades from worst to best
var gradeRank = map[string]int{
	"F": 0, "D-": 1, "D": 2, "D+": 3, "C-": 4, "C": 5, "C+": 6,
	"B-": 7, "B": 8, "B+": 9, "A-": 10, "A": 11, "A+": 12,
}

// recommendationRank orders recommendations from worst to best
var recommendationRank = map[string]int{
	string(contracts.RecAvoid):     0,
	string(contracts.RecWeak):      1,
	string(contracts.RecWatch):     2,
	string(contracts.RecBuy):       3,
	string(contracts.RecStrongBuy): 4,
}

// validateLabelOrder requires known labels that get strictly better as the
// thresholds ascend, starting above the floor. Together with ascending
// minimums this keeps a higher score from mapping to a worse category.
func validateLabelOrder(errs *problems, field, floorField, floor string, ts []Threshold, rank map[string]int) {
	prev, ok := rank[floor]
	if !ok {
		errs.add(floorField, "unknown label %q", floor)
		prev = -1
	}
	prevLabel := floor
	for _, t := range ts {
		r, known := rank[t.Label]
		if !known {
			errs.add(field, "unknown label %q", t.Label)
			continue
		}
		if r <= prev {
			errs.add(field, "%s must rank above %s", t.Label, prevLabel)
		}
		prev, prevLabel = r, t.Label
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
