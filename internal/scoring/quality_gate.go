package scoring

import (
	"github.com/wonny/dipscreener/internal/contracts"
)

// Quality gate check names
const (
	CheckCashFlow      = "cash_flow"
	CheckValuation     = "valuation"
	CheckLeverage      = "leverage"
	CheckProfitability = "profitability"
	CheckMargin        = "margin"
)

type verdict int

const (
	verdictFail verdict = iota
	verdictMarginal
	verdictComfortable
	verdictUnknown
)

type qualityCheck struct {
	name    string
	cap     float64
	verdict verdict
	missing string
}

// qualityResult is layer 1 with its binary outcomes kept apart from its points
type qualityResult struct {
	points     float64
	failed     []string
	components map[string]float64
	issues     []string
}

func (s *Scorer) qualityGate(m contracts.Metrics, mc contracts.MarketContext) qualityResult {
	q := s.params.Quality
	share := s.qualityWeight / q.Caps.Sum()

	checks := []qualityCheck{
		s.checkCashFlow(m, mc, q.Caps.CashFlow*share),
		s.checkValuation(m, mc, q.Caps.Valuation*share),
		s.checkLeverage(m, q.Caps.Leverage*share),
		s.checkProfitability(m, q.Caps.Profitability*share),
		s.checkMargin(m, q.Caps.Margin*share),
	}

	res := qualityResult{components: make(map[string]float64, len(checks))}
	for _, c := range checks {
		var ratio float64
		switch c.verdict {
		case verdictComfortable:
			ratio = 1
		case verdictMarginal:
			ratio = q.MarginalCredit
		case verdictUnknown:
			ratio = q.UnknownCredit
			res.issues = append(res.issues, "missing:"+c.missing)
		case verdictFail:
			res.failed = append(res.failed, c.name)
		}

		pts := c.cap * ratio
		res.components["quality."+c.name] = round2(pts)
		res.points += pts
	}

	return res
}

// excludedByGate applies the hard rule: enough binary failures remove the
// symbol no matter what the other layers say
func (s *Scorer) excludedByGate(failed []string) bool {
	return len(failed) >= s.params.Quality.GateFailThreshold
}

func (s *Scorer) checkCashFlow(m contracts.Metrics, mc contracts.MarketContext, cap float64) qualityCheck {
	c := qualityCheck{name: CheckCashFlow, cap: cap, missing: "fcf_growth"}
	if m.FCFGrowth == nil {
		c.verdict = verdictUnknown
		return c
	}

	growth := *m.FCFGrowth
	switch {
	case growth > 0 && (m.FreeCashFlow == nil || *m.FreeCashFlow > 0):
		c.verdict = verdictComfortable
	case growth > 0 || growth >= mc.SectorFCFGrowthMedian:
		c.verdict = verdictMarginal
	default:
		c.verdict = verdictFail
	}
	return c
}

func (s *Scorer) checkValuation(m contracts.Metrics, mc contracts.MarketContext, cap float64) qualityCheck {
	c := qualityCheck{name: CheckValuation, cap: cap, missing: "pe"}
	if m.PE == nil {
		c.verdict = verdictUnknown
		return c
	}

	sectorPE := mc.SectorPE
	if sectorPE <= 0 {
		sectorPE = s.params.Quality.DefaultSectorPE
	}

	pe := *m.PE
	switch {
	case pe <= 0:
		c.verdict = verdictFail // losses
	case pe <= sectorPE:
		c.verdict = verdictComfortable
	case pe <= sectorPE*s.params.Quality.PEMultiplier:
		c.verdict = verdictMarginal
	default:
		c.verdict = verdictFail
	}
	return c
}

func (s *Scorer) checkLeverage(m contracts.Metrics, cap float64) qualityCheck {
	c := qualityCheck{name: CheckLeverage, cap: cap, missing: "debt_to_ebitda"}
	if m.DebtToEBITDA == nil {
		c.verdict = verdictUnknown
		return c
	}

	max := s.params.Quality.DebtEBITDAMax
	ratio := *m.DebtToEBITDA
	switch {
	case ratio < 0:
		c.verdict = verdictFail // negative EBITDA
	case ratio <= max/2:
		c.verdict = verdictComfortable
	case ratio <= max:
		c.verdict = verdictMarginal
	default:
		c.verdict = verdictFail
	}
	return c
}

func (s *Scorer) checkProfitability(m contracts.Metrics, cap float64) qualityCheck {
	c := qualityCheck{name: CheckProfitability, cap: cap, missing: "roe"}
	c.verdict = minimumVerdict(m.ROE, s.params.Quality.ROEMin)
	return c
}

func (s *Scorer) checkMargin(m contracts.Metrics, cap float64) qualityCheck {
	c := qualityCheck{name: CheckMargin, cap: cap, missing: "profit_margin"}
	c.verdict = minimumVerdict(m.ProfitMargin, s.params.Quality.MarginMin)
	return c
}

// minimumVerdict: twice the minimum is comfortable, the minimum itself marginal
func minimumVerdict(v *float64, min float64) verdict {
	switch {
	case v == nil:
		return verdictUnknown
	case *v >= 2*min:
		return verdictComfortable
	case *v >= min:
		return verdictMarginal
	default:
		return verdictFail
	}
}
