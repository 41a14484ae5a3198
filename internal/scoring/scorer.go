// Package scoring implements the four-layer composite dip scorer.
//
// Layer 1 (quality gate) is a hard filter plus points, layer 2 (dip signal)
// measures the decline, layer 3 (reversal spark) rewards fired turn-around
// triggers and layer 4 adjusts the subtotal for sector and market risk.
// Scoring is a pure function of Metrics, MarketContext and Params.
package scoring

import (
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// Evaluation is the full outcome of scoring one symbol
type Evaluation struct {
	Layers         contracts.LayerScores
	Result         contracts.Result
	Grade          string
	Recommendation contracts.Recommendation
	DataIssues     []string
}

// Scorer computes composite scores for one parameter bundle
type Scorer struct {
	params *scoringparams.Params

	qualityWeight  float64
	dipWeight      float64
	reversalWeight float64
}

// NewScorer creates a scorer; params must already be validated
func NewScorer(params *scoringparams.Params) *Scorer {
	q, d, r := params.LayerWeights()
	return &Scorer{
		params:         params,
		qualityWeight:  q,
		dipWeight:      d,
		reversalWeight: r,
	}
}

// Params returns the bundle the scorer was built with
func (s *Scorer) Params() *scoringparams.Params {
	return s.params
}

// Score evaluates one symbol. All layers are computed even for excluded
// symbols so the breakdown stays explainable.
func (s *Scorer) Score(m contracts.Metrics, mc contracts.MarketContext) Evaluation {
	quality := s.qualityGate(m, mc)
	dip := s.dipSignal(m)
	reversal := s.reversalSpark(m)

	subtotal := quality.points + dip.points + reversal.points
	risk := s.riskAdjustment(m, mc, subtotal)

	layers := contracts.LayerScores{
		QualityGate:    round2(quality.points),
		DipSignal:      round2(dip.points),
		ReversalSpark:  round2(reversal.points),
		RiskAdjustment: round2(risk.points),
		Components:     make(map[string]float64),
		FailedChecks:   quality.failed,
	}
	for _, part := range []map[string]float64{quality.components, dip.components, reversal.components, risk.components} {
		for k, v := range part {
			layers.Components[k] = v
		}
	}
	layers.Triggers = append(layers.Triggers, dip.triggers...)
	layers.Triggers = append(layers.Triggers, reversal.triggers...)
	layers.Triggers = append(layers.Triggers, risk.triggers...)

	eval := Evaluation{
		Layers:     layers,
		DataIssues: append(quality.issues, dip.issues...),
	}

	switch {
	case s.excludedByGate(quality.failed):
		eval.Result = contracts.Excluded(contracts.ReasonQualityGate)
	case s.inBlackout(m):
		eval.Result = contracts.Excluded(contracts.ReasonEarningsBlackout)
	default:
		composite := round2(clamp(subtotal+risk.points, 0, 100))
		eval.Result = contracts.Scored(composite)
		eval.Grade = Grade(composite, s.params)
		eval.Recommendation = Recommend(composite, s.params)
	}

	return eval
}
