package scoring

import (
	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// Grade maps a composite score onto the letter scale
func Grade(score float64, p *scoringparams.Params) string {
	return pick(score, p.Grades, p.FloorGrade)
}

// Recommend maps a composite score onto an action label
func Recommend(score float64, p *scoringparams.Params) contracts.Recommendation {
	return contracts.Recommendation(pick(score, p.Recommendations, p.FloorRec))
}

// pick walks an ascending threshold list from the top
func pick(score float64, thresholds []scoringparams.Threshold, floor string) string {
	for i := len(thresholds) - 1; i >= 0; i-- {
		if score >= thresholds[i].Min {
			return thresholds[i].Label
		}
	}
	return floor
}
