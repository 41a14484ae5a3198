package contracts

// Stage names one funnel tier
type Stage string

const (
	StageFetch     Stage = "s0_fetch"
	StageMaster    Stage = "s1_master"
	StageScreening Stage = "s2_screening"
	StageAnalysis  Stage = "s3_analysis"
)

// Outcome classifies the result of an operator command
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFresh           // nothing to do, existing snapshot is within TTL
	OutcomePartial         // completed with data issues or failures
	OutcomeFailed          // hard failure
)

// Exit codes distinguish the four outcomes
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitPartial = 2
	ExitFresh   = 3
)

// ExitCode maps an outcome to the process exit code
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeFresh:
		return ExitFresh
	case OutcomePartial:
		return ExitPartial
	case OutcomeFailed:
		return ExitFailure
	default:
		return ExitSuccess
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomePartial:
		return "partial"
	case OutcomeFailed:
		return "failed"
	default:
		return "success"
	}
}
