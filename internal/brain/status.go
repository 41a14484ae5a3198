package brain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// TierStatus is the freshness of one tier snapshot
type TierStatus struct {
	Tier      string        `json:"tier"`
	Present   bool          `json:"present"`
	VersionID string        `json:"version_id,omitempty"`
	BuiltAt   *time.Time    `json:"built_at,omitempty"`
	Age       time.Duration `json:"age"`
	TTL       time.Duration `json:"ttl"`
	Fresh     bool          `json:"fresh"`
	Entries   int           `json:"entries"`

	// screening lists only; Current marks a list built on the latest master list
	Size    int  `json:"size,omitempty"`
	Current bool `json:"current,omitempty"`
}

// StatusReport is everything `status` prints
type StatusReport struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	ParamsName  string                        `json:"params_name"`
	ParamsHash  string                        `json:"params_hash"`
	Master      TierStatus                    `json:"master"`
	Screening   []TierStatus                  `json:"screening"`
	LastRun     *contracts.AnalysisRun        `json:"last_run,omitempty"`
	Cache       contracts.CacheStats          `json:"cache"`
	Unsupported []contracts.UnsupportedSymbol `json:"unsupported,omitempty"`
	NextAction  string                        `json:"next_action"`
}

// Status reports tier freshness, the last run and the cache, and recommends
// the next command for a top-N funnel
func (o *Orchestrator) Status(ctx context.Context, top int) (*StatusReport, error) {
	now := o.clock.Now()

	hash, err := scoringparams.Hash(o.params)
	if err != nil {
		return nil, fmt.Errorf("hash params: %w", err)
	}

	report := &StatusReport{
		GeneratedAt: now,
		ParamsName:  o.params.Meta.Name,
		ParamsHash:  scoringparams.ShortHash(hash),
		Master: TierStatus{
			Tier: string(contracts.StageMaster),
			TTL:  o.params.MasterList.TTL,
		},
	}

	master, err := o.masters.LatestVersion(ctx)
	switch {
	case err == nil:
		report.Master = tierOf(contracts.StageMaster, master.VersionID.String(), master.BuiltAt, now, o.params.MasterList.TTL, master.Count())
	case !errors.Is(err, contracts.ErrNotFound):
		return nil, fmt.Errorf("load master list: %w", err)
	}

	lists, err := o.screening.ListLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("list screening versions: %w", err)
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].Size < lists[j].Size })
	for _, l := range lists {
		entries := len(l.Entries)
		if full, err := o.screening.GetVersion(ctx, l.VersionID); err == nil {
			entries = len(full.Entries)
		}
		ts := tierOf(contracts.StageScreening, l.VersionID.String(), l.GeneratedAt, now, o.params.Screening.TTL, entries)
		ts.Size = l.Size
		ts.Current = master != nil && l.MasterVersionID == master.VersionID
		report.Screening = append(report.Screening, ts)
	}

	run, err := o.analysis.LatestRun(ctx)
	switch {
	case err == nil:
		report.LastRun = run
	case !errors.Is(err, contracts.ErrNotFound):
		return nil, fmt.Errorf("load last run: %w", err)
	}

	stats, err := o.cache.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}
	report.Cache = *stats

	if report.Unsupported, err = o.cache.Unsupported(ctx); err != nil {
		return nil, fmt.Errorf("list unsupported: %w", err)
	}

	report.NextAction = nextAction(report, lists, top)
	return report, nil
}

func tierOf(stage contracts.Stage, id string, builtAt, now time.Time, ttl time.Duration, entries int) TierStatus {
	built := builtAt
	age := now.Sub(builtAt)
	return TierStatus{
		Tier:      string(stage),
		Present:   true,
		VersionID: id,
		BuiltAt:   &built,
		Age:       age,
		TTL:       ttl,
		Fresh:     age < ttl,
		Entries:   entries,
	}
}

// nextAction walks the funnel top-down and names the first stale tier
func nextAction(r *StatusReport, lists []contracts.ScreeningListVersion, top int) string {
	if !r.Master.Present || !r.Master.Fresh {
		return "build-master-list"
	}

	screen := fmt.Sprintf("screen --top %d", top)
	var list *contracts.ScreeningListVersion
	for i := range lists {
		if lists[i].Size == top {
			list = &lists[i]
		}
	}
	if list == nil {
		return screen
	}
	for _, ts := range r.Screening {
		if ts.Size == top && (!ts.Fresh || !ts.Current) {
			return screen
		}
	}

	analyze := fmt.Sprintf("deep-analyze --top %d", top)
	switch {
	case r.LastRun == nil, r.LastRun.ScreeningVersionID != list.VersionID:
		return analyze
	case r.LastRun.Status != contracts.RunCompleted:
		return analyze + " (resumes the unfinished run)"
	}
	return "none: every tier is fresh"
}
