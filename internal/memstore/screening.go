package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Screening exposes the Tier-2 half of the store. Its method names overlap
// the master list repository, so it is a separate view.
type Screening struct {
	s *Store
}

// Screening returns the contracts.ScreeningRepository view of the store
func (s *Store) Screening() *Screening {
	return &Screening{s: s}
}

// SaveVersion stores a screening version; its master version must exist
func (r *Screening) SaveVersion(_ context.Context, v *contracts.ScreeningListVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	found := false
	for _, m := range r.s.masters {
		if m.VersionID == v.MasterVersionID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("master list version %s: %w", v.MasterVersionID, contracts.ErrNotFound)
	}

	r.s.screenings = append(r.s.screenings, copyScreening(v))
	return nil
}

// LatestVersion returns the newest screening version of size n
func (r *Screening) LatestVersion(_ context.Context, size int) (*contracts.ScreeningListVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var latest *contracts.ScreeningListVersion
	for i := range r.s.screenings {
		v := &r.s.screenings[i]
		if v.Size != size {
			continue
		}
		if latest == nil || !v.GeneratedAt.Before(latest.GeneratedAt) {
			latest = v
		}
	}
	if latest == nil {
		return nil, contracts.ErrNotFound
	}
	out := copyScreening(latest)
	return &out, nil
}

// GetVersion returns one screening version
func (r *Screening) GetVersion(_ context.Context, id uuid.UUID) (*contracts.ScreeningListVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range r.s.screenings {
		if r.s.screenings[i].VersionID == id {
			out := copyScreening(&r.s.screenings[i])
			return &out, nil
		}
	}
	return nil, contracts.ErrNotFound
}

// ListLatest returns the newest version of every size, smallest size first.
// Entries are omitted.
func (r *Screening) ListLatest(_ context.Context) ([]contracts.ScreeningListVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	bySize := make(map[int]contracts.ScreeningListVersion)
	for _, v := range r.s.screenings {
		if cur, ok := bySize[v.Size]; !ok || !v.GeneratedAt.Before(cur.GeneratedAt) {
			v.Entries = nil
			bySize[v.Size] = v
		}
	}

	out := make([]contracts.ScreeningListVersion, 0, len(bySize))
	for _, v := range bySize {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Size < out[j].Size })
	return out, nil
}

func copyScreening(v *contracts.ScreeningListVersion) contracts.ScreeningListVersion {
	out := *v
	out.Entries = make([]contracts.ScreeningListEntry, len(v.Entries))
	for i, e := range v.Entries {
		if e.PercentBelowHigh != nil {
			pct := *e.PercentBelowHigh
			e.PercentBelowHigh = &pct
		}
		out.Entries[i] = e
	}
	return out
}
