// Package memstore implements every repository contract in process memory.
// It backs STORE_DRIVER=memory and the hermetic pipeline tests.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wonny/dipscreener/internal/contracts"
)

type cacheKey struct {
	symbol string
	kind   contracts.DataKind
}

// Store holds all tiers behind one mutex. Values are deep-copied on the way
// in and out so callers never share state with the store.
type Store struct {
	mu sync.Mutex

	cache       map[cacheKey][]contracts.CacheEntry
	unsupported map[string]contracts.UnsupportedSymbol

	masters    []contracts.MasterListVersion
	screenings []contracts.ScreeningListVersion

	params   map[string][]byte
	runs     []contracts.AnalysisRun
	progress map[uuid.UUID]map[string]contracts.SymbolProgress
	records  map[string]contracts.EnhancedRecord
}

// New creates an empty store
func New() *Store {
	return &Store{
		cache:       make(map[cacheKey][]contracts.CacheEntry),
		unsupported: make(map[string]contracts.UnsupportedSymbol),
		params:      make(map[string][]byte),
		progress:    make(map[uuid.UUID]map[string]contracts.SymbolProgress),
		records:     make(map[string]contracts.EnhancedRecord),
	}
}

// ============================================================================
// contracts.CacheStore
// ============================================================================

// Latest returns the most recently fetched entry for (symbol, kind)
func (s *Store) Latest(_ context.Context, symbol string, kind contracts.DataKind) (*contracts.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cache[cacheKey{symbol, kind}]
	if len(entries) == 0 {
		return nil, contracts.ErrNotFound
	}

	latest := entries[0]
	for _, e := range entries[1:] {
		if e.FetchedAt.After(latest.FetchedAt) {
			latest = e
		}
	}
	latest.Payload = append(json.RawMessage(nil), latest.Payload...)
	return &latest, nil
}

// Put stores an entry, replacing a same-day entry for (symbol, kind)
func (s *Store) Put(_ context.Context, entry contracts.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Payload = append(json.RawMessage(nil), entry.Payload...)
	key := cacheKey{entry.Symbol, entry.Kind}
	entries := s.cache[key]
	for i, e := range entries {
		if e.LogicalDate.Equal(entry.LogicalDate) {
			entries[i] = entry
			return nil
		}
	}
	s.cache[key] = append(entries, entry)
	return nil
}

// MarkUnsupported records a permanent provider refusal
func (s *Store) MarkUnsupported(_ context.Context, u contracts.UnsupportedSymbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsupported[u.Symbol] = u
	return nil
}

// IsUnsupported reports whether the symbol is marked
func (s *Store) IsUnsupported(_ context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unsupported[symbol]
	return ok, nil
}

// ListUnsupported returns every marked symbol, newest first
func (s *Store) ListUnsupported(_ context.Context) ([]contracts.UnsupportedSymbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contracts.UnsupportedSymbol, 0, len(s.unsupported))
	for _, u := range s.unsupported {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MarkedAt.Equal(out[j].MarkedAt) {
			return out[i].MarkedAt.After(out[j].MarkedAt)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// Stats summarizes the cache
func (s *Store) Stats(_ context.Context) (*contracts.CacheStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &contracts.CacheStats{Unsupported: len(s.unsupported)}
	symbols := make(map[string]struct{})
	for key, entries := range s.cache {
		stats.Entries += len(entries)
		symbols[key.symbol] = struct{}{}
		for _, e := range entries {
			if stats.NewestFetch == nil || e.FetchedAt.After(*stats.NewestFetch) {
				t := e.FetchedAt
				stats.NewestFetch = &t
			}
		}
	}
	stats.Symbols = len(symbols)
	return stats, nil
}

// ============================================================================
// contracts.MasterListRepository
// ============================================================================

// SaveVersion stores a master list version
func (s *Store) SaveVersion(_ context.Context, v *contracts.MasterListVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masters = append(s.masters, copyMaster(v))
	return nil
}

// LatestVersion returns the newest master list version
func (s *Store) LatestVersion(_ context.Context) (*contracts.MasterListVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *contracts.MasterListVersion
	for i := range s.masters {
		if latest == nil || !s.masters[i].BuiltAt.Before(latest.BuiltAt) {
			latest = &s.masters[i]
		}
	}
	if latest == nil {
		return nil, contracts.ErrNotFound
	}
	out := copyMaster(latest)
	return &out, nil
}

// GetVersion returns one master list version
func (s *Store) GetVersion(_ context.Context, id uuid.UUID) (*contracts.MasterListVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.masters {
		if s.masters[i].VersionID == id {
			out := copyMaster(&s.masters[i])
			return &out, nil
		}
	}
	return nil, contracts.ErrNotFound
}

func copyMaster(v *contracts.MasterListVersion) contracts.MasterListVersion {
	out := *v
	out.Entries = append([]contracts.MasterListEntry(nil), v.Entries...)
	out.Excluded = make(map[string]int, len(v.Excluded))
	for k, n := range v.Excluded {
		out.Excluded[k] = n
	}
	out.Criteria.AllowedExchanges = append([]string(nil), v.Criteria.AllowedExchanges...)
	out.Criteria.PreferredExchanges = append([]string(nil), v.Criteria.PreferredExchanges...)
	return out
}
