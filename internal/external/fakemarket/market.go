// Package fakemarket is an in-memory market data provider. It backs offline
// dry runs (MARKET_PROVIDER=fake) and every stage test.
package fakemarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wonny/dipscreener/internal/contracts"
)

// Market serves scripted payloads and counts every call
type Market struct {
	mu       sync.Mutex
	payloads map[string]interface{}
	errs     map[string][]error
	calls    map[string]int
	total    int
}

// New creates an empty market
func New() *Market {
	return &Market{
		payloads: make(map[string]interface{}),
		errs:     make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func key(symbol string, kind contracts.DataKind) string {
	return symbol + "/" + string(kind)
}

// Set stores the payload served for (symbol, kind)
func (m *Market) Set(symbol string, kind contracts.DataKind, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[key(symbol, kind)] = payload
}

// Fail queues errors returned before the payload for (symbol, kind)
func (m *Market) Fail(symbol string, kind contracts.DataKind, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(symbol, kind)
	m.errs[k] = append(m.errs[k], errs...)
}

// GetSnapshot implements contracts.Collaborator. A kind with no payload is
// reported as permanently unsupported.
func (m *Market) GetSnapshot(ctx context.Context, symbol string, kind contracts.DataKind) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	k := key(symbol, kind)
	m.calls[k]++
	m.total++
	if queued := m.errs[k]; len(queued) > 0 {
		m.errs[k] = queued[1:]
		m.mu.Unlock()
		return nil, queued[0]
	}
	payload, ok := m.payloads[k]
	m.mu.Unlock()

	if !ok {
		return nil, &contracts.PermanentUnsupported{Symbol: symbol, Kind: kind, Reason: "no data"}
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, &contracts.UnknownFetchError{Symbol: symbol, Kind: kind, Err: fmt.Errorf("marshal: %w", err)}
	}
	return out, nil
}

// Calls returns how often (symbol, kind) was requested
func (m *Market) Calls(symbol string, kind contracts.DataKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[key(symbol, kind)]
}

// SymbolCalls returns the calls made for symbol across all kinds
func (m *Market) SymbolCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, kind := range append([]contracts.DataKind{contracts.KindUniverse}, contracts.BundleKinds...) {
		n += m.calls[key(symbol, kind)]
	}
	return n
}

// TotalCalls returns every call made
func (m *Market) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}
