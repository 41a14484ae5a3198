package s3_analysis

import (
	"sort"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// Backdrop is the market context shared by every symbol of a run
type Backdrop struct {
	sectorPE     map[string]float64
	sectorGrowth map[string]float64
	sectorPeers  map[string]int
	uptrend      map[string]bool // sector → ETF in uptrend
	volatility   *float64

	defaultPE     float64
	defaultGrowth float64
}

// NewBackdrop computes per-sector median P/E and FCF growth from the
// candidates' bundles. Sectors with fewer than min_sector_peers usable
// values fall back to the configured defaults.
func NewBackdrop(bundles []*Bundle, p *scoringparams.Params) *Backdrop {
	pes := make(map[string][]float64)
	growths := make(map[string][]float64)
	peers := make(map[string]int)

	for _, b := range bundles {
		if b == nil || b.Profile == nil || b.Profile.Sector == "" {
			continue
		}
		sector := b.Profile.Sector
		peers[sector]++
		if f := b.Fundamentals; f != nil {
			if f.PE != nil && *f.PE > 0 {
				pes[sector] = append(pes[sector], *f.PE)
			}
			if f.FCFGrowth != nil {
				growths[sector] = append(growths[sector], *f.FCFGrowth)
			}
		}
	}

	minPeers := p.Quality.MinSectorPeers
	bd := &Backdrop{
		sectorPE:      medians(pes, minPeers),
		sectorGrowth:  medians(growths, minPeers),
		sectorPeers:   peers,
		uptrend:       make(map[string]bool),
		defaultPE:     p.Quality.DefaultSectorPE,
		defaultGrowth: p.Quality.DefaultSectorFCF,
	}
	return bd
}

// SetSectorTrend records whether a sector's ETF is in an uptrend
func (bd *Backdrop) SetSectorTrend(sector string, up bool) {
	bd.uptrend[sector] = up
}

// SetVolatility records the volatility index level
func (bd *Backdrop) SetVolatility(level float64) {
	bd.volatility = &level
}

// For returns the MarketContext of one sector
func (bd *Backdrop) For(sector string) contracts.MarketContext {
	mc := contracts.MarketContext{
		SectorPE:              bd.defaultPE,
		SectorFCFGrowthMedian: bd.defaultGrowth,
		SectorPeers:           bd.sectorPeers[sector],
		VolatilityIndex:       bd.volatility,
	}
	if pe, ok := bd.sectorPE[sector]; ok {
		mc.SectorPE = pe
	}
	if g, ok := bd.sectorGrowth[sector]; ok {
		mc.SectorFCFGrowthMedian = g
	}
	if up, ok := bd.uptrend[sector]; ok {
		mc.SectorUptrend = &up
	}
	return mc
}

func medians(values map[string][]float64, minPeers int) map[string]float64 {
	out := make(map[string]float64, len(values))
	for sector, vs := range values {
		if len(vs) < minPeers || len(vs) == 0 {
			continue
		}
		out[sector] = median(vs)
	}
	return out
}

func median(vs []float64) float64 {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
