package scoringparams

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dipscreener/internal/contracts"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestShippedFileMatchesDefault(t *testing.T) {
	path := "../../config/scoring_parameters.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	p, data, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	fileHash, err := Hash(p)
	require.NoError(t, err)
	defaultHash, err := Hash(Default())
	require.NoError(t, err)

	assert.Equal(t, defaultHash, fileHash, "config/scoring_parameters.yaml drifted from Default()")
}

func TestHashDeterministic(t *testing.T) {
	h1, err := Hash(Default())
	require.NoError(t, err)
	h2, err := Hash(Default())
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)

	changed := Default()
	changed.Dip.DropBand.High = 45
	h3, err := Hash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
	assert.Equal(t, h1[:12], ShortHash(h1))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "params.yaml")

	custom := Default()
	custom.Meta.Version = "1.1.0"
	custom.Weights.Normalize = true
	require.NoError(t, Save(path, custom))

	loaded, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, custom, loaded)
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("meta: {name: broken}\n"), 0o644))

	p, err := Reset(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	loaded, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
}

func TestLoadOrDefault(t *testing.T) {
	p, fromFile, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, fromFile)
	assert.Equal(t, Default(), p)
}

func TestParseRejectsUnknownField(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)

	broken := strings.Replace(string(data), "dip_signal:", "dip_signall:", 1)
	_, err = Parse([]byte(broken))
	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
		field  string
	}{
		{"missing name", func(p *Params) { p.Meta.Name = "" }, "meta.name"},
		{"weights over 100", func(p *Params) { p.Weights.DipSignal = 60 }, "weights"},
		{"negative risk range", func(p *Params) { p.Weights.RiskRange = -1 }, "weights.risk_range"},
		{"inverted drop band", func(p *Params) { p.Dip.DropBand.Low = 50 }, "dip.drop_band"},
		{"band without degradation", func(p *Params) { p.Dip.RSIBand.OuterLow = p.Dip.RSIBand.Low }, "dip.rsi_band"},
		{"grades not ascending", func(p *Params) { p.Grades[3].Min = 20 }, "grades"},
		{"unknown recommendation", func(p *Params) { p.Recommendations[0].Label = "HOLD" }, "recommendations"},
		{"recommendations out of order", func(p *Params) {
			p.Recommendations[0].Label, p.Recommendations[3].Label = p.Recommendations[3].Label, p.Recommendations[0].Label
		}, "WATCH must rank above STRONG_BUY"},
		{"recommendation at floor", func(p *Params) { p.Recommendations[0].Label = "AVOID" }, "recommendations: AVOID must rank above AVOID"},
		{"unknown floor recommendation", func(p *Params) { p.FloorRec = "HOLD" }, "floor_recommendation"},
		{"grades out of order", func(p *Params) {
			p.Grades[0].Label, p.Grades[11].Label = p.Grades[11].Label, p.Grades[0].Label
		}, "D must rank above A+"},
		{"floor grade above first", func(p *Params) { p.FloorGrade = "C" }, "D- must rank above C"},
		{"unknown grade", func(p *Params) { p.Grades[2].Label = "E" }, "grades: unknown label"},
		{"gate threshold zero", func(p *Params) { p.Quality.GateFailThreshold = 0 }, "quality.gate_fail_threshold"},
		{"preferred not allowed", func(p *Params) { p.MasterList.PreferredExchanges = []string{"LSE"} }, "master_list.preferred_exchanges"},
		{"zero calls per minute", func(p *Params) { p.RateLimit.MaxCallsPerMinute = 0 }, "rate_limit.max_calls_per_minute"},
		{"zero cache ttl", func(p *Params) { p.Cache.Candles = 0 }, "cache_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)

			err := Validate(p)
			require.Error(t, err)

			var cfgErr *contracts.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Contains(t, strings.Join(cfgErr.Problems, "\n"), tt.field)
		})
	}
}

func TestNormalizeAllowsLargeWeights(t *testing.T) {
	p := Default()
	p.Weights = Weights{QualityGate: 50, DipSignal: 60, ReversalSpark: 20, RiskRange: 10, Normalize: true}
	require.NoError(t, Validate(p))

	q, d, r := p.LayerWeights()
	assert.InDelta(t, 90, q+d+r, 1e-9)
	assert.InDelta(t, 50.0*90/130, q, 1e-9)
}

func TestLayerWeightsUnnormalized(t *testing.T) {
	q, d, r := Default().LayerWeights()
	assert.Equal(t, 35.0, q)
	assert.Equal(t, 45.0, d)
	assert.Equal(t, 15.0, r)
}

func TestWarn(t *testing.T) {
	codes := func(ws []Warning) []string {
		var out []string
		for _, w := range ws {
			out = append(out, w.Code)
		}
		return out
	}

	assert.Contains(t, codes(Warn(Default())), "UNNORMALIZED_WEIGHTS")

	p := Default()
	p.Weights.Normalize = true
	assert.NotContains(t, codes(Warn(p)), "UNNORMALIZED_WEIGHTS")
}

func TestTTLFor(t *testing.T) {
	p := Default()
	assert.Equal(t, p.Cache.Candles, p.TTLFor(contracts.KindCandles))
	assert.Equal(t, p.Cache.Profile, p.TTLFor(contracts.KindProfile))
}
