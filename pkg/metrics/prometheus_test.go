package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordCall("quote", "ok")
	r.RecordCall("quote", "ok")
	r.RecordCall("candles", "transient")
	r.RecordCacheLookup("quote", true)
	r.RecordCacheLookup("quote", false)
	r.RecordSymbolOutcome("excluded", "quality_gate")
	r.RecordLimiterWait(1.1)
	r.RecordStageDuration("s3_analysis", 12)
	r.RecordCacheSize(120, 20, 3)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.collaboratorCalls.WithLabelValues("quote", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.collaboratorCalls.WithLabelValues("candles", "transient")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.cacheLookups.WithLabelValues("quote", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.cacheLookups.WithLabelValues("quote", "miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.symbolOutcomes.WithLabelValues("excluded", "quality_gate")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.cacheSize.WithLabelValues("unsupported")))

	count, err := testutil.GatherAndCount(reg, "dipscreener_rate_limiter_wait_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordCall("quote", "ok")
		r.RecordCacheLookup("quote", true)
		r.RecordLimiterWait(0)
		r.RecordSymbolOutcome("scored", "")
		r.RecordStageDuration("s1_master", 1)
		r.RecordCacheSize(1, 1, 0)
	})
}
