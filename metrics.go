package goIdentity

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricVerifySuccess MetricID = iota
	MetricVerifyFailure
	MetricVerifyExpired
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRateLimited
	MetricSessionEstablished
	MetricSessionEstablishFailure
	MetricExchangeRateLimited
	MetricRevocationRejected
	MetricKeyFetch
	MetricKeyFetchFailure
	MetricCustomTokenMinted
	MetricAssertionSigned
	MetricAccessTokenMinted
	MetricAccessTokenCacheHit
	MetricSessionCookieCreated
	// MetricVerifyLatency is the only metric with a histogram.
	MetricVerifyLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the verify latency
// buckets; one extra bucket catches everything slower.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBucketCount = len(latencyBounds) + 1

// counter sits alone on its cache line so hot counters on different cores
// do not contend.
type counter struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters plus the verify latency
// histogram. A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled bool
	latency bool
	counts  [metricIDCount]counter
	verify  [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of every counter. Histogram
// buckets are per bucket, not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
		latency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) LatencyEnabled() bool { return m != nil && m.latency }

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricVerifyLatency {
		return
	}
	m.counts[id].n.Add(1)
}

// Observe records d for id. Only MetricVerifyLatency has a histogram;
// other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricVerifyLatency {
		return
	}
	m.verify[latencyBucket(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricVerifyLatency {
		return 0
	}
	return m.counts[id].n.Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}
	for id := range MetricVerifyLatency {
		snap.Counters[id] = m.counts[id].n.Load()
	}
	if m.latency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = m.verify[i].Load()
		}
		snap.Histograms[MetricVerifyLatency] = buckets
	}
	return snap
}

func latencyBucket(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
