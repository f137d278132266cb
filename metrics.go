package innercircle

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	// MetricTokenIssued counts one-time tokens issued.
	MetricTokenIssued MetricID = iota
	// MetricTokenConsumed counts tokens spent by the winning consume call.
	MetricTokenConsumed
	// MetricTokenConsumeFailed counts consume attempts that lost for any
	// reason: missing, expired, revoked, or already consumed.
	MetricTokenConsumeFailed
	// MetricTokenRevoked counts administrative token revocations.
	MetricTokenRevoked
	// MetricSessionCreated counts access sessions minted from unlocks.
	MetricSessionCreated
	// MetricSessionRevoked counts session revocations.
	MetricSessionRevoked
	// MetricKeyIssued counts member keys issued.
	MetricKeyIssued
	// MetricKeyVerifyValid counts key verifications that succeeded.
	MetricKeyVerifyValid
	// MetricKeyVerifyInvalid counts key verifications that failed at the
	// key level.
	MetricKeyVerifyInvalid
	// MetricKeyRevoked counts member key revocations.
	MetricKeyRevoked
	// MetricQuotaExceeded counts issuances rejected by the key quota.
	MetricQuotaExceeded
	// MetricRateLimitHit counts requests refused by a rate limiter.
	MetricRateLimitHit
	// MetricAutoBlock counts identifiers blocked by the security monitor.
	MetricAutoBlock
	// MetricAccessDenied counts authorization decisions that denied.
	MetricAccessDenied
	// MetricVerifyLatency is the verification latency histogram.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line so hot concurrent
// increments do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the engine's in-process counter set. All methods are safe for
// concurrent use and are no-ops when disabled or on a nil receiver.
type Metrics struct {
	enabled    bool
	counters   [metricIDCount]paddedCounter
	histograms [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample into the verification histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	buckets := make([]uint64, histBucketCount)
	for i := 0; i < histBucketCount; i++ {
		buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
	}
	s.Histograms[MetricVerifyLatency] = buckets

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 1:
		return 0
	case ms <= 5:
		return 1
	case ms <= 10:
		return 2
	case ms <= 25:
		return 3
	case ms <= 50:
		return 4
	case ms <= 100:
		return 5
	case ms <= 250:
		return 6
	default:
		return 7
	}
}
