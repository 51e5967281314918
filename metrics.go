package securecore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful authentications.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed authentications of any cause.
	MetricLoginFailure
	// MetricLockoutTriggered counts newly triggered lockouts.
	MetricLockoutTriggered
	// MetricTokensIssued counts issued token pairs.
	MetricTokensIssued
	// MetricTokenRevoked counts blacklist insertions.
	MetricTokenRevoked
	// MetricTokenRejected counts tokens rejected at validation.
	MetricTokenRejected
	// MetricSessionCreated counts created sessions.
	MetricSessionCreated
	// MetricSessionEvicted counts sessions displaced by the concurrency cap.
	MetricSessionEvicted
	// MetricSessionDestroyed counts explicit session destructions.
	MetricSessionDestroyed
	// MetricSessionAnomaly counts validations that produced warnings.
	MetricSessionAnomaly
	// MetricCSRFRejected counts rejected CSRF validations.
	MetricCSRFRejected

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:     "login_success",
	MetricLoginFailure:     "login_failure",
	MetricLockoutTriggered: "lockout_triggered",
	MetricTokensIssued:     "tokens_issued",
	MetricTokenRevoked:     "token_revoked",
	MetricTokenRejected:    "token_rejected",
	MetricSessionCreated:   "session_created",
	MetricSessionEvicted:   "session_evicted",
	MetricSessionDestroyed: "session_destroyed",
	MetricSessionAnomaly:   "session_anomaly",
	MetricCSRFRejected:     "csrf_rejected",
}

func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics holds in-process atomic counters. Zero-cost when disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{enabled: true}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Value returns one counter's current value.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: map[MetricID]uint64{}}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
