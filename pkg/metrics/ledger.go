package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics tracks point event throughput by reason.
type LedgerMetrics struct {
	recorded   *prometheus.CounterVec
	duplicates prometheus.Counter
	badges     prometheus.Counter
}

// NewLedgerMetrics registers ledger counters on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	recorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "point_events_recorded_total",
		Help: "Point events appended to the ledger.",
	}, []string{"reason"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "point_events_duplicate_total",
		Help: "Point event submissions short-circuited by idempotency key reuse.",
	})
	badges := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "badges_awarded_total",
		Help: "Badge awards granted by the evaluator.",
	})
	reg.MustRegister(recorded, duplicates, badges)
	return &LedgerMetrics{
		recorded:   recorded,
		duplicates: duplicates,
		badges:     badges,
	}
}

// IncRecorded counts one appended event for the given reason.
func (m *LedgerMetrics) IncRecorded(reason string) {
	if m == nil || m.recorded == nil {
		return
	}
	m.recorded.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncDuplicate counts one idempotent replay.
func (m *LedgerMetrics) IncDuplicate() {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.Inc()
}

// IncBadgeAwarded counts one badge award.
func (m *LedgerMetrics) IncBadgeAwarded() {
	if m == nil || m.badges == nil {
		return
	}
	m.badges.Inc()
}
