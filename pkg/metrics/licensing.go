package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LicensingMetrics records counters for the activation and status paths.
type LicensingMetrics struct {
	activations   *prometheus.CounterVec
	deactivations *prometheus.CounterVec
	seatRejects   prometheus.Counter
	statusCache   *prometheus.CounterVec
	checkDuration prometheus.Histogram
}

// NewLicensingMetrics registers the licensing metrics on the provided registerer.
func NewLicensingMetrics(reg prometheus.Registerer) *LicensingMetrics {
	if reg == nil {
		return &LicensingMetrics{}
	}
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_activations_total",
		Help: "Activation attempts by outcome.",
	}, []string{"outcome"})
	deactivations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_deactivations_total",
		Help: "Deactivation attempts by outcome.",
	}, []string{"outcome"})
	seatRejects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "license_seat_limit_rejections_total",
		Help: "Activations rejected because every seat was taken.",
	})
	statusCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_status_cache_total",
		Help: "Status cache lookups by result (hit, miss, error).",
	}, []string{"result"})
	checkDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "license_status_check_duration_seconds",
		Help:    "Duration of status check requests in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(activations, deactivations, seatRejects, statusCache, checkDuration)
	return &LicensingMetrics{
		activations:   activations,
		deactivations: deactivations,
		seatRejects:   seatRejects,
		statusCache:   statusCache,
		checkDuration: checkDuration,
	}
}

// IncActivation increments the activation counter for the given outcome.
func (m *LicensingMetrics) IncActivation(outcome string) {
	if m == nil || m.activations == nil {
		return
	}
	m.activations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDeactivation increments the deactivation counter for the given outcome.
func (m *LicensingMetrics) IncDeactivation(outcome string) {
	if m == nil || m.deactivations == nil {
		return
	}
	m.deactivations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSeatLimitRejection counts an activation that lost to the seat cap.
func (m *LicensingMetrics) IncSeatLimitRejection() {
	if m == nil || m.seatRejects == nil {
		return
	}
	m.seatRejects.Inc()
}

// IncStatusCache records a cache lookup result.
func (m *LicensingMetrics) IncStatusCache(result string) {
	if m == nil || m.statusCache == nil {
		return
	}
	m.statusCache.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveCheckDuration records how long a status check took end to end.
func (m *LicensingMetrics) ObserveCheckDuration(d time.Duration) {
	if m == nil || m.checkDuration == nil {
		return
	}
	m.checkDuration.Observe(d.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
