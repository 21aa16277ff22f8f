package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"stride/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncPersistenceFailures(kind string)
	IncSessionsFinalized()
	IncSamplesDiscarded(reason string)
	IncAchievementsUnlocked()
	SetSessionsTotal(count int)
	SetOutboxPending(count int)
}

type MetricsProvider struct {
	requestsTotal        *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	persistenceDuration  prometheus.Histogram
	persistenceFailures  *prometheus.CounterVec
	sessionsFinalized    prometheus.Counter
	samplesDiscarded     *prometheus.CounterVec
	achievementsUnlocked prometheus.Counter
	sessionsTotal        prometheus.Gauge
	outboxPending        prometheus.Gauge
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncPersistenceFailures(kind string) {
	m.persistenceFailures.WithLabelValues(kind).Inc()
}

func (m *MetricsProvider) IncSessionsFinalized() {
	m.sessionsFinalized.Inc()
}

func (m *MetricsProvider) IncSamplesDiscarded(reason string) {
	m.samplesDiscarded.WithLabelValues(reason).Inc()
}

func (m *MetricsProvider) IncAchievementsUnlocked() {
	m.achievementsUnlocked.Inc()
}

func (m *MetricsProvider) SetSessionsTotal(count int) {
	m.sessionsTotal.Set(float64(count))
}

func (m *MetricsProvider) SetOutboxPending(count int) {
	m.outboxPending.Set(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}
	return newMetricsProvider(prometheus.DefaultRegisterer)
}

func newMetricsProvider(reg prometheus.Registerer) *MetricsProvider {
	factory := promauto.With(reg)

	return &MetricsProvider{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stride_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "stride_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "stride_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		persistenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stride_persistence_duration_seconds",
			Help:    "Duration of record store writes in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		persistenceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_persistence_failures_total",
			Help: "Record store writes dropped after exhausting retries",
		}, []string{"kind"}),

		sessionsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "stride_sessions_finalized_total",
			Help: "Total number of finalized running sessions",
		}),

		samplesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_samples_discarded_total",
			Help: "Location samples rejected before accumulation",
		}, []string{"reason"}),

		achievementsUnlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "stride_achievements_unlocked_total",
			Help: "Total number of achievement unlocks",
		}),

		sessionsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stride_sessions",
			Help: "Number of sessions held in memory",
		}),

		outboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stride_outbox_pending",
			Help: "Number of queued record store writes",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncPersistenceFailures(_ string)                  {}
func (n *noopMetrics) IncSessionsFinalized()                            {}
func (n *noopMetrics) IncSamplesDiscarded(_ string)                     {}
func (n *noopMetrics) IncAchievementsUnlocked()                         {}
func (n *noopMetrics) SetSessionsTotal(_ int)                           {}
func (n *noopMetrics) SetOutboxPending(_ int)                           {}
