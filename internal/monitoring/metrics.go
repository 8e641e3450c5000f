package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	TasksTotal       *prometheus.CounterVec
	TaskErrorsTotal  *prometheus.CounterVec
	ProfilesDetected prometheus.Counter
	ProfileCacheHits prometheus.Counter
	TaskDuration     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_tasks_processed_total",
			Help: "The total number of scrape tasks processed",
		}, []string{"status"}), // 'ok', 'failed'
		TaskErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_task_errors_total",
			Help: "The total number of task errors encountered",
		}, []string{"type"}), // e.g. 'timeout', 'exhausted_retries'
		ProfilesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "scraper_profiles_detected_total",
			Help: "The total number of site profiles generated",
		}),
		ProfileCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "scraper_profile_cache_hits_total",
			Help: "The total number of profile cache hits",
		}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_task_duration_seconds",
			Help:    "Wall time of individual scrape tasks",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"domain"}),
	}
}

func (m *Metrics) IncTask(status string) {
	m.TasksTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncTaskError(errorType string) {
	m.TaskErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveTaskDuration(domain string, seconds float64) {
	m.TaskDuration.WithLabelValues(domain).Observe(seconds)
}
