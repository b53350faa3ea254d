package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	TitleResolutionsTotal   *prometheus.CounterVec
	TitleResolutionDuration prometheus.Histogram
	ArticlesRegisteredTotal *prometheus.CounterVec
	ErrorsTotal             *prometheus.CounterVec
	HTTPRequestsTotal       *prometheus.CounterVec
	HTTPRequestDuration     *prometheus.HistogramVec
	RetitleQueueDepth       prometheus.Gauge
}

// NewMetrics registers the metrics with reg. Pass prometheus.DefaultRegisterer to expose
// them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TitleResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "readinglist_title_resolutions_total",
			Help: "Title resolutions by winning source and fallback reason.",
		}, []string{"source", "reason"}),
		TitleResolutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "readinglist_title_resolution_duration_seconds",
			Help:    "Wall time of a title resolution including the fetch.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ArticlesRegisteredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "readinglist_articles_registered_total",
			Help: "Articles registered, by how the title was obtained.",
		}, []string{"title"}), // "supplied", "resolved", "imported"
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "readinglist_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'db_save_failed', 'enqueue_failed'
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RetitleQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "readinglist_retitle_queue_depth",
			Help: "Current number of articles waiting for a title refresh.",
		}),
	}
}

// ObserveTitleResolution implements titlefetch.Observer.
func (m *Metrics) ObserveTitleResolution(source, reason string, elapsed time.Duration) {
	if reason == "" {
		reason = "none"
	}
	m.TitleResolutionsTotal.WithLabelValues(source, reason).Inc()
	m.TitleResolutionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncArticlesRegistered(titleOrigin string) {
	m.ArticlesRegisteredTotal.WithLabelValues(titleOrigin).Inc()
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

func (m *Metrics) SetRetitleQueueDepth(n int64) {
	m.RetitleQueueDepth.Set(float64(n))
}
