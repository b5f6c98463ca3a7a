package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttempts *prometheus.CounterVec

	// Catalog metrics
	CatalogSearches *prometheus.CounterVec
	CatalogResults  prometheus.Histogram
	MaskedProfiles  prometheus.Counter

	// Event metrics
	EventsPublished *prometheus.CounterVec
	EventsProcessed *prometheus.CounterVec

	// Database operation metrics
	DBOperationDuration *prometheus.HistogramVec
}

// New registers every collector on a private registry so several instances can coexist
// in one process.
func New(prefix string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		CatalogSearches: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_catalog_searches_total",
			Help: "Catalog searches by viewer role",
		}, []string{"viewer"}),
		CatalogResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_catalog_results",
			Help:    "Number of profiles matched per catalog search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		MaskedProfiles: f.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_masked_profiles_total",
			Help: "Profiles returned in masked form",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_events_published_total",
			Help: "Domain events published by entity and action",
		}, []string{"entity", "action"}),
		EventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_events_processed_total",
			Help: "Domain events processed by workers",
		}, []string{"worker", "result"}),
		DBOperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TrackDBOperation returns a function that records the duration of a database operation
// started at startTime. Safe on a nil receiver.
func (m *Metrics) TrackDBOperation(operation string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.DBOperationDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}
}

func (m *Metrics) RecordAuth(result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSearch(viewer string, matched, masked int) {
	if m == nil {
		return
	}
	m.CatalogSearches.WithLabelValues(viewer).Inc()
	m.CatalogResults.Observe(float64(matched))
	m.MaskedProfiles.Add(float64(masked))
}

func (m *Metrics) RecordEventPublished(entity, action string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(entity, action).Inc()
}

func (m *Metrics) RecordEventProcessed(worker, result string) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(worker, result).Inc()
}
