package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protocoldesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "protocoldesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	serviceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protocoldesk",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		},
		[]string{"operation", "success"},
	)
	serviceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "protocoldesk",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	exportJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "protocoldesk",
			Subsystem: "export",
			Name:      "jobs_total",
			Help:      "Finished export jobs by status.",
		},
		[]string{"status"},
	)
	exportLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "protocoldesk",
			Subsystem: "export",
			Name:      "job_latency_seconds",
			Help:      "Time from queueing to completion of an export job.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, serviceOps, serviceDuration, exportJobs, exportLatency)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordExport(status string, latency time.Duration) {
	RegisterMetrics()
	exportJobs.WithLabelValues(status).Inc()
	exportLatency.Observe(latency.Seconds())
}

// ServiceMetrics records service operations in the prometheus registry.
type ServiceMetrics struct{}

func (ServiceMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	RegisterMetrics()
	serviceOps.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	serviceDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
