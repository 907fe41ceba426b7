package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginectl_jobs_submitted_total",
			Help: "Total number of jobs submitted",
		},
		[]string{"operation"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginectl_jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"operation", "status"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enginectl_job_duration_seconds",
			Help:    "Time taken to run a job from submission to terminal status",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34 minutes
		},
		[]string{"operation", "status"},
	)

	// Instance metrics
	InstancesRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginectl_instances_running",
			Help: "Current number of running engine instances",
		},
	)

	InstanceStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginectl_instance_starts_total",
			Help: "Total number of instance start attempts",
		},
		[]string{"result"},
	)

	InstanceStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginectl_instance_stops_total",
			Help: "Total number of instance stop attempts",
		},
		[]string{"result"},
	)

	// API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginectl_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enginectl_api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Host resource metrics
	HostCPUUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginectl_host_cpu_usage_percent",
			Help: "Current host CPU usage percentage",
		},
	)

	HostMemoryUsedBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginectl_host_memory_used_bytes",
			Help: "Current host memory usage in bytes",
		},
	)

	// Log metrics
	LogEntriesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enginectl_log_entries_emitted_total",
			Help: "Total number of log entries emitted to the hub",
		},
		[]string{"tag"},
	)

	WebSocketSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "enginectl_ws_log_subscribers",
			Help: "Current number of connected log WebSocket subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordJobSubmission records a job submission for operation.
func RecordJobSubmission(operation string) {
	JobsSubmitted.WithLabelValues(operation).Inc()
}

// RecordJobCompletion records a job's terminal status and duration.
func RecordJobCompletion(operation, status string, duration float64) {
	JobsCompleted.WithLabelValues(operation, status).Inc()
	JobDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordInstanceStart records a start attempt's outcome.
func RecordInstanceStart(success bool) {
	InstanceStarts.WithLabelValues(resultLabel(success)).Inc()
}

// RecordInstanceStop records a stop attempt's outcome.
func RecordInstanceStop(success bool) {
	InstanceStops.WithLabelValues(resultLabel(success)).Inc()
}

// SetInstancesRunning sets the current running-instance gauge.
func SetInstancesRunning(count float64) {
	InstancesRunning.Set(count)
}

// RecordAPIRequest records an API request's method/route/status.
func RecordAPIRequest(method, route, statusCode string) {
	APIRequests.WithLabelValues(method, route, statusCode).Inc()
}

// RecordAPIRequestDuration records an API request's duration.
func RecordAPIRequestDuration(method, route string, duration float64) {
	APIRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// UpdateHostResourceUsage sets the host CPU/memory gauges.
func UpdateHostResourceUsage(cpuPercent float64, memoryUsedBytes uint64) {
	HostCPUUsage.Set(cpuPercent)
	HostMemoryUsedBytes.Set(float64(memoryUsedBytes))
}

// RecordLogEntry records a log emission for tag.
func RecordLogEntry(tag string) {
	LogEntriesEmitted.WithLabelValues(tag).Inc()
}

// SetWebSocketSubscribers sets the current WebSocket subscriber gauge.
func SetWebSocketSubscribers(count float64) {
	WebSocketSubscribers.Set(count)
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
