// Package metrics provides Prometheus metrics for the media service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Namespace tree metrics
	treeBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_tree_build_duration_seconds",
			Help:    "Time to fetch the flat listing and build the directory tree",
			Buckets: prometheus.DefBuckets,
		},
	)

	treeDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tree_directories",
			Help: "Number of directories in the last built tree",
		},
	)

	treeObjects = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_tree_objects",
			Help: "Number of objects in the last built tree",
		},
	)

	treeSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_tree_skipped_entries_total",
			Help: "Listing entries skipped because of a malformed id",
		},
	)

	// Storage metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_storage_operation_duration_seconds",
			Help:    "Object store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_storage_operations_total",
			Help: "Total object store operations",
		},
		[]string{"operation", "status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_upload_bytes_total",
			Help: "Total bytes uploaded",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"method", "result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTreeBuild records one tree build and its size.
func RecordTreeBuild(duration time.Duration, directories, objects, skipped int) {
	treeBuildDuration.Observe(duration.Seconds())
	treeDirectories.Set(float64(directories))
	treeObjects.Set(float64(objects))
	treeSkippedTotal.Add(float64(skipped))
}

// RecordStorageOperation records an object store call.
func RecordStorageOperation(operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	storageOperationsTotal.WithLabelValues(operation, outcome(success)).Inc()
}

// RecordUpload adds uploaded bytes.
func RecordUpload(bytes int64) {
	uploadBytesTotal.Add(float64(bytes))
}

// RecordAuthAttempt records an authentication attempt by method (api_key, bearer).
func RecordAuthAttempt(method string, success bool) {
	authAttemptsTotal.WithLabelValues(method, outcome(success)).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
