package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subcatalog_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Submission Metrics
	SubmissionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_submissions_created_total",
			Help: "Total number of submissions queued for review",
		},
		[]string{"type"},
	)

	SubmissionsReviewedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_submissions_reviewed_total",
			Help: "Total number of reviewed submissions",
		},
		[]string{"type", "status"},
	)

	ReviewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subcatalog_review_duration_seconds",
			Help:    "Time spent applying a review decision",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// Correction Metrics
	CorrectionsAppliedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subcatalog_corrections_applied_total",
			Help: "Total number of corrections merged into a new subtitle version",
		},
	)

	CorrectionsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_corrections_failed_total",
			Help: "Total number of corrections refused at approval",
		},
		[]string{"code"},
	)

	CorrectionCuesEdited = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subcatalog_correction_cues_edited",
			Help:    "Number of cues edited per approved correction",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)

	// Subtitle Store Metrics
	SubtitleVersionsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_subtitle_versions_written_total",
			Help: "Total number of subtitle versions written",
		},
		[]string{"source"},
	)

	SubtitleBytesWritten = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "subcatalog_subtitle_bytes_written",
			Help:    "Size of written subtitle versions in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to 2MB
		},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_storage_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subcatalog_storage_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_notifications_total",
			Help: "Total number of review notifications sent",
		},
		[]string{"channel", "status"},
	)

	// Rate Limit Metrics
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_rate_limited_total",
			Help: "Total number of requests refused by a rate limit or cooldown",
		},
		[]string{"limiter"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subcatalog_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordSubmissionCreated records a new submission
func RecordSubmissionCreated(submissionType string) {
	SubmissionsCreatedTotal.WithLabelValues(submissionType).Inc()
}

// RecordSubmissionReviewed records a review decision
func RecordSubmissionReviewed(submissionType, status string, duration float64) {
	SubmissionsReviewedTotal.WithLabelValues(submissionType, status).Inc()
	ReviewDuration.WithLabelValues(submissionType).Observe(duration)
}

// RecordCorrectionApplied records a merged correction
func RecordCorrectionApplied(cues int) {
	CorrectionsAppliedTotal.Inc()
	CorrectionCuesEdited.Observe(float64(cues))
}

// RecordCorrectionFailed records a correction refused with code
func RecordCorrectionFailed(code string) {
	CorrectionsFailedTotal.WithLabelValues(code).Inc()
}

// RecordSubtitleWritten records a new subtitle version
func RecordSubtitleWritten(source string, size int) {
	SubtitleVersionsWrittenTotal.WithLabelValues(source).Inc()
	SubtitleBytesWritten.Observe(float64(size))
}

// RecordStorageOperation records an object storage operation
func RecordStorageOperation(operation, status string, duration float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordNotification records a delivered or failed notification
func RecordNotification(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// RecordRateLimited records a refused request
func RecordRateLimited(limiter string) {
	RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
