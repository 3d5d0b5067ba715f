package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inbound event metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_events_total",
			Help: "Total number of Slack events received, by decision",
		},
		[]string{"decision", "reason"},
	)

	RequestBodyBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotdog_request_body_bytes",
			Help:    "Size of inbound event bodies",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// External call metrics
	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotdog_download_duration_seconds",
			Help:    "Duration of Slack file downloads in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DownloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotdog_download_bytes",
			Help:    "Size of downloaded images",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 7),
		},
	)

	ClassificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hotdog_classification_duration_seconds",
			Help:    "Duration of image classification in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	ExternalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_external_errors_total",
			Help: "Total number of failed external calls",
		},
		[]string{"stage"},
	)

	// Outcome metrics
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_replies_total",
			Help: "Total number of replies posted, by verdict",
		},
		[]string{"verdict"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotdog_rate_limit_hits_total",
			Help: "Total number of rate limit hits by key kind (team, ip)",
		},
		[]string{"source"},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotdog_signature_failures_total",
			Help: "Total number of requests rejected for a bad Slack signature",
		},
	)
)
