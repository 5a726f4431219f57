package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipemap_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipemap_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	datasetUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipemap_dataset_updates_total",
			Help: "Update requests by outcome",
		},
		[]string{"result"}, // "success", "invalid", "not_found", "error"
	)

	archiveBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipemap_archive_bytes",
			Help:    "Size of generated download archives",
			Buckets: prometheus.ExponentialBuckets(1<<10, 4, 10),
		},
	)
)
