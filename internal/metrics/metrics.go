// Package metrics declares the Prometheus collectors of the watch-log
// engine and its API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheWrites counts local cache persist attempts.
	// result: written, skipped (serialized form unchanged), failed.
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_cache_writes_total",
			Help: "Local cache persist attempts by result",
		},
		[]string{"key", "result"},
	)

	SamplePurges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_sample_purges_total",
			Help: "Collections discarded as bundled sample data",
		},
		[]string{"key"},
	)

	LoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_load_failures_total",
			Help: "Collection loads that fell back to an empty collection",
		},
		[]string{"source"},
	)

	RemoteWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_remote_write_failures_total",
			Help: "Remote writes that failed after the optimistic local change",
		},
		[]string{"op"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_http_requests_total",
			Help: "HTTP requests served by route and status",
		},
		[]string{"method", "route", "status"},
	)

	FeedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchlog_feed_clients",
			Help: "Connected live feed clients by transport",
		},
		[]string{"transport"},
	)
)
