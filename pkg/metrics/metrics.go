package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP request metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticsite_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticsite_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// Engagement metrics
var (
	ViewsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticsite_views_recorded_total",
			Help: "Views counted after IP deduplication",
		},
		[]string{"target"},
	)

	ViewsDeduplicated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticsite_views_deduplicated_total",
			Help: "Views dropped because the IP already viewed the target inside the window",
		},
		[]string{"target", "source"},
	)

	Likes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticsite_likes_total",
			Help: "Like and unlike operations that changed state",
		},
		[]string{"target", "action"},
	)

	CountersReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticsite_counters_reconciled_total",
			Help: "Rows whose denormalized counters were corrected by a recount",
		},
		[]string{"target"},
	)
)

// SessionsCleaned counts sessions removed by the cleanup job.
var SessionsCleaned = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ticsite_sessions_cleaned_total",
		Help: "Expired or revoked sessions deleted",
	},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticsite_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticsite_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticsite_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	prometheus.MustRegister(ViewsRecorded, ViewsDeduplicated, Likes, CountersReconciled)
	prometheus.MustRegister(SessionsCleaned)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
