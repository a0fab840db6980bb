// Package metrics holds Prometheus instruments that are used across
// dirsite.  All collectors are registered with the global registry, so
// mounting promhttp.Handler() in serve or dev is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_cache_hits_total",
			Help: "Cache reads that returned a live entry.",
		}, []string{"scope"})

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_cache_misses_total",
			Help: "Cache reads that found no entry or an expired one.",
		}, []string{"scope"})

	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_backend_requests_total",
			Help: "NocoDB requests by table and outcome.",
		}, []string{"table", "outcome"})

	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_builds_total",
			Help: "Directory builds by final status.",
		}, []string{"status"})

	BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dirsite_build_duration_seconds",
			Help:    "Wall time of one directory build.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		})

	DeploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_deploys_total",
			Help: "Directory deployments by method and status.",
		}, []string{"method", "status"})

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_webhook_events_total",
			Help: "Content webhooks by table and outcome.",
		}, []string{"table", "outcome"})

	EdgeRewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_edge_rewrites_total",
			Help: "Asset requests rewritten with an inferred tenant prefix.",
		}, []string{"source"})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirsite_http_requests_total",
			Help: "Served requests by status class and client kind (browser, bot).",
		}, []string{"class", "client"})
)

func init() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		BackendRequestsTotal,
		BuildsTotal,
		BuildDuration,
		DeploysTotal,
		WebhookEventsTotal,
		EdgeRewritesTotal,
		HTTPRequestsTotal,
	)
}
