// Package metrics holds Prometheus instruments that are used across the
// forum.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ThreadsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_threads_created_total",
			Help: "Cumulative number of threads created.",
		})

	PostsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_posts_created_total",
			Help: "Cumulative number of posts attached to threads, root posts included.",
		})

	GuardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_guard_rejections_total",
			Help: "Thread submissions rejected by the flood or duplicate guard.",
		}, []string{"reason"})

	CourtesyRedirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_courtesy_redirects_total",
			Help: "Create requests redirected by the per-forum courtesy guard.",
		})

	SlugAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forum_slug_attempts",
			Help:    "Candidates tried per slug allocation.",
			Buckets: []float64{1, 2, 3, 6, 7, 10, 25, 100, 250},
		})

	AggregateLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_aggregate_lookups_total",
			Help: "Forum aggregate reads by result (hit, miss).",
		}, []string{"result"})

	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_cache_errors_total",
			Help: "Cache backend failures that were degraded to live reads.",
		}, []string{"op"})

	SitesLoadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_sites_loaded_total",
			Help: "Cumulative number of sites successfully loaded.",
		})

	SiteLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_site_load_errors_total",
			Help: "Cumulative number of site load errors.",
		})

	SiteEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_site_evictions_total",
			Help: "Sites dropped from the resolver cache (idle, expired, or LRU).",
		})

	ActiveSites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forum_active_sites",
			Help: "Sites currently held by the resolver cache.",
		})
)

func init() {
	prometheus.MustRegister(
		ThreadsCreatedTotal,
		PostsCreatedTotal,
		GuardRejectionsTotal,
		CourtesyRedirectsTotal,
		SlugAttempts,
		AggregateLookupsTotal,
		CacheErrorsTotal,
		SitesLoadedTotal,
		SiteLoadErrorsTotal,
		SiteEvictionsTotal,
		ActiveSites,
	)
}
