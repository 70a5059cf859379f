// Package metrics exposes Prometheus counters for crawl observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the crawler's Prometheus metrics.
type Collector struct {
	PagesDiscovered  prometheus.Counter
	Extractions      *prometheus.CounterVec
	SitemapHits      prometheus.Counter
	RobotsBlocked    prometheus.Counter
	BrowserRespawns  prometheus.Counter
	PoolAcquireWait  prometheus.Histogram
}

// New creates a collector and registers its metrics with reg. Passing nil
// registers against the default registry.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		PagesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_pages_discovered_total",
			Help: "Total number of URLs accepted into crawl output",
		}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_extractions_total",
			Help: "Link extraction attempts by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		SitemapHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_sitemap_urls_total",
			Help: "Total number of URLs collected from sitemaps",
		}),
		RobotsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_robots_blocked_total",
			Help: "Total number of frontier items skipped by robots.txt rules",
		}),
		BrowserRespawns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crawler_browser_respawns_total",
			Help: "Total number of crashed browser instances replaced by the pool",
		}),
		PoolAcquireWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_pool_acquire_wait_seconds",
			Help:    "Time spent waiting for a browser pool slot",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.PagesDiscovered,
		c.Extractions,
		c.SitemapHits,
		c.RobotsBlocked,
		c.BrowserRespawns,
		c.PoolAcquireWait,
	)

	return c
}

// NewUnregistered creates a collector whose metrics are not registered
// anywhere. Useful for tests and for callers that do their own registration.
func NewUnregistered() *Collector {
	return New(prometheus.NewRegistry())
}

// RecordExtraction records one extraction attempt.
func (c *Collector) RecordExtraction(strategy string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Extractions.WithLabelValues(strategy, outcome).Inc()
}
