package crawler

import (
	"github.com/pagelens/crawler/internal/browser"
	"github.com/pagelens/crawler/internal/logger"
	"github.com/pagelens/crawler/internal/metrics"
)

// Per-crawl bounds. Requests above the hard caps are clamped, not rejected.
const (
	DefaultMaxPages    = 10
	MaxPagesCap        = 50
	DefaultMaxDepth    = 3
	MaxDepthCap        = 5
	DefaultConcurrency = 5
)

// Options controls a single Crawl call. The zero value is usable: every
// field is defaulted and clamped by the crawler.
type Options struct {
	// MaxPages bounds the number of URLs returned.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// MaxDepth bounds BFS depth. Pages at MaxDepth are included in the
	// result but their links are not followed.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Concurrency bounds parallel extractions per batch. Clamped to the
	// browser pool size.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// SkipSitemap disables the sitemap fast path. The zero value keeps
	// sitemap discovery on.
	SkipSitemap bool `json:"skip_sitemap" yaml:"skip_sitemap"`

	// IgnoreRobots disables robots.txt Disallow filtering. The zero value
	// keeps robots rules honored.
	IgnoreRobots bool `json:"ignore_robots" yaml:"ignore_robots"`
}

// DefaultOptions returns the default per-crawl options: sitemap discovery
// and robots filtering on.
func DefaultOptions() *Options {
	return &Options{
		MaxPages:    DefaultMaxPages,
		MaxDepth:    DefaultMaxDepth,
		Concurrency: DefaultConcurrency,
	}
}

// sanitize returns a defaulted and clamped copy of opts. poolSize caps
// concurrency; zero means no pool is attached.
func (o *Options) sanitize(poolSize int) Options {
	out := *o

	if out.MaxPages <= 0 {
		out.MaxPages = DefaultMaxPages
	}
	if out.MaxPages > MaxPagesCap {
		out.MaxPages = MaxPagesCap
	}

	if out.MaxDepth <= 0 {
		out.MaxDepth = DefaultMaxDepth
	}
	if out.MaxDepth > MaxDepthCap {
		out.MaxDepth = MaxDepthCap
	}

	if out.Concurrency <= 0 {
		out.Concurrency = DefaultConcurrency
	}
	if poolSize > 0 && out.Concurrency > poolSize {
		out.Concurrency = poolSize
	}

	return out
}

// Option configures a Crawler at construction time.
type Option func(*Crawler)

// WithConfig sets the crawler configuration.
func WithConfig(config *Config) Option {
	return func(c *Crawler) {
		if config != nil {
			c.config = config
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Crawler) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithPool attaches an externally owned browser pool. The crawler will not
// close it.
func WithPool(pool *browser.Pool) Option {
	return func(c *Crawler) {
		c.pool = pool
		c.ownPool = false
	}
}
