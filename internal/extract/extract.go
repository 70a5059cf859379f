// Package extract produces the set of same-site outbound links for a page.
//
// Extraction is modeled as two strategies tried in fixed order: a rendered
// pass through the browser pool, and a plain HTTP pass used only when the
// rendered pass reports a render-unavailable failure.
package extract

import (
	"context"
	"time"

	"github.com/pagelens/crawler/internal/browser"
	"github.com/pagelens/crawler/internal/errors"
	"github.com/pagelens/crawler/internal/fetch"
	"github.com/pagelens/crawler/internal/logger"
	"github.com/pagelens/crawler/internal/metrics"
	"github.com/pagelens/crawler/internal/scope"
)

// Strategy extracts same-site links from a single page. Implementations are
// pure: URL and target host in, link list out, no shared crawl state.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, pageURL, targetHost string) ([]string, error)
}

// Extractor tries the rendered strategy first and falls back to plain HTTP
// when rendering is unavailable.
type Extractor struct {
	primary        Strategy
	fallback       Strategy
	primaryTimeout time.Duration
	log            *logger.Logger
	metrics        *metrics.Collector
}

// Config holds extractor timing configuration.
type Config struct {
	// NavTimeout is the per-page navigation budget of the rendered pass.
	NavTimeout time.Duration
	// PrimaryTimeout caps the whole rendered attempt, including time spent
	// queueing for a pool slot. Slightly longer than NavTimeout.
	PrimaryTimeout time.Duration
}

// DefaultConfig returns default extractor timing.
func DefaultConfig() Config {
	return Config{
		NavTimeout:     10 * time.Second,
		PrimaryTimeout: 13 * time.Second,
	}
}

// New creates an extractor backed by the browser pool with an HTTP fallback.
func New(pool *browser.Pool, client *fetch.Client, cfg Config, log *logger.Logger, m *metrics.Collector) *Extractor {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = DefaultConfig().NavTimeout
	}
	if cfg.PrimaryTimeout <= cfg.NavTimeout {
		cfg.PrimaryTimeout = cfg.NavTimeout + 3*time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Extractor{
		primary:        newRenderStrategy(pool, cfg.NavTimeout),
		fallback:       newHTTPStrategy(client),
		primaryTimeout: cfg.PrimaryTimeout,
		log:            log.WithComponent("extract"),
		metrics:        m,
	}
}

// NewWithStrategies builds an extractor from explicit strategies.
func NewWithStrategies(primary, fallback Strategy, primaryTimeout time.Duration, log *logger.Logger, m *metrics.Collector) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	if primaryTimeout <= 0 {
		primaryTimeout = DefaultConfig().PrimaryTimeout
	}
	return &Extractor{
		primary:        primary,
		fallback:       fallback,
		primaryTimeout: primaryTimeout,
		log:            log.WithComponent("extract"),
		metrics:        m,
	}
}

// Extract returns the deduplicated, normalized, same-site links found on
// pageURL. It fails only when both strategies fail.
func (e *Extractor) Extract(ctx context.Context, pageURL, targetHost string) ([]string, error) {
	primaryCtx, cancel := context.WithTimeout(ctx, e.primaryTimeout)
	links, err := e.primary.Extract(primaryCtx, pageURL, targetHost)
	cancel()

	if e.metrics != nil {
		e.metrics.RecordExtraction(e.primary.Name(), err)
	}
	if err == nil {
		return links, nil
	}

	// The crawl itself was cancelled; no point falling back.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !errors.IsRenderUnavailable(err) {
		return nil, err
	}

	e.log.WithURL(pageURL).WithError(err).Debug("Render unavailable, using HTTP fallback")

	links, fallbackErr := e.fallback.Extract(ctx, pageURL, targetHost)
	if e.metrics != nil {
		e.metrics.RecordExtraction(e.fallback.Name(), fallbackErr)
	}
	if fallbackErr != nil {
		return nil, fallbackErr
	}
	return links, nil
}

// filterLinks applies navigability, same-site, and normalization filtering
// to raw hrefs, preserving first-seen order.
func filterLinks(hrefs []string, baseURL, targetHost string) []string {
	links := make([]string, 0, len(hrefs))
	seen := make(map[string]bool)

	for _, href := range hrefs {
		normalized, ok := scope.FilterLink(href, baseURL, targetHost)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		links = append(links, normalized)
	}

	return links
}
