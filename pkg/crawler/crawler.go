// Package crawler discovers a bounded set of same-site pages for a website
// audit. Pages are found through a sitemap fast path and a batched parallel
// BFS over rendered page links, with a plain HTTP fallback when rendering is
// unavailable.
package crawler

import (
	"context"
	"net/url"
	"sync"

	"github.com/pagelens/crawler/internal/browser"
	"github.com/pagelens/crawler/internal/extract"
	"github.com/pagelens/crawler/internal/fetch"
	"github.com/pagelens/crawler/internal/frontier"
	"github.com/pagelens/crawler/internal/logger"
	"github.com/pagelens/crawler/internal/metrics"
	"github.com/pagelens/crawler/internal/robots"
	"github.com/pagelens/crawler/internal/scope"
	"github.com/pagelens/crawler/internal/sitemap"
)

// linkSource extracts same-site links from one page. Satisfied by
// extract.Extractor; crawl tests substitute fakes.
type linkSource interface {
	Extract(ctx context.Context, pageURL, targetHost string) ([]string, error)
}

// robotsSource provides robots.txt rules and sitemap references from a
// single fetch. Satisfied by robots.Parser.
type robotsSource interface {
	Fetch(ctx context.Context, target string) robots.Rules
}

// sitemapSource resolves sitemap URLs for an origin. Satisfied by
// sitemap.Resolver.
type sitemapSource interface {
	Resolve(ctx context.Context, target string, limit int, extra []string) []string
}

// Crawler orchestrates page discovery. It is safe for concurrent Crawl
// calls: all per-crawl state is call-scoped.
type Crawler struct {
	config    *Config
	pool      *browser.Pool
	client    *fetch.Client
	extractor linkSource
	robots    robotsSource
	sitemap   sitemapSource
	log       *logger.Logger
	metrics   *metrics.Collector
	ownPool   bool
}

// New creates a crawler. Unless a pool is injected with WithPool, a browser
// pool is launched and owned by the crawler; Close releases it.
func New(opts ...Option) (*Crawler, error) {
	c := &Crawler{
		config:  DefaultConfig(),
		log:     logger.NewDefault(),
		ownPool: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	c.client = fetch.NewClient(c.config.Fetch)
	c.robots = robots.NewParser(c.client)
	c.sitemap = sitemap.NewResolver(c.client, c.log)

	if c.pool == nil {
		pool, err := browser.NewPool(c.config.Browser, c.log, c.metrics)
		if err != nil {
			c.client.Close()
			return nil, err
		}
		c.pool = pool
		c.ownPool = true
	}

	c.extractor = extract.New(c.pool, c.client, c.config.Extract, c.log, c.metrics)

	return c, nil
}

// Close releases the crawler's resources. An injected pool is left open.
func (c *Crawler) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	if c.ownPool && c.pool != nil {
		return c.pool.Close()
	}
	return nil
}

// Crawl discovers up to MaxPages same-site URLs starting from startURL,
// returned in discovery order with the start URL first.
//
// The safety gate runs before anything touches the network: validation
// failures surface as an error. A start URL that clears the gate but does
// not parse into a fetchable URL degrades to a single-element result.
func (c *Crawler) Crawl(ctx context.Context, startURL string, opts *Options) ([]string, error) {
	if err := scope.ValidateStartURL(startURL); err != nil {
		return nil, err
	}

	poolSize := 0
	if c.pool != nil {
		poolSize = c.pool.Size()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	options := opts.sanitize(poolSize)

	parsed, err := url.Parse(startURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		c.log.WithURL(startURL).Warn("Start URL is not fetchable, returning it as-is")
		return []string{startURL}, nil
	}
	targetHost := parsed.Hostname()

	start, err := scope.Normalize(startURL)
	if err != nil {
		start = startURL
	}

	crawlCtx, cancel := context.WithTimeout(ctx, c.config.CrawlTimeout)
	defer cancel()

	log := c.log.WithComponent("crawler").WithURL(start)
	log.Infof("Starting crawl: max_pages=%d max_depth=%d concurrency=%d",
		options.MaxPages, options.MaxDepth, options.Concurrency)

	discovered := frontier.NewDiscoveredSet(options.MaxPages)
	discovered.Add(start)
	if c.metrics != nil {
		c.metrics.PagesDiscovered.Inc()
	}

	// robots.txt is fetched at most once per crawl; both the disallow list
	// and the sitemap references come out of the same body.
	var rules robots.Rules
	if !options.SkipSitemap || !options.IgnoreRobots {
		rules = c.robots.Fetch(crawlCtx, start)
	}

	if !options.SkipSitemap {
		c.resolveSitemap(crawlCtx, start, targetHost, discovered, options.MaxPages, rules.Sitemaps)
		if discovered.Full() {
			log.Infof("Sitemap satisfied the page budget with %d URLs, skipping BFS", discovered.Len())
			return discovered.URLs(), nil
		}
	}

	var disallowed []string
	if !options.IgnoreRobots {
		disallowed = rules.Disallowed
		if len(disallowed) > 0 {
			log.Debugf("robots.txt disallows %d path prefixes", len(disallowed))
		}
	}

	c.runBFS(crawlCtx, start, targetHost, discovered, disallowed, options, log)

	log.Infof("Crawl finished with %d URLs", discovered.Len())
	return discovered.URLs(), nil
}

// resolveSitemap merges same-site sitemap URLs into the discovered set,
// using robots.txt Sitemap: references as extra candidates.
func (c *Crawler) resolveSitemap(ctx context.Context, start, targetHost string, discovered *frontier.DiscoveredSet, limit int, extra []string) {
	urls := c.sitemap.Resolve(ctx, start, limit, extra)
	urls = sitemap.FilterHost(urls, targetHost)

	for _, u := range urls {
		normalized, err := scope.Normalize(u)
		if err != nil {
			continue
		}
		if discovered.Add(normalized) && c.metrics != nil {
			c.metrics.SitemapHits.Inc()
			c.metrics.PagesDiscovered.Inc()
		}
		if discovered.Full() {
			return
		}
	}
}

// runBFS walks the site breadth-first in batches of up to Concurrency
// extractions. Frontier, visited, and discovered are touched only between
// batches, by this goroutine.
func (c *Crawler) runBFS(ctx context.Context, start, targetHost string, discovered *frontier.DiscoveredSet, disallowed []string, options Options, log *logger.Logger) {
	queue := frontier.NewQueue(frontier.Item{URL: start, Depth: 0})
	visited := frontier.NewVisitedSet()

	for queue.Len() > 0 && !discovered.Full() {
		// Time budget and cancellation are checked between batches only;
		// in-flight extractions carry the same context and stop themselves.
		if ctx.Err() != nil {
			log.Warn("Crawl budget exhausted, returning partial results")
			return
		}

		batch := c.nextBatch(queue, visited, discovered, disallowed, options)
		if len(batch) == 0 {
			continue
		}

		results := make([][]string, len(batch))
		var wg sync.WaitGroup
		for i, item := range batch {
			wg.Add(1)
			go func(idx int, it frontier.Item) {
				defer wg.Done()
				links, err := c.extractor.Extract(ctx, it.URL, targetHost)
				if err != nil {
					log.WithURL(it.URL).WithDepth(it.Depth).WithError(err).Warn("Extraction failed, skipping page")
					return
				}
				log.CrawlEvent(it.URL, it.Depth, "extracted")
				results[idx] = links
			}(i, item)
		}
		wg.Wait()

		for i, links := range results {
			depth := batch[i].Depth
			for _, link := range links {
				if !visited.Has(link) {
					queue.Push(frontier.Item{URL: link, Depth: depth + 1})
				}
			}
		}
	}
}

// nextBatch drains up to Concurrency extractable items from the queue. Each
// accepted item is marked visited and counted as discovered before its
// extraction is dispatched; items at MaxDepth are counted but not expanded.
func (c *Crawler) nextBatch(queue *frontier.Queue, visited frontier.VisitedSet, discovered *frontier.DiscoveredSet, disallowed []string, options Options) []frontier.Item {
	batch := make([]frontier.Item, 0, options.Concurrency)

	for len(batch) < options.Concurrency && !discovered.Full() {
		item, ok := queue.Pop()
		if !ok {
			break
		}

		if visited.Has(item.URL) || item.Depth > options.MaxDepth {
			continue
		}
		visited.Add(item.URL)

		if robots.IsDisallowed(item.URL, disallowed) {
			if c.metrics != nil {
				c.metrics.RobotsBlocked.Inc()
			}
			continue
		}

		if discovered.Add(item.URL) && c.metrics != nil {
			c.metrics.PagesDiscovered.Inc()
		}

		if item.Depth < options.MaxDepth {
			batch = append(batch, item)
		}
	}

	return batch
}
