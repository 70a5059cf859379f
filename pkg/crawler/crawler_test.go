package crawler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/pagelens/crawler/internal/errors"
	"github.com/pagelens/crawler/internal/logger"
	"github.com/pagelens/crawler/internal/robots"
	"github.com/pagelens/crawler/internal/scope"
)

// fakeExtractor serves scripted hrefs per page, run through the same
// filtering the real strategies apply. Extract runs on batch goroutines,
// so the call counter is atomic.
type fakeExtractor struct {
	pages   map[string][]string
	failing map[string]bool
	calls   atomic.Int64
}

func (f *fakeExtractor) Extract(ctx context.Context, pageURL, targetHost string) ([]string, error) {
	f.calls.Add(1)
	if f.failing[pageURL] {
		return nil, errors.NewNetworkError(pageURL, "fetch", fmt.Errorf("scripted failure"))
	}

	var links []string
	seen := make(map[string]bool)
	for _, href := range f.pages[pageURL] {
		normalized, ok := scope.FilterLink(href, pageURL, targetHost)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		links = append(links, normalized)
	}
	return links, nil
}

type fakeRobots struct {
	rules   robots.Rules
	fetches atomic.Int64
}

func (f *fakeRobots) Fetch(ctx context.Context, target string) robots.Rules {
	f.fetches.Add(1)
	return f.rules
}

type fakeSitemap struct {
	urls []string
}

func (f *fakeSitemap) Resolve(ctx context.Context, target string, limit int, extra []string) []string {
	if limit > 0 && len(f.urls) > limit {
		return f.urls[:limit]
	}
	return f.urls
}

func newTestCrawler(ext *fakeExtractor, rb *fakeRobots, sm *fakeSitemap) *Crawler {
	if ext == nil {
		ext = &fakeExtractor{}
	}
	if rb == nil {
		rb = &fakeRobots{}
	}
	if sm == nil {
		sm = &fakeSitemap{}
	}
	return &Crawler{
		config:    DefaultConfig(),
		extractor: ext,
		robots:    rb,
		sitemap:   sm,
		log:       logger.Nop(),
	}
}

func assertURLs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// =============================================================================
// Safety Gate Tests
// =============================================================================

func TestCrawlRejectsUnsafeTargets(t *testing.T) {
	targets := []string{
		"http://localhost/admin",
		"http://127.0.0.1:8080",
		"http://192.168.1.1",
		"http://169.254.169.254/latest/meta-data",
		"file:///etc/passwd",
		"http://printer.local",
	}

	c := newTestCrawler(nil, nil, nil)
	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			_, err := c.Crawl(context.Background(), target, nil)
			if err == nil {
				t.Fatalf("Crawl(%q) error = nil, want validation rejection", target)
			}
			if !errors.IsValidation(err) {
				t.Errorf("Crawl(%q) error = %v, want validation error", target, err)
			}
		})
	}
}

func TestCrawlUnparsableStartDegrades(t *testing.T) {
	ext := &fakeExtractor{}
	c := newTestCrawler(ext, nil, nil)

	got, err := c.Crawl(context.Background(), "not a url###", nil)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{"not a url###"})
	if ext.calls.Load() != 0 {
		t.Errorf("extractor called %d times for unfetchable start, want 0", ext.calls.Load())
	}
}

// =============================================================================
// BFS Tests
// =============================================================================

func TestCrawlZeroLinkPage(t *testing.T) {
	c := newTestCrawler(&fakeExtractor{}, nil, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{"https://example.com/"})
}

func TestCrawlDiscoveryOrder(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/":  {"/a", "/b"},
		"https://example.com/a": {"/c", "/b", "https://other.com/external"},
	}}
	c := newTestCrawler(ext, nil, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 5,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	})
}

func TestCrawlSelfLinkIdempotent(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"https://example.com/", "/"},
	}}
	c := newTestCrawler(ext, nil, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{"https://example.com/"})
	if ext.calls.Load() != 1 {
		t.Errorf("extractor called %d times, want 1", ext.calls.Load())
	}
}

func TestCrawlMaxPages(t *testing.T) {
	pages := map[string][]string{}
	var links []string
	for i := 0; i < 20; i++ {
		links = append(links, fmt.Sprintf("/page-%d", i))
	}
	pages["https://example.com/"] = links

	c := newTestCrawler(&fakeExtractor{pages: pages}, nil, nil)
	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 5, MaxDepth: 3, Concurrency: 3,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("Crawl() returned %d URLs, want 5", len(got))
	}
}

func TestCrawlMaxPagesHardCap(t *testing.T) {
	pages := map[string][]string{}
	var links []string
	for i := 0; i < 200; i++ {
		links = append(links, fmt.Sprintf("/page-%d", i))
	}
	pages["https://example.com/"] = links
	for i := 0; i < 200; i++ {
		pages[fmt.Sprintf("https://example.com/page-%d", i)] = links
	}

	c := newTestCrawler(&fakeExtractor{pages: pages}, nil, nil)
	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 500, MaxDepth: 3, Concurrency: 5,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(got) != MaxPagesCap {
		t.Errorf("Crawl() returned %d URLs, want hard cap %d", len(got), MaxPagesCap)
	}
}

func TestCrawlMaxDepth(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/":   {"/d1"},
		"https://example.com/d1": {"/d2"},
		"https://example.com/d2": {"/d3"},
		"https://example.com/d3": {"/d4"},
	}}
	c := newTestCrawler(ext, nil, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 50, MaxDepth: 2, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	// Pages at MaxDepth are included but not expanded.
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/d1",
		"https://example.com/d2",
	})
}

func TestCrawlNoDuplicates(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/":  {"/a", "/b"},
		"https://example.com/a": {"/b", "/"},
		"https://example.com/b": {"/a", "/a#frag", "/a/"},
	}}
	c := newTestCrawler(ext, nil, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 50, MaxDepth: 5, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, u := range got {
		if seen[u] {
			t.Errorf("duplicate URL in result: %q", u)
		}
		seen[u] = true
	}
	if len(got) != 3 {
		t.Errorf("Crawl() returned %d URLs, want 3", len(got))
	}
}

func TestCrawlExtractionFailureContinues(t *testing.T) {
	ext := &fakeExtractor{
		pages: map[string][]string{
			"https://example.com/":     {"/dead", "/live"},
			"https://example.com/live": {"/more"},
		},
		failing: map[string]bool{"https://example.com/dead": true},
	}
	c := newTestCrawler(ext, nil, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 50, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	// The failing page stays discovered; only its links are lost.
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/dead",
		"https://example.com/live",
		"https://example.com/more",
	})
}

// =============================================================================
// Robots Tests
// =============================================================================

func TestCrawlRespectsRobots(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"/private/area", "/public"},
	}}
	rb := &fakeRobots{rules: robots.Rules{Disallowed: []string{"/private"}}}
	c := newTestCrawler(ext, rb, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 50, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/public",
	})
}

func TestCrawlIgnoresRobotsWhenDisabled(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"/private/area"},
	}}
	rb := &fakeRobots{rules: robots.Rules{Disallowed: []string{"/private"}}}
	c := newTestCrawler(ext, rb, nil)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 50, MaxDepth: 3, Concurrency: 2, IgnoreRobots: true,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/private/area",
	})
}

// robots.txt is a single network fetch per crawl, feeding both the sitemap
// references and the disallow rules.
func TestCrawlFetchesRobotsOnce(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"/a", "/b"},
	}}
	rb := &fakeRobots{rules: robots.Rules{
		Disallowed: []string{"/private"},
		Sitemaps:   []string{"https://example.com/sitemap.xml"},
	}}
	c := newTestCrawler(ext, rb, nil)

	if _, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2,
	}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if got := rb.fetches.Load(); got != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", got)
	}
}

func TestCrawlSkipsRobotsFetchWhenBothDisabled(t *testing.T) {
	rb := &fakeRobots{}
	c := newTestCrawler(&fakeExtractor{}, rb, nil)

	if _, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2, SkipSitemap: true, IgnoreRobots: true,
	}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if got := rb.fetches.Load(); got != 0 {
		t.Errorf("robots.txt fetched %d times, want 0 with sitemap and robots disabled", got)
	}
}

// =============================================================================
// Option Default Tests
// =============================================================================

// A caller setting only the knobs they care about still gets the sitemap
// fast path and robots.txt handling.
func TestCrawlPartialOptionsKeepDefaults(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"/private/area", "/public"},
	}}
	rb := &fakeRobots{rules: robots.Rules{Disallowed: []string{"/private"}}}
	sm := &fakeSitemap{urls: []string{"https://example.com/from-sitemap"}}
	c := newTestCrawler(ext, rb, sm)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{MaxPages: 20})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/from-sitemap",
		"https://example.com/public",
	})
	if rb.fetches.Load() != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", rb.fetches.Load())
	}
}

// =============================================================================
// Sitemap Tests
// =============================================================================

func TestCrawlSitemapShortCircuit(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"/bfs-only"},
	}}
	sm := &fakeSitemap{urls: []string{
		"https://example.com/s1",
		"https://example.com/s2",
		"https://example.com/s3",
		"https://example.com/s4",
	}}
	c := newTestCrawler(ext, nil, sm)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 3, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/s1",
		"https://example.com/s2",
	})
	if ext.calls.Load() != 0 {
		t.Errorf("extractor called %d times, want 0 when sitemap satisfies the budget", ext.calls.Load())
	}
}

func TestCrawlSitemapPartialThenBFS(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"/from-bfs"},
	}}
	sm := &fakeSitemap{urls: []string{"https://example.com/from-sitemap"}}
	c := newTestCrawler(ext, nil, sm)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/from-sitemap",
		"https://example.com/from-bfs",
	})
}

func TestCrawlSitemapFiltersForeignHosts(t *testing.T) {
	sm := &fakeSitemap{urls: []string{
		"https://example.com/keep",
		"https://other.com/drop",
		"https://www.example.com/keep-www",
	}}
	c := newTestCrawler(&fakeExtractor{}, nil, sm)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{
		"https://example.com/",
		"https://example.com/keep",
		"https://www.example.com/keep-www",
	})
}

func TestCrawlSitemapDisabled(t *testing.T) {
	sm := &fakeSitemap{urls: []string{"https://example.com/from-sitemap"}}
	c := newTestCrawler(&fakeExtractor{}, nil, sm)

	got, err := c.Crawl(context.Background(), "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2, SkipSitemap: true,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	assertURLs(t, got, []string{"https://example.com/"})
}

// =============================================================================
// Cancellation Tests
// =============================================================================

func TestCrawlCancelledContext(t *testing.T) {
	ext := &fakeExtractor{pages: map[string][]string{
		"https://example.com/": {"/a"},
	}}
	c := newTestCrawler(ext, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.Crawl(ctx, "https://example.com", &Options{
		MaxPages: 10, MaxDepth: 3, Concurrency: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v, want partial result", err)
	}
	// The start URL is discovered before the budget check fires.
	assertURLs(t, got, []string{"https://example.com/"})
	if ext.calls.Load() != 0 {
		t.Errorf("extractor called %d times after cancellation, want 0", ext.calls.Load())
	}
}
