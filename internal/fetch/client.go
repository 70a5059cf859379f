// Package fetch provides a plain HTTP client used for robots.txt, sitemaps,
// and fallback link extraction.
package fetch

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pagelens/crawler/internal/errors"
)

// DefaultUserAgent mimics a desktop browser; some sites refuse obviously
// robotic agents even for public resources.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// maxBodySize caps how much of a response body is read (2MB).
const maxBodySize = 2 * 1024 * 1024

// Config holds configuration for the HTTP client.
type Config struct {
	Timeout       time.Duration
	UserAgent     string
	MaxRedirects  int
	PerHostRate   float64 // requests per second per host, 0 disables pacing
	PerHostBurst  int
	SkipTLSVerify bool
}

// DefaultConfig returns sensible defaults for auxiliary crawl fetches.
func DefaultConfig() Config {
	return Config{
		Timeout:      8 * time.Second,
		UserAgent:    DefaultUserAgent,
		MaxRedirects: 5,
		PerHostRate:  4,
		PerHostBurst: 4,
	}
}

// Client is a rate-limited HTTP client for auxiliary crawl fetches.
type Client struct {
	client    *http.Client
	userAgent string

	mu       sync.Mutex
	rateCfg  Config
	limiters map[string]*rate.Limiter
}

// Result contains the outcome of a GET request.
type Result struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        string
	Duration    time.Duration
}

// NewClient creates a new HTTP client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
	}

	maxRedirects := cfg.MaxRedirects
	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		rateCfg:   cfg,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the politeness limiter for a host.
func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.rateCfg.PerHostRate), c.rateCfg.PerHostBurst)
		c.limiters[host] = lim
	}
	return lim
}

// Get performs a GET request and reads the body up to maxBodySize.
func (c *Client) Get(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()

	if c.rateCfg.PerHostRate > 0 {
		if parsed, err := url.Parse(targetURL); err == nil {
			if err := c.limiterFor(parsed.Hostname()).Wait(ctx); err != nil {
				return nil, errors.Categorize(err, targetURL)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errors.NewParseError(targetURL, "request_creation", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Categorize(err, targetURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.NewNetworkError(targetURL, "body_read", err)
	}

	return &Result{
		URL:         targetURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
		Duration:    time.Since(start),
	}, nil
}

// IsHTML reports whether the result looks like an HTML document.
func (r *Result) IsHTML() bool {
	return strings.Contains(r.ContentType, "text/html") ||
		strings.Contains(r.ContentType, "application/xhtml")
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
