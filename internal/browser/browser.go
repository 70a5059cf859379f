// Package browser provides a bounded pool of headless Chrome instances via
// Rod. The pool is the process-wide ceiling on concurrent render work.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// Config defines browser configuration.
type Config struct {
	PoolSize          int               `json:"pool_size" yaml:"pool_size"`
	Headless          bool              `json:"headless" yaml:"headless"`
	Timeout           time.Duration     `json:"timeout" yaml:"timeout"`
	UserAgent         string            `json:"user_agent" yaml:"user_agent"`
	ViewportWidth     int               `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int               `json:"viewport_height" yaml:"viewport_height"`
	RecycleAfter      int               `json:"recycle_after" yaml:"recycle_after"`
	IgnoreHTTPSErrors bool              `json:"ignore_https_errors" yaml:"ignore_https_errors"`
	ExtraHeaders      map[string]string `json:"extra_headers" yaml:"extra_headers"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		PoolSize:          5,
		Headless:          true,
		Timeout:           15 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		ViewportWidth:     1366,
		ViewportHeight:    900,
		RecycleAfter:      50,
		IgnoreHTTPSErrors: true,
	}
}

// Browser wraps a Rod browser instance.
type Browser struct {
	browser *rod.Browser
	config  Config

	mu        sync.Mutex
	pageCount int
	crashed   bool
}

// New launches a new browser instance.
func New(config Config) (*Browser, error) {
	l := launcher.New()

	if config.Headless {
		l = l.Headless(true)
	}

	if config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors", "true")
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	browser = browser.Timeout(config.Timeout)

	return &Browser{
		browser: browser,
		config:  config,
	}, nil
}

// NewPage opens a fresh blank tab with the configured viewport, user agent,
// and extra headers applied.
func (b *Browser) NewPage() (*rod.Page, error) {
	b.mu.Lock()
	b.pageCount++
	b.mu.Unlock()

	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Viewport and UA failures are not fatal for link extraction.
	_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  b.config.ViewportWidth,
		Height: b.config.ViewportHeight,
	})

	if b.config.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{
			UserAgent: b.config.UserAgent,
		}.Call(page)
	}

	if len(b.config.ExtraHeaders) > 0 {
		networkHeaders := make(proto.NetworkHeaders)
		for k, v := range b.config.ExtraHeaders {
			networkHeaders[k] = gson.New(v)
		}
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: networkHeaders}.Call(page)
	}

	return page, nil
}

// Run opens a fresh page, runs task on it, and closes the page afterwards.
// Failing to even open a tab means the instance is gone, so it is flagged
// for replacement right away.
func (b *Browser) Run(ctx context.Context, task Task) error {
	page, err := b.NewPage()
	if err != nil {
		b.MarkCrashed()
		return err
	}
	defer page.Close()

	return task(ctx, page.Context(ctx))
}

// Healthy reports whether the underlying browser still answers CDP calls.
func (b *Browser) Healthy() bool {
	if b.browser == nil {
		return false
	}
	_, err := b.browser.Version()
	return err == nil
}

// MarkCrashed flags the instance for replacement on the next acquire.
func (b *Browser) MarkCrashed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.crashed = true
}

// IsCrashed reports whether the instance was flagged as crashed.
func (b *Browser) IsCrashed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.crashed
}

// NeedsReplace reports whether the instance should be swapped out before
// serving another task: crashed, or past its page recycling budget.
func (b *Browser) NeedsReplace() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.crashed {
		return true
	}
	return b.config.RecycleAfter > 0 && b.pageCount >= b.config.RecycleAfter
}

// PageCount returns the number of pages opened on this instance.
func (b *Browser) PageCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pageCount
}

// Close closes the browser.
func (b *Browser) Close() error {
	if b.browser == nil {
		return nil
	}
	return b.browser.Close()
}
