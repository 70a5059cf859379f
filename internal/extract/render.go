package extract

import (
	"context"
	"time"

	"github.com/go-rod/rod"

	"github.com/pagelens/crawler/internal/browser"
	"github.com/pagelens/crawler/internal/errors"
)

// anchorScript reads every anchor's resolved href from the live DOM, so
// client-rendered navigation is included.
const anchorScript = `() => Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`

// renderStrategy extracts links by rendering the page in a pooled browser.
type renderStrategy struct {
	pool       *browser.Pool
	navTimeout time.Duration
}

func newRenderStrategy(pool *browser.Pool, navTimeout time.Duration) *renderStrategy {
	return &renderStrategy{
		pool:       pool,
		navTimeout: navTimeout,
	}
}

// Name implements Strategy.
func (s *renderStrategy) Name() string { return "render" }

// Extract implements Strategy. Every failure is reported as a typed
// render-unavailable error so the extractor knows to fall back.
func (s *renderStrategy) Extract(ctx context.Context, pageURL, targetHost string) ([]string, error) {
	var hrefs []string

	err := s.pool.Execute(ctx, func(ctx context.Context, page *rod.Page) error {
		stop, blockErr := browser.BlockResources(page)
		if blockErr == nil {
			defer stop()
		}

		page = page.Timeout(s.navTimeout)

		if err := page.Navigate(pageURL); err != nil {
			return err
		}

		// Load-event wait: weaker than network idle on purpose, so pages
		// with long-lived beacons or chat widgets still settle.
		if err := page.WaitLoad(); err != nil {
			return err
		}

		result, err := page.Eval(anchorScript)
		if err != nil {
			return err
		}

		if arr, ok := result.Value.Val().([]interface{}); ok {
			for _, v := range arr {
				if href, ok := v.(string); ok {
					hrefs = append(hrefs, href)
				}
			}
		}

		return nil
	})

	if err != nil {
		// A stuck render (deadline expiry) counts as render-unavailable
		// too; the extractor filters out whole-crawl cancellation itself.
		return nil, errors.NewRenderError(pageURL, err)
	}

	return filterLinks(hrefs, pageURL, targetHost), nil
}
