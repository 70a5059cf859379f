package extract

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pagelens/crawler/internal/errors"
	"github.com/pagelens/crawler/internal/fetch"
)

// hrefPattern matches href attribute values in raw HTML. The fallback works
// on the initial document only, without building a DOM.
var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)

// httpStrategy extracts links from the raw HTML of a plain GET response.
type httpStrategy struct {
	client *fetch.Client
}

func newHTTPStrategy(client *fetch.Client) *httpStrategy {
	return &httpStrategy{client: client}
}

// Name implements Strategy.
func (s *httpStrategy) Name() string { return "http" }

// Extract implements Strategy.
func (s *httpStrategy) Extract(ctx context.Context, pageURL, targetHost string) ([]string, error) {
	result, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if result.StatusCode >= 400 {
		return nil, errors.New(errors.Network, pageURL, "fallback_fetch",
			fmt.Sprintf("server returned %d", result.StatusCode), nil)
	}

	// Non-HTML payloads (PDFs, images served at page URLs) carry no links
	// worth scanning.
	if !result.IsHTML() {
		return nil, nil
	}

	matches := hrefPattern.FindAllStringSubmatch(result.Body, -1)
	hrefs := make([]string, 0, len(matches))
	for _, m := range matches {
		hrefs = append(hrefs, m[1])
	}

	// Resolve against the final URL so redirected pages produce correct
	// absolute links.
	base := result.FinalURL
	if base == "" {
		base = pageURL
	}

	return filterLinks(hrefs, base, targetHost), nil
}
