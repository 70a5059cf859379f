// Package sitemap discovers URLs by fetching and parsing sitemap XML.
package sitemap

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html/charset"

	"github.com/pagelens/crawler/internal/fetch"
	"github.com/pagelens/crawler/internal/logger"
)

const (
	// maxURLs guards against sitemap-index explosion.
	maxURLs = 100
	// chunkSize bounds parallel child-sitemap fetches.
	chunkSize = 5
)

// candidatePaths are conventional sitemap locations, tried in order.
var candidatePaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/wp-sitemap.xml",
	"/sitemap/sitemap.xml",
}

// urlSet is a leaf sitemap document.
type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapIndex is an index document listing child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Resolver fetches and parses sitemaps for an origin.
type Resolver struct {
	client *fetch.Client
	log    *logger.Logger
}

// NewResolver creates a sitemap resolver using the given HTTP client.
func NewResolver(client *fetch.Client, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		client: client,
		log:    log.WithComponent("sitemap"),
	}
}

// Resolve tries conventional sitemap locations against the origin of target
// and returns the URLs of the first sitemap that parses, following one level
// of sitemap-index indirection. extra holds additional candidates, typically
// Sitemap: references found in robots.txt. limit stops accumulation early;
// the overall maxURLs guard applies regardless.
func (r *Resolver) Resolve(ctx context.Context, target string, limit int, extra []string) []string {
	baseURL, err := url.Parse(target)
	if err != nil {
		return nil
	}
	origin := baseURL.Scheme + "://" + baseURL.Host

	limitCap := maxURLs
	if limit > 0 && limit < limitCap {
		limitCap = limit
	}

	candidates := make([]string, 0, len(candidatePaths)+len(extra))
	for _, path := range candidatePaths {
		candidates = append(candidates, origin+path)
	}
	candidates = append(candidates, extra...)

	for _, sitemapURL := range candidates {
		urls, children := r.fetchOne(ctx, sitemapURL)

		if len(children) > 0 {
			urls = append(urls, r.resolveChildren(ctx, children, limitCap)...)
		}

		if len(urls) > 0 {
			r.log.Debugf("Sitemap %s yielded %d URLs", sitemapURL, len(urls))
			if len(urls) > limitCap {
				urls = urls[:limitCap]
			}
			return urls
		}
	}

	return nil
}

// fetchOne fetches a single sitemap document and returns its page URLs and
// any child sitemap locations. Failures are swallowed: the caller moves on.
func (r *Resolver) fetchOne(ctx context.Context, sitemapURL string) (urls, children []string) {
	result, err := r.client.Get(ctx, sitemapURL)
	if err != nil || result.StatusCode != 200 {
		return nil, nil
	}

	if index, ok := parseIndex(result.Body); ok {
		return nil, index
	}

	return parseURLSet(result.Body), nil
}

// resolveChildren fetches child sitemaps in parallel chunks, accumulating
// URLs until the cap is reached. One child's failure never aborts the rest.
func (r *Resolver) resolveChildren(ctx context.Context, children []string, limitCap int) []string {
	var all []string

	for start := 0; start < len(children) && len(all) < limitCap; start += chunkSize {
		end := start + chunkSize
		if end > len(children) {
			end = len(children)
		}
		chunk := children[start:end]

		results := make([][]string, len(chunk))
		var wg sync.WaitGroup
		for i, childURL := range chunk {
			wg.Add(1)
			go func(idx int, u string) {
				defer wg.Done()
				result, err := r.client.Get(ctx, u)
				if err != nil || result.StatusCode != 200 {
					return
				}
				results[idx] = parseURLSet(result.Body)
			}(i, childURL)
		}
		wg.Wait()

		for _, urls := range results {
			all = append(all, urls...)
		}
	}

	if len(all) > limitCap {
		all = all[:limitCap]
	}
	return all
}

// parseURLSet decodes a leaf urlset document.
func parseURLSet(body string) []string {
	var set urlSet
	if err := decodeXML(body, &set); err != nil {
		return nil
	}

	urls := make([]string, 0, len(set.URLs))
	for _, entry := range set.URLs {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls
}

// parseIndex decodes a sitemapindex document, reporting whether the body
// was one.
func parseIndex(body string) ([]string, bool) {
	var index sitemapIndex
	if err := decodeXML(body, &index); err != nil || len(index.Sitemaps) == 0 {
		return nil, false
	}

	children := make([]string, 0, len(index.Sitemaps))
	for _, entry := range index.Sitemaps {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			children = append(children, loc)
		}
	}
	return children, len(children) > 0
}

// decodeXML decodes sitemap XML with charset support; sitemaps in the wild
// are not always UTF-8.
func decodeXML(body string, v interface{}) error {
	decoder := xml.NewDecoder(strings.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder.Decode(v)
}

// FilterHost keeps only URLs whose hostname matches host, ignoring a
// leading "www." on either side.
func FilterHost(urls []string, host string) []string {
	stripped := strings.TrimPrefix(strings.ToLower(host), "www.")

	filtered := make([]string, 0, len(urls))
	for _, u := range urls {
		parsed, err := url.Parse(u)
		if err != nil {
			continue
		}
		if strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.") == stripped {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
