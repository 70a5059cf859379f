// Package robots fetches and parses robots.txt disallow rules.
//
// Only prefix-match Disallow directives are honored. Wildcards and
// crawl-delay are out of scope for the audit crawler.
package robots

import (
	"bufio"
	"context"
	"net/url"
	"strings"

	"github.com/pagelens/crawler/internal/fetch"
)

// AgentToken identifies the crawler in robots.txt user-agent matching.
const AgentToken = "pagelensbot"

// Rules holds the robots.txt directives relevant to one crawl.
type Rules struct {
	// Disallowed path prefixes that apply to this crawler's agent.
	Disallowed []string
	// Sitemaps are Sitemap: references, fed to the sitemap resolver as
	// extra candidates.
	Sitemaps []string
}

// Parser fetches and parses a site's robots.txt.
type Parser struct {
	client *fetch.Client
	agent  string
}

// NewParser creates a robots.txt parser using the given HTTP client.
func NewParser(client *fetch.Client) *Parser {
	return &Parser{
		client: client,
		agent:  AgentToken,
	}
}

// Fetch retrieves robots.txt for the origin of target exactly once and
// returns every directive the crawler cares about. Any fetch failure yields
// zero Rules: the crawl proceeds fail-open.
func (p *Parser) Fetch(ctx context.Context, target string) Rules {
	baseURL, err := url.Parse(target)
	if err != nil {
		return Rules{}
	}

	robotsURL := baseURL.Scheme + "://" + baseURL.Host + "/robots.txt"
	result, err := p.client.Get(ctx, robotsURL)
	if err != nil || result.StatusCode != 200 {
		return Rules{}
	}

	return p.parse(result.Body)
}

// parse runs the line state machine over robots.txt content. A User-agent
// line opens a block; Disallow lines are collected only while the current
// block applies to us. Sitemap references are global.
func (p *Parser) parse(content string) Rules {
	var rules Rules
	relevant := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		directive := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch directive {
		case "user-agent":
			relevant = p.matchesAgent(value)
		case "disallow":
			if relevant && value != "" {
				rules.Disallowed = append(rules.Disallowed, value)
			}
		case "sitemap":
			if value != "" {
				rules.Sitemaps = append(rules.Sitemaps, value)
			}
		}
	}

	return rules
}

// matchesAgent reports whether a User-agent value applies to this crawler.
func (p *Parser) matchesAgent(value string) bool {
	value = strings.ToLower(value)
	return value == "*" || strings.Contains(value, p.agent) || strings.Contains(p.agent, value)
}

// IsDisallowed reports whether a URL's path matches any disallowed prefix.
func IsDisallowed(urlStr string, disallowed []string) bool {
	if len(disallowed) == 0 {
		return false
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	for _, prefix := range disallowed {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}
