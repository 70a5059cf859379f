// Package scope provides URL validation, normalization, and same-site
// checking for the crawler.
package scope

import (
	"net"
	"net/url"
	"strings"

	"github.com/pagelens/crawler/internal/errors"
)

// Normalize normalizes a URL for deduplication: lowercased scheme and host,
// default ports removed, fragment stripped, trailing slash stripped unless
// the path is root.
func Normalize(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	if (parsed.Scheme == "http" && strings.HasSuffix(parsed.Host, ":80")) ||
		(parsed.Scheme == "https" && strings.HasSuffix(parsed.Host, ":443")) {
		parsed.Host = parsed.Host[:strings.LastIndex(parsed.Host, ":")]
	}

	parsed.Fragment = ""

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	if parsed.Host != "" && parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed.String(), nil
}

// StripWWW removes a single leading "www." label from a hostname.
func StripWWW(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// SameSite reports whether two hostnames refer to the same site, ignoring a
// leading "www." on either side.
func SameSite(a, b string) bool {
	return StripWWW(a) == StripWWW(b)
}

// ResolveURL resolves a relative URL against a base URL.
func ResolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	ref, err := url.Parse(relativeURL)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(ref).String(), nil
}

// IsNavigable reports whether an href points at a page the crawler could
// visit. Fragment-only, script-protocol, mailto:, tel:, and data: targets
// are rejected.
func IsNavigable(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}

	return true
}

// skipExtensions lists common non-page resource extensions.
var skipExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".ico", ".svg", ".webp",
	".css", ".js", ".woff", ".woff2", ".ttf", ".eot",
	".pdf", ".zip", ".tar", ".gz", ".rar",
	".mp3", ".mp4", ".wav", ".avi", ".mov",
}

// IsPageURL reports whether a URL is a crawlable page: http/https with a
// host, and not an obvious static resource.
func IsPageURL(urlStr string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if parsed.Host == "" {
		return false
	}

	path := strings.ToLower(parsed.Path)
	for _, ext := range skipExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}

	return true
}

// FilterLink validates, scopes, and normalizes a single extracted href
// against the crawl's target hostname. It returns the normalized absolute
// URL and true when the link should be kept.
func FilterLink(href, baseURL, targetHost string) (string, bool) {
	if !IsNavigable(href) {
		return "", false
	}

	resolved, err := ResolveURL(baseURL, href)
	if err != nil {
		return "", false
	}

	if !IsPageURL(resolved) {
		return "", false
	}

	parsed, err := url.Parse(resolved)
	if err != nil {
		return "", false
	}

	if !SameSite(parsed.Hostname(), targetHost) {
		return "", false
	}

	normalized, err := Normalize(resolved)
	if err != nil {
		return "", false
	}

	return normalized, true
}

// ValidateStartURL is the SSRF safety gate for externally supplied start
// URLs. It runs before any fetch or render touches the URL: explicit
// non-http schemes are rejected, as are loopback, private, and link-local
// addresses and localhost-style hostnames. Strings the gate cannot even
// parse are let through: nothing fetchable comes of them, and the crawler
// degrades to returning the input as-is.
func ValidateStartURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "" && scheme != "http" && scheme != "https" {
		return errors.NewValidationError(rawURL, "only http and https schemes are allowed")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil
	}

	if host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") {
		return errors.NewValidationError(rawURL, "local hostnames are not allowed")
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return errors.NewValidationError(rawURL, "private and loopback addresses are not allowed")
		}
	}

	return nil
}
