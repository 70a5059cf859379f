package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pagelens/crawler/internal/fetch"
)

func newTestResolver() *Resolver {
	return NewResolver(fetch.NewClient(fetch.Config{PerHostRate: 0}), nil)
}

func urlsetXML(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<url><loc>" + loc + "</loc></url>"
	}
	return body + "</urlset>"
}

func indexXML(locs ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		body += "<sitemap><loc>" + loc + "</loc></sitemap>"
	}
	return body + "</sitemapindex>"
}

// =============================================================================
// Resolve Tests
// =============================================================================

func TestResolveLeafSitemap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlsetXML(
			"https://example.com/",
			"https://example.com/about",
			"https://example.com/contact",
		)))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	got := newTestResolver().Resolve(context.Background(), server.URL, 10, nil)
	want := []string{"https://example.com/", "https://example.com/about", "https://example.com/contact"}

	if len(got) != len(want) {
		t.Fatalf("Resolve() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Resolve()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolveFirstCandidateWins(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlsetXML("https://example.com/from-first")))
	})
	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlsetXML("https://example.com/from-second")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	got := newTestResolver().Resolve(context.Background(), server.URL, 10, nil)
	if len(got) != 1 || got[0] != "https://example.com/from-first" {
		t.Errorf("Resolve() = %v, want only the first candidate's URLs", got)
	}
}

func TestResolveFallsThroughMissingCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlsetXML("https://example.com/wp-page")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	got := newTestResolver().Resolve(context.Background(), server.URL, 10, nil)
	if len(got) != 1 || got[0] != "https://example.com/wp-page" {
		t.Errorf("Resolve() = %v, want URLs from the later candidate", got)
	}
}

func TestResolveSitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(indexXML(
			server.URL+"/pages.xml",
			server.URL+"/posts.xml",
			server.URL+"/broken.xml",
		)))
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlsetXML("https://example.com/a", "https://example.com/b")))
	})
	mux.HandleFunc("/posts.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlsetXML("https://example.com/c")))
	})
	// broken.xml 404s; its failure must not abort the others.

	got := newTestResolver().Resolve(context.Background(), server.URL, 10, nil)
	if len(got) != 3 {
		t.Fatalf("Resolve() returned %d URLs, want 3: %v", len(got), got)
	}
}

func TestResolveLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		locs := make([]string, 30)
		for i := range locs {
			locs[i] = fmt.Sprintf("https://example.com/page-%d", i)
		}
		w.Write([]byte(urlsetXML(locs...)))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	got := newTestResolver().Resolve(context.Background(), server.URL, 5, nil)
	if len(got) != 5 {
		t.Errorf("Resolve() returned %d URLs, want 5 (caller limit)", len(got))
	}
}

func TestResolveExtraCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/custom-map.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(urlsetXML("https://example.com/custom")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	got := newTestResolver().Resolve(context.Background(), server.URL, 10, []string{server.URL + "/custom-map.xml"})
	if len(got) != 1 || got[0] != "https://example.com/custom" {
		t.Errorf("Resolve() = %v, want URLs from the robots.txt candidate", got)
	}
}

func TestResolveNothingFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	if got := newTestResolver().Resolve(context.Background(), server.URL, 10, nil); got != nil {
		t.Errorf("Resolve() = %v, want nil when no sitemap exists", got)
	}
}

func TestResolveMalformedXML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<urlset><url><loc>https://example.com/broken"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	if got := newTestResolver().Resolve(context.Background(), server.URL, 10, nil); got != nil {
		t.Errorf("Resolve() = %v, want nil for malformed XML", got)
	}
}

// =============================================================================
// FilterHost Tests
// =============================================================================

func TestFilterHost(t *testing.T) {
	urls := []string{
		"https://example.com/a",
		"https://www.example.com/b",
		"https://cdn.example.com/c",
		"https://other.com/d",
		"://bad",
	}

	got := FilterHost(urls, "example.com")
	want := []string{"https://example.com/a", "https://www.example.com/b"}

	if len(got) != len(want) {
		t.Fatalf("FilterHost() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilterHost()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilterHostWWWTarget(t *testing.T) {
	urls := []string{"https://example.com/a", "https://other.com/b"}

	got := FilterHost(urls, "www.example.com")
	if len(got) != 1 || got[0] != "https://example.com/a" {
		t.Errorf("FilterHost() = %v, want the bare-host URL kept", got)
	}
}
