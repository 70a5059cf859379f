package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagelens/crawler/internal/browser"
	"github.com/pagelens/crawler/internal/extract"
	"github.com/pagelens/crawler/internal/fetch"
)

// Config holds process-level crawler configuration. Per-crawl knobs live in
// Options.
type Config struct {
	// Browser pool configuration
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Plain HTTP client configuration (robots, sitemaps, fallback fetches)
	Fetch fetch.Config `json:"fetch" yaml:"fetch"`

	// Link extraction timing
	Extract extract.Config `json:"extract" yaml:"extract"`

	// Overall wall-clock budget for one crawl
	CrawlTimeout time.Duration `json:"crawl_timeout" yaml:"crawl_timeout"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser:      browser.DefaultConfig(),
		Fetch:        fetch.DefaultConfig(),
		Extract:      extract.DefaultConfig(),
		CrawlTimeout: 120 * time.Second,
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Browser.PoolSize < 1 {
		return fmt.Errorf("browser pool size must be at least 1")
	}

	if c.CrawlTimeout <= 0 {
		return fmt.Errorf("crawl timeout must be positive")
	}

	if c.Extract.NavTimeout < 0 || c.Extract.PrimaryTimeout < 0 {
		return fmt.Errorf("extraction timeouts must not be negative")
	}

	return nil
}
