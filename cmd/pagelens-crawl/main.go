package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagelens/crawler/internal/logger"
	"github.com/pagelens/crawler/pkg/crawler"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	logLevel   string
	verbose    bool
	debug      bool

	// Crawl flags
	maxPages    int
	maxDepth    int
	concurrency int
	poolSize    int
	timeout     int
	noSitemap   bool
	noRobots    bool
	noHeadless  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pagelens-crawl",
		Short: "PageLens Crawler - Website Page Discovery",
		Long: `PageLens Crawler - Page discovery for website audits.

Discovers a bounded set of same-site pages starting from a target URL, using
sitemaps, robots.txt rules, and rendered-page link extraction through a pool
of headless browsers.`,
		Version: version,
	}

	crawlCmd := &cobra.Command{
		Use:   "crawl [target]",
		Short: "Discover pages on a target site",
		Long:  "Discover same-site pages starting from a target URL and print them in discovery order.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Crawl flags
	crawlCmd.Flags().IntVarP(&maxPages, "max-pages", "p", crawler.DefaultMaxPages, "Maximum pages to discover")
	crawlCmd.Flags().IntVarP(&maxDepth, "max-depth", "d", crawler.DefaultMaxDepth, "Maximum crawl depth")
	crawlCmd.Flags().IntVarP(&concurrency, "concurrency", "w", crawler.DefaultConcurrency, "Parallel extractions per batch")
	crawlCmd.Flags().IntVar(&poolSize, "pool-size", 0, "Browser pool size (default from config)")
	crawlCmd.Flags().IntVarP(&timeout, "timeout", "t", 0, "Crawl time budget in seconds (default from config)")
	crawlCmd.Flags().BoolVar(&noSitemap, "no-sitemap", false, "Disable the sitemap fast path")
	crawlCmd.Flags().BoolVar(&noRobots, "no-robots", false, "Ignore robots.txt Disallow rules")
	crawlCmd.Flags().BoolVar(&noHeadless, "no-headless", false, "Show browser windows (debugging)")

	rootCmd.AddCommand(crawlCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCrawl(cmd *cobra.Command, args []string) error {
	target := args[0]

	config := crawler.DefaultConfig()
	if configFile != "" {
		fileConfig, err := crawler.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	// Command-line flags take precedence over the config file
	if cmd.Flags().Changed("pool-size") {
		config.Browser.PoolSize = poolSize
	}
	if cmd.Flags().Changed("timeout") {
		config.CrawlTimeout = time.Duration(timeout) * time.Second
	}
	if noHeadless {
		config.Browser.Headless = false
	}
	config.Verbose = verbose
	config.Debug = debug

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	if verbose || debug {
		level = logger.DebugLevel
	}
	log := logger.New(logger.Config{
		Level:  level,
		Pretty: true,
		Output: os.Stderr,
	})

	c, err := crawler.New(
		crawler.WithConfig(config),
		crawler.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	defer c.Close()

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, stopping...\n")
		cancel()
	}()

	opts := &crawler.Options{
		MaxPages:     maxPages,
		MaxDepth:     maxDepth,
		Concurrency:  concurrency,
		SkipSitemap:  noSitemap,
		IgnoreRobots: noRobots,
	}

	startTime := time.Now()
	pages, err := c.Crawl(ctx, target, opts)
	duration := time.Since(startTime)

	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	for _, page := range pages {
		fmt.Println(page)
	}

	fmt.Fprintf(os.Stderr, "\nDiscovered %d pages in %v\n", len(pages), duration.Round(time.Millisecond))

	return nil
}
