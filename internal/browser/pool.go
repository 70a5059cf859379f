package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/pagelens/crawler/internal/logger"
	"github.com/pagelens/crawler/internal/metrics"
)

// Task runs with exclusive access to a fresh page on a pooled browser.
type Task func(ctx context.Context, page *rod.Page) error

// pooledBrowser is one instance managed by the pool. Satisfied by Browser;
// pool tests substitute fakes.
type pooledBrowser interface {
	Run(ctx context.Context, task Task) error
	Healthy() bool
	MarkCrashed()
	IsCrashed() bool
	NeedsReplace() bool
	PageCount() int
	Close() error
}

// browserFactory launches one pool instance.
type browserFactory func(Config) (pooledBrowser, error)

func launchBrowser(config Config) (pooledBrowser, error) {
	b, err := New(config)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Pool manages a fixed-size set of browser instances. Slot acquisition is
// FIFO via a buffered-channel semaphore; release happens on every exit path.
type Pool struct {
	mu       sync.Mutex
	browsers []pooledBrowser
	config   Config
	factory  browserFactory
	size     int
	current  int
	closed   bool
	sem      chan struct{}
	log      *logger.Logger
	metrics  *metrics.Collector
}

// NewPool creates a browser pool and pre-launches its instances.
func NewPool(config Config, log *logger.Logger, m *metrics.Collector) (*Pool, error) {
	return newPool(config, log, m, launchBrowser)
}

func newPool(config Config, log *logger.Logger, m *metrics.Collector, factory browserFactory) (*Pool, error) {
	if config.PoolSize < 1 {
		config.PoolSize = 1
	}
	if log == nil {
		log = logger.Nop()
	}

	pool := &Pool{
		browsers: make([]pooledBrowser, config.PoolSize),
		config:   config,
		factory:  factory,
		size:     config.PoolSize,
		sem:      make(chan struct{}, config.PoolSize),
		log:      log.WithComponent("browser"),
		metrics:  m,
	}

	for i := 0; i < config.PoolSize; i++ {
		pool.sem <- struct{}{}
	}

	for i := 0; i < config.PoolSize; i++ {
		browser, err := factory(config)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create browser %d: %w", i, err)
		}
		pool.browsers[i] = browser
	}

	pool.log.Infof("Browser pool ready with %d instances", config.PoolSize)
	return pool, nil
}

// Execute acquires a slot, opens a fresh page on that slot's browser, runs
// task exactly once, and releases the slot unconditionally. If the browser
// is found dead afterwards it is flagged and replaced before the slot is
// used again; the task's own error still propagates untouched.
func (p *Pool) Execute(ctx context.Context, task Task) error {
	waitStart := time.Now()
	select {
	case <-p.sem:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { p.sem <- struct{}{} }()

	if p.metrics != nil {
		p.metrics.PoolAcquireWait.Observe(time.Since(waitStart).Seconds())
	}

	browser, err := p.acquire()
	if err != nil {
		return err
	}

	taskErr := browser.Run(ctx, task)
	if taskErr != nil && !browser.Healthy() {
		browser.MarkCrashed()
	}

	return taskErr
}

// acquire picks the next browser round-robin, replacing it first if it
// crashed or exhausted its recycling budget.
func (p *Pool) acquire() (pooledBrowser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("pool is closed")
	}

	idx := p.current
	p.current = (p.current + 1) % p.size

	browser := p.browsers[idx]
	if browser.NeedsReplace() {
		crashed := browser.IsCrashed()
		_ = browser.Close()
		replacement, err := p.factory(p.config)
		if err != nil {
			return nil, fmt.Errorf("failed to replace browser: %w", err)
		}
		p.browsers[idx] = replacement
		browser = replacement

		if crashed {
			p.log.Warn("Replaced crashed browser instance")
		} else {
			p.log.Debug("Recycled browser instance")
		}
		if p.metrics != nil {
			p.metrics.BrowserRespawns.Inc()
		}
	}

	return browser, nil
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}

// Stats returns pool statistics.
type PoolStats struct {
	Size       int `json:"size"`
	Available  int `json:"available"`
	TotalPages int `json:"total_pages"`
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	totalPages := 0
	for _, b := range p.browsers {
		if b != nil {
			totalPages += b.PageCount()
		}
	}

	return PoolStats{
		Size:       p.size,
		Available:  len(p.sem),
		TotalPages: totalPages,
	}
}

// Close closes all browsers in the pool. The semaphore channel stays open
// so a late Execute fails on the closed-pool check instead of panicking on
// its slot release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var lastErr error
	for _, browser := range p.browsers {
		if browser != nil {
			if err := browser.Close(); err != nil {
				lastErr = err
			}
		}
	}

	return lastErr
}
