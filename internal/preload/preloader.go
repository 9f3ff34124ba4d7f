// Package preload warms winning image assets into an in-memory hot cache,
// with bounded batch concurrency, in-flight deduplication, and a short
// cool-down after failed fetches.
package preload

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/course-illustrator/internal/ban"
	"github.com/jonathan/course-illustrator/internal/cache"
	"github.com/jonathan/course-illustrator/internal/fetch"
)

// Defaults for preloading behavior.
const (
	DefaultMaxConcurrent = 3
	// DefaultCooldown is how long a failed URL is skipped before a fetch is
	// attempted again.
	DefaultCooldown = 5 * time.Minute
)

// AssetInfo is a preloaded asset: the raw bytes plus size and dimension
// metadata, keyed by URL in the shared cache primitive.
type AssetInfo struct {
	URL       string    `json:"url"`
	Data      []byte    `json:"-"`
	ByteSize  int       `json:"byte_size"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Fetcher retrieves raw bytes for a URL. Injectable for tests; the default
// wraps fetch.URL.
type Fetcher func(ctx context.Context, url string) (*fetch.Result, error)

// Config assembles a Preloader.
type Config struct {
	Fetcher       Fetcher
	FetchOptions  *fetch.Options
	CacheSize     int
	CacheTTL      time.Duration
	Cooldown      time.Duration
	MaxConcurrent int
	Verbose       bool
}

// Preloader fetches asset bytes into memory. Concurrent Preload calls for the
// same URL share one fetch; batches never exceed their concurrency bound.
type Preloader struct {
	assets  *cache.Cache[*AssetInfo]
	fetcher Fetcher

	mu       sync.Mutex
	failures map[string]time.Time

	cooldown      time.Duration
	maxConcurrent int
	verbose       bool

	now func() time.Time
}

// New creates a preloader and its backing asset cache.
func New(cfg Config) *Preloader {
	if cfg.Fetcher == nil {
		opts := cfg.FetchOptions
		cfg.Fetcher = func(ctx context.Context, url string) (*fetch.Result, error) {
			return fetch.URL(ctx, url, opts)
		}
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}

	return &Preloader{
		assets: cache.New[*AssetInfo](cache.Config{
			Capacity: cfg.CacheSize,
			TTL:      cfg.CacheTTL,
		}),
		fetcher:       cfg.Fetcher,
		failures:      make(map[string]time.Time),
		cooldown:      cfg.Cooldown,
		maxConcurrent: cfg.MaxConcurrent,
		verbose:       cfg.Verbose,
		now:           time.Now,
	}
}

// Preload fetches a URL into the hot cache, or returns the cached asset. A
// URL that failed recently returns a FetchError without a new attempt until
// its cool-down elapses. Failures are never fatal to the caller's request.
func (p *Preloader) Preload(ctx context.Context, url string) (*AssetInfo, error) {
	if until, cooling := p.coolingDown(url); cooling {
		return nil, &FetchError{URL: url, Message: "cooling down after recent failure", RetryAt: until}
	}

	return p.assets.GetOrCompute(ctx, url, func(ctx context.Context) (*AssetInfo, bool, error) {
		result, err := p.fetcher(ctx, url)
		if err != nil {
			p.recordFailure(url)
			return nil, false, &FetchError{URL: url, Message: "fetch failed", Cause: err}
		}

		imgInfo := fetch.DecodeImageInfo(result.Body)
		info := &AssetInfo{
			URL:       url,
			Data:      result.Body,
			ByteSize:  imgInfo.ByteSize,
			Width:     imgInfo.Width,
			Height:    imgInfo.Height,
			Format:    imgInfo.Format,
			FetchedAt: p.now(),
		}

		p.clearFailure(url)
		if p.verbose {
			log.Printf("[PRELOAD] Warmed %s (%d bytes, %dx%d)", url, info.ByteSize, info.Width, info.Height)
		}
		return info, true, nil
	})
}

// PreloadBatch warms a list of URLs with at most maxConcurrent fetches
// outstanding at any moment: the input is partitioned into chunks of that
// size and chunks run sequentially, items within a chunk concurrently.
// The error slice aligns with the input; a failed URL yields its error there.
func (p *Preloader) PreloadBatch(ctx context.Context, urls []string, maxConcurrent int) ([]*AssetInfo, []error) {
	if maxConcurrent <= 0 {
		maxConcurrent = p.maxConcurrent
	}

	results := make([]*AssetInfo, len(urls))
	errs := make([]error, len(urls))

	for start := 0; start < len(urls); start += maxConcurrent {
		end := min(start+maxConcurrent, len(urls))

		g, gCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				info, err := p.Preload(gCtx, urls[i])
				results[i] = info
				errs[i] = err
				// Individual failures stay in the error slice; the chunk
				// always runs to completion.
				return nil
			})
		}
		_ = g.Wait()
	}

	return results, errs
}

// Get returns a warmed asset without fetching.
func (p *Preloader) Get(url string) (*AssetInfo, bool) {
	return p.assets.Get(url)
}

// InvalidateMatching purges warmed assets matching a ban pattern and returns
// the count removed. Asset entries are shared bytes keyed by URL only, with
// no course attribution: course scope cannot apply here, so a scoped pattern
// matches globally and a bare course-scoped pattern purges nothing.
func (p *Preloader) InvalidateMatching(pattern ban.Pattern) int {
	unscoped := ban.Pattern{ExactURL: pattern.ExactURL, Substring: pattern.Substring}
	return p.assets.Purge(func(url string, _ *AssetInfo) bool {
		return unscoped.Matches("", url)
	})
}

// PurgeAll empties the asset cache and returns the count removed.
func (p *Preloader) PurgeAll() int {
	return p.assets.Purge(func(string, *AssetInfo) bool { return true })
}

// CacheLen reports the number of warmed assets.
func (p *Preloader) CacheLen() int {
	return p.assets.Len()
}

// Stop halts the asset cache's background sweep.
func (p *Preloader) Stop() {
	p.assets.Stop()
}

func (p *Preloader) coolingDown(url string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	failedAt, ok := p.failures[url]
	if !ok {
		return time.Time{}, false
	}
	until := failedAt.Add(p.cooldown)
	if p.now().After(until) {
		delete(p.failures, url)
		return time.Time{}, false
	}
	return until, true
}

func (p *Preloader) recordFailure(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[url] = p.now()
}

func (p *Preloader) clearFailure(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, url)
}
