// Package aggregator fans out to every configured news fetcher and
// merges the results into one reverse-chronological headline list.
package aggregator

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blocknews/blocknews/internal/cache"
	"github.com/blocknews/blocknews/internal/logging"
	"github.com/blocknews/blocknews/internal/models"
	"github.com/blocknews/blocknews/internal/sources"
)

const newsCacheKey = "news:all"

type Options struct {
	MaxCount int
	CacheTTL time.Duration
}

type Aggregator struct {
	fetchers []sources.Fetcher
	cache    cache.Cache
	logger   *logging.Logger
	opts     Options
	mu       sync.RWMutex
	items    []models.NewsItem
}

func New(fetchers []sources.Fetcher, c cache.Cache, logger *logging.Logger, opts Options) *Aggregator {
	if opts.MaxCount <= 0 {
		opts.MaxCount = 20
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &Aggregator{
		fetchers: fetchers,
		cache:    c,
		logger:   logger,
		opts:     opts,
		items:    make([]models.NewsItem, 0),
	}
}

// Latest returns the merged headline list. Within the cache TTL the
// cached snapshot is returned as-is and no upstream request is made.
func (a *Aggregator) Latest(ctx context.Context) ([]models.NewsItem, error) {
	if items, ok := a.loadFromCache(); ok {
		return items, nil
	}
	return a.Refresh(ctx)
}

// Refresh fetches every source regardless of cache state. A failing
// source is logged and skipped; its items are simply absent from the
// merged list. The refreshed snapshot replaces the cached one.
func (a *Aggregator) Refresh(ctx context.Context) ([]models.NewsItem, error) {
	var wg sync.WaitGroup
	results := make(chan sources.FetchResult, len(a.fetchers))

	for _, fetcher := range a.fetchers {
		wg.Add(1)
		go func(f sources.Fetcher) {
			defer wg.Done()

			items, err := f.Fetch(ctx)
			results <- sources.FetchResult{
				Source: f.Name(),
				Items:  items,
				Err:    err,
			}
		}(fetcher)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	allItems := make([]models.NewsItem, 0)
	failures := 0
	for result := range results {
		if result.Err != nil {
			failures++
			a.logger.Warn("Failed to fetch news source", logging.WithFields(map[string]interface{}{
				"source": result.Source,
				"error":  result.Err.Error(),
			}))
			continue
		}

		a.logger.Info("Fetched news source", logging.WithFields(map[string]interface{}{
			"source": result.Source,
			"count":  len(result.Items),
		}))

		allItems = append(allItems, result.Items...)
	}

	merged := deduplicate(allItems)
	sortByDate(merged)
	if len(merged) > a.opts.MaxCount {
		merged = merged[:a.opts.MaxCount]
	}

	a.mu.Lock()
	a.items = merged
	a.mu.Unlock()

	if a.cache != nil {
		a.cache.SetWithTTL(newsCacheKey, merged, a.opts.CacheTTL)
	}

	a.logger.Info("News aggregation complete", logging.WithFields(map[string]interface{}{
		"total_items": len(merged),
		"sources":     len(a.fetchers),
		"failures":    failures,
	}))

	return merged, nil
}

// Snapshot returns the last merged list without touching cache or network.
func (a *Aggregator) Snapshot() []models.NewsItem {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.items
}

func (a *Aggregator) SourceCount() int {
	return len(a.fetchers)
}

func (a *Aggregator) loadFromCache() ([]models.NewsItem, bool) {
	if a.cache == nil {
		return nil, false
	}

	cached, ok := a.cache.Get(newsCacheKey)
	if !ok || cached == nil {
		return nil, false
	}

	// An empty snapshot is never a hit: it would pin a transient
	// all-sources outage for the whole TTL.
	if items, ok := cached.([]models.NewsItem); ok {
		if len(items) == 0 {
			return nil, false
		}
		return items, true
	}

	// The Redis backend hands back generically decoded JSON.
	raw, err := json.Marshal(cached)
	if err != nil {
		return nil, false
	}

	var decoded []models.NewsItem
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false
	}
	if len(decoded) == 0 {
		return nil, false
	}

	return decoded, true
}

// deduplicate drops repeated links, then repeated titles. Feeds that
// syndicate each other routinely produce both kinds of duplicates.
func deduplicate(items []models.NewsItem) []models.NewsItem {
	linkSeen := make(map[string]bool)
	titleSeen := make(map[string]bool)
	result := make([]models.NewsItem, 0, len(items))

	for _, item := range items {
		if item.Link != "" && linkSeen[item.Link] {
			continue
		}

		normalizedTitle := strings.ToLower(strings.TrimSpace(item.Title))
		if titleSeen[normalizedTitle] {
			continue
		}

		linkSeen[item.Link] = true
		titleSeen[normalizedTitle] = true
		result = append(result, item)
	}

	return result
}

func sortByDate(items []models.NewsItem) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].PubDate.After(items[j].PubDate)
	})
}
