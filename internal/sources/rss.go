package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/blocknews/blocknews/internal/models"
	"github.com/blocknews/blocknews/internal/ratelimit"
)

// RSSFetcher reads one RSS or Atom feed. The item source is the feed's
// own title when it has one, else the feed URL's host.
type RSSFetcher struct {
	url     string
	parser  *gofeed.Parser
	limiter *ratelimit.Limiter
	config  FetcherConfig
}

func NewRSSFetcher(feedURL string, limiter *ratelimit.Limiter, config FetcherConfig) *RSSFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = config.UserAgent

	return &RSSFetcher{
		url:     feedURL,
		parser:  parser,
		limiter: limiter,
		config:  config,
	}
}

func (f *RSSFetcher) Name() string {
	return f.url
}

func (f *RSSFetcher) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	f.limiter.Wait(hostOf(f.url))

	ctxWithTimeout, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(f.url, ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", f.url, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = hostOf(f.url)
	}

	items := make([]models.NewsItem, 0, len(feed.Items))
	for i, item := range feed.Items {
		if i >= f.config.MaxItems {
			break
		}

		pubDate := time.Now()
		if item.PublishedParsed != nil {
			pubDate = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pubDate = *item.UpdatedParsed
		}

		items = append(items, models.NewsItem{
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			PubDate:     pubDate,
			Source:      source,
			Description: strings.TrimSpace(item.Description),
		})
	}

	return items, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// NewRSSFetchers builds one fetcher per feed URL.
func NewRSSFetchers(feedURLs []string, limiter *ratelimit.Limiter, config FetcherConfig) []Fetcher {
	fetchers := make([]Fetcher, 0, len(feedURLs))
	for _, u := range feedURLs {
		fetchers = append(fetchers, NewRSSFetcher(u, limiter, config))
	}
	return fetchers
}
