package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/blocknews/blocknews/internal/models"
	"github.com/blocknews/blocknews/internal/ratelimit"
)

// SiteFetcher scrapes a headline listing from a site that publishes no
// feed. Selectors are CSS and map onto the listing's markup.
type SiteFetcher struct {
	name      string
	url       string
	selectors SiteSelectors
	limiter   *ratelimit.Limiter
	config    FetcherConfig
	client    *http.Client
}

type SiteSelectors struct {
	Container string
	Title     string
	Link      string
	Summary   string
}

func NewSiteFetcher(name, url string, selectors SiteSelectors, limiter *ratelimit.Limiter, config FetcherConfig) *SiteFetcher {
	return &SiteFetcher{
		name:      name,
		url:       url,
		selectors: selectors,
		limiter:   limiter,
		config:    config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *SiteFetcher) Name() string {
	return f.name
}

func (f *SiteFetcher) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	f.limiter.Wait(hostOf(f.url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", f.name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", f.url, err)
	}

	items := make([]models.NewsItem, 0)
	doc.Find(f.selectors.Container).Each(func(i int, s *goquery.Selection) {
		if i >= f.config.MaxItems {
			return
		}

		title := strings.TrimSpace(s.Find(f.selectors.Title).Text())
		if title == "" {
			return
		}

		link, _ := s.Find(f.selectors.Link).Attr("href")
		if link == "" {
			link, _ = s.Find(f.selectors.Title).Attr("href")
		}
		if link != "" && !strings.HasPrefix(link, "http") {
			link = resolveURL(f.url, link)
		}

		summary := strings.TrimSpace(s.Find(f.selectors.Summary).Text())

		items = append(items, models.NewsItem{
			Title:       title,
			Link:        link,
			PubDate:     time.Now(),
			Source:      f.name,
			Description: truncate(summary, 300),
		})
	})

	return items, nil
}

func resolveURL(base, relative string) string {
	if strings.HasPrefix(relative, "/") {
		parts := strings.SplitN(base, "/", 4)
		if len(parts) >= 3 {
			return parts[0] + "//" + parts[2] + relative
		}
	}
	return base + "/" + relative
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
