package sources

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blocknews/blocknews/internal/ratelimit"
)

// FeedSource is one entry in a feeds.json file. Type "rss" entries need
// only a URL; "site" entries scrape with the given selectors.
type FeedSource struct {
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Type      string        `json:"type"`
	Selectors SiteSelectors `json:"selectors"`
	Enabled   bool          `json:"enabled"`
}

// FeedsConfig holds the full fetcher roster.
type FeedsConfig struct {
	Sources []FeedSource `json:"sources"`
}

// LoadFeedsConfig reads the fetcher roster from a JSON file.
func LoadFeedsConfig(configPath string) (*FeedsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds config: %w", err)
	}

	var config FeedsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse feeds config: %w", err)
	}

	return &config, nil
}

// FindFeedsConfig locates a feeds.json file, checking the FEEDS_CONFIG
// environment variable and then conventional paths. Returns "" when no
// file exists.
func FindFeedsConfig() string {
	candidates := []string{
		os.Getenv("FEEDS_CONFIG"),
		"feeds.json",
		"config/feeds.json",
	}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FetchersFromConfig builds fetchers for every enabled source. Unknown
// source types are skipped.
func FetchersFromConfig(config *FeedsConfig, limiter *ratelimit.Limiter, fetcherConfig FetcherConfig) []Fetcher {
	fetchers := make([]Fetcher, 0, len(config.Sources))

	for _, source := range config.Sources {
		if !source.Enabled {
			continue
		}

		switch source.Type {
		case "rss":
			fetchers = append(fetchers, NewRSSFetcher(source.URL, limiter, fetcherConfig))
		case "site":
			fetchers = append(fetchers, NewSiteFetcher(source.Name, source.URL, source.Selectors, limiter, fetcherConfig))
		}
	}

	return fetchers
}
