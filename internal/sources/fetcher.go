package sources

import (
	"context"
	"time"

	"github.com/blocknews/blocknews/internal/models"
)

// Fetcher pulls headlines from one upstream news source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}

// FetchResult carries one fetcher's outcome through the aggregation fan-out.
type FetchResult struct {
	Source string
	Items  []models.NewsItem
	Err    error
}

type FetcherConfig struct {
	Timeout   time.Duration
	MaxItems  int
	UserAgent string
}

func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:   30 * time.Second,
		MaxItems:  50,
		UserAgent: "BlockNews/1.0",
	}
}
