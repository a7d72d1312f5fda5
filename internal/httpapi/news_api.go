package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/blocknews/blocknews/internal/aggregator"
	"github.com/blocknews/blocknews/internal/logging"
	"github.com/blocknews/blocknews/internal/models"
)

// NewsAPI serves the aggregated external-feed headlines.
type NewsAPI struct {
	agg    *aggregator.Aggregator
	logger *logging.Logger
}

func NewNewsAPI(agg *aggregator.Aggregator, logger *logging.Logger) *NewsAPI {
	return &NewsAPI{agg: agg, logger: logger}
}

// RegisterRoutes registers news routes on the given mux
func (api *NewsAPI) RegisterRoutes(mux *http.ServeMux, middleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/news", middleware(api.handleNews))
}

func (api *NewsAPI) handleNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	items, err := api.agg.Latest(ctx)
	if err != nil {
		api.logger.Error("Failed to aggregate news", logging.WithField("error", err.Error()))
		items = []models.NewsItem{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":   items,
		"count":   len(items),
		"sources": api.agg.SourceCount(),
	})
}
