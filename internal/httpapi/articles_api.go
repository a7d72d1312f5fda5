package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blocknews/blocknews/internal/config"
	"github.com/blocknews/blocknews/internal/database"
	"github.com/blocknews/blocknews/internal/logging"
	"github.com/blocknews/blocknews/internal/models"
	"github.com/blocknews/blocknews/internal/rss"
)

// Contractual Cache-Control values. Downstream CDNs key on these.
const (
	articlesJSONCacheControl = "public, max-age=30"
	articleRSSCacheControl   = "public, max-age=3600"
)

// ArticleStore is the slice of the article store these routes need.
type ArticleStore interface {
	Latest(ctx context.Context, limit int) ([]models.Article, error)
	BySource(ctx context.Context, source string, limit int) ([]models.Article, error)
	Paged(ctx context.Context, params database.PagedArticlesParams) (database.PagedArticles, error)
	SourceStats(ctx context.Context) ([]models.SourceStat, error)
}

// ArticlesAPI serves article JSON and RSS routes.
type ArticlesAPI struct {
	store   ArticleStore
	sources config.SourcesConfig
	baseURL string
	logger  *logging.Logger
}

func NewArticlesAPI(store ArticleStore, sources config.SourcesConfig, baseURL string, logger *logging.Logger) *ArticlesAPI {
	return &ArticlesAPI{
		store:   store,
		sources: sources,
		baseURL: baseURL,
		logger:  logger,
	}
}

// RegisterRoutes registers article routes on the given mux
func (api *ArticlesAPI) RegisterRoutes(mux *http.ServeMux, middleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/articles", middleware(api.handleArticles))
	mux.HandleFunc("/api/rss/latest", middleware(api.handleRSSLatest))
	mux.HandleFunc("/api/rss/source/", middleware(api.handleRSSBySource))
	mux.HandleFunc("/api/rss/sources", middleware(api.handleSources))
}

// handleArticles serves /api/articles. With paginated=true it returns a
// cursor page {items, nextCursor, hasMore}; otherwise a plain latest-N
// list. A storage failure degrades to an empty page so feed clients
// keep rendering.
func (api *ArticlesAPI) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	source := query.Get("source")
	if source != "" && !api.sources.Known(source) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown source: " + source})
		return
	}

	limit := parseLimit(query.Get("limit"), database.DefaultArticlePageSize)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	w.Header().Set("Cache-Control", articlesJSONCacheControl)

	if query.Get("paginated") != "true" {
		var (
			articles []models.Article
			err      error
		)
		if source != "" {
			articles, err = api.store.BySource(ctx, source, limit)
		} else {
			articles, err = api.store.Latest(ctx, limit)
		}
		if err != nil {
			api.logger.Error("Failed to load articles", logging.WithField("error", err.Error()))
			articles = []models.Article{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"items": articles})
		return
	}

	params := database.PagedArticlesParams{Source: source, Limit: limit}
	if before := query.Get("before"); before != "" {
		if id, err := strconv.ParseInt(before, 10, 64); err == nil {
			params.BeforeID = &id
		}
	}

	page, err := api.store.Paged(ctx, params)
	if err != nil {
		api.logger.Error("Failed to page articles", logging.WithField("error", err.Error()))
		page = database.PagedArticles{Items: []models.Article{}}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":      page.Items,
		"nextCursor": page.NextCursor,
		"hasMore":    page.HasMore,
	})
}

func (api *ArticlesAPI) handleRSSLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := rss.ChannelInfo{
		Title:       "BlockNews Latest",
		Link:        api.baseURL,
		Description: "Latest articles from all sources",
		SelfLink:    api.baseURL + "/api/rss/latest",
	}

	api.serveArticleFeed(w, r, "", info)
}

// handleRSSBySource serves /api/rss/source/{source}. An unknown source
// key is a client error, answered with an error-channel document so
// feed readers still get XML.
func (api *ArticlesAPI) handleRSSBySource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/rss/source/"), "/")
	if source == "" || strings.Contains(source, "/") {
		writeXML(w, http.StatusBadRequest, rss.Render(rss.ErrorFeed(rss.ChannelInfo{Link: api.baseURL})))
		return
	}
	if !api.sources.Known(source) {
		writeXML(w, http.StatusBadRequest, rss.Render(rss.ErrorFeed(rss.ChannelInfo{Link: api.baseURL})))
		return
	}

	display := api.sources.DisplayName(source)
	info := rss.ChannelInfo{
		Title:       "BlockNews - " + display,
		Link:        api.baseURL,
		Description: "Latest articles from " + display,
		SelfLink:    api.baseURL + "/api/rss/source/" + source,
	}

	api.serveArticleFeed(w, r, source, info)
}

func (api *ArticlesAPI) serveArticleFeed(w http.ResponseWriter, r *http.Request, source string, info rss.ChannelInfo) {
	query := r.URL.Query()

	params := database.PagedArticlesParams{
		Source: source,
		Limit:  parseLimit(query.Get("limit"), rssPageSize),
	}
	if before := query.Get("before"); before != "" {
		if id, err := strconv.ParseInt(before, 10, 64); err == nil {
			params.BeforeID = &id
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	page, err := api.store.Paged(ctx, params)
	if err != nil {
		api.logger.Error("Failed to build article feed", logging.WithField("error", err.Error()))
		writeXML(w, http.StatusInternalServerError, rss.Render(rss.ErrorFeed(info)))
		return
	}

	w.Header().Set("Cache-Control", articleRSSCacheControl)
	writeXML(w, http.StatusOK, rss.Render(rss.ArticlesFeed(info, page.Items)))
}

// handleSources lists the configured sources with article counts.
func (api *ArticlesAPI) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := api.store.SourceStats(ctx)
	if err != nil {
		api.logger.Error("Failed to load source stats", logging.WithField("error", err.Error()))
		stats = []models.SourceStat{}
	}

	type sourceEntry struct {
		Key         string `json:"key"`
		DisplayName string `json:"displayName"`
		RSSURL      string `json:"rssUrl"`
		Count       int    `json:"count"`
	}

	counts := make(map[string]int, len(stats))
	for _, stat := range stats {
		counts[stat.Source] = stat.Count
	}

	keys := make([]string, 0, len(api.sources.Map))
	for key := range api.sources.Map {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]sourceEntry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, sourceEntry{
			Key:         key,
			DisplayName: api.sources.DisplayName(key),
			RSSURL:      api.baseURL + "/api/rss/source/" + key,
			Count:       counts[key],
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": entries,
		"count":   len(entries),
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
