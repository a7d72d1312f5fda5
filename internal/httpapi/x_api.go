package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/blocknews/blocknews/internal/database"
	"github.com/blocknews/blocknews/internal/logging"
	"github.com/blocknews/blocknews/internal/models"
	"github.com/blocknews/blocknews/internal/rss"
)

const (
	postRSSCacheControl = "public, max-age=600"

	// RSS routes hand feed readers a fuller page than the JSON default.
	rssPageSize = 50

	// The plain latest-N response serves a larger page than a cursor
	// page, since callers of it never come back for more.
	latestDefaultLimit = 30
)

// PostStore is the slice of the X data store these routes need.
type PostStore interface {
	Latest(ctx context.Context, limit int) ([]models.XData, error)
	Paged(ctx context.Context, params database.PagedXDataParams) (database.PagedXData, error)
	UserActivityStats(ctx context.Context, since time.Time) (map[string]int, error)
}

// UserDirectory is the slice of the X user store these routes need.
type UserDirectory interface {
	All(ctx context.Context, includeExpired bool) ([]models.XUser, error)
	ByID(ctx context.Context, userID string) (*models.XUser, error)
	ByScreenName(ctx context.Context, screenName string) (*models.XUser, error)
}

// XAPI serves the X (Twitter) post and user routes.
type XAPI struct {
	posts   PostStore
	users   UserDirectory
	baseURL string
	logger  *logging.Logger
}

func NewXAPI(posts PostStore, users UserDirectory, baseURL string, logger *logging.Logger) *XAPI {
	return &XAPI{
		posts:   posts,
		users:   users,
		baseURL: baseURL,
		logger:  logger,
	}
}

// RegisterRoutes registers X data routes on the given mux
func (api *XAPI) RegisterRoutes(mux *http.ServeMux, middleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/x/latest", middleware(api.handleLatest))
	mux.HandleFunc("/api/x/users", middleware(api.handleUsers))
	mux.HandleFunc("/api/x/users/stats", middleware(api.handleUserStats))
	mux.HandleFunc("/api/x/user/", middleware(api.handleUser))
	mux.HandleFunc("/api/x/rss", middleware(api.handleRSS))
	mux.HandleFunc("/api/x/rss/", middleware(api.handleUserRSS))
}

func (api *XAPI) pageParams(r *http.Request, defaultLimit int) database.PagedXDataParams {
	query := r.URL.Query()

	params := database.PagedXDataParams{
		UserID:        query.Get("userId"),
		ItemType:      query.Get("itemType"),
		Limit:         parseLimit(query.Get("limit"), defaultLimit),
		OnlyImportant: query.Get("onlyImportant") == "true",
	}
	// cursor is the documented name; before is kept for older clients.
	before := query.Get("cursor")
	if before == "" {
		before = query.Get("before")
	}
	if before != "" {
		if t, err := time.Parse(time.RFC3339Nano, before); err == nil {
			params.Before = &t
		}
	}
	return params
}

// handleLatest serves /api/x/latest. With paginated=true it returns a
// cursor page in the {success, data, pagination} envelope; without it,
// a plain latest-N response carrying no continuation state.
func (api *XAPI) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if r.URL.Query().Get("paginated") != "true" {
		limit := parseLimit(r.URL.Query().Get("limit"), latestDefaultLimit)
		items, err := api.posts.Latest(ctx, limit)
		if err != nil {
			api.logger.Error("Failed to load latest X posts", logging.WithField("error", err.Error()))
			items = []models.XData{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"data":    items,
			"total":   len(items),
		})
		return
	}

	page, err := api.posts.Paged(ctx, api.pageParams(r, database.DefaultXDataPageSize))
	if err != nil {
		api.logger.Error("Failed to page X posts", logging.WithField("error", err.Error()))
		page = database.PagedXData{Items: []models.XData{}}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    page.Items,
		"pagination": map[string]interface{}{
			"nextCursor": page.NextCursor,
			"hasMore":    page.HasMore,
		},
	})
}

func (api *XAPI) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	includeExpired := r.URL.Query().Get("includeExpired") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	users, err := api.users.All(ctx, includeExpired)
	if err != nil {
		api.logger.Error("Failed to list X users", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "failed to load users",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    users,
	})
}

// handleUserStats serves post counts per tracked user over a window,
// 24 hours unless ?hours= overrides it.
func (api *XAPI) handleUserStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hours := parseLimit(r.URL.Query().Get("hours"), 24)
	if hours < 1 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := api.posts.UserActivityStats(ctx, since)
	if err != nil {
		api.logger.Error("Failed to load X user stats", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "failed to load stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stats,
		"hours":   hours,
	})
}

// handleUser serves /api/x/user/{userid}. A user outside the directory
// is a 404, not an empty success.
func (api *XAPI) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/x/user/"), "/")
	if userID == "" || strings.Contains(userID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "user id required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := api.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"success": false,
				"error":   "user not found",
			})
			return
		}
		api.logger.Error("Failed to load X user", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "failed to load user",
		})
		return
	}

	page, err := api.posts.Paged(ctx, database.PagedXDataParams{
		UserID: userID,
		Limit:  parseLimit(r.URL.Query().Get("limit"), database.DefaultXDataPageSize),
	})
	if err != nil {
		api.logger.Error("Failed to page user posts", logging.WithField("error", err.Error()))
		page = database.PagedXData{Items: []models.XData{}}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"user":  user,
			"posts": page.Items,
		},
		"pagination": map[string]interface{}{
			"nextCursor": page.NextCursor,
			"hasMore":    page.HasMore,
		},
	})
}

func (api *XAPI) handleRSS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	info := rss.ChannelInfo{
		Title:       "BlockNews X Posts",
		Link:        api.baseURL,
		Description: "Latest posts from tracked X accounts",
		SelfLink:    api.baseURL + "/api/x/rss",
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	page, err := api.posts.Paged(ctx, api.pageParams(r, rssPageSize))
	if err != nil {
		api.logger.Error("Failed to build X feed", logging.WithField("error", err.Error()))
		writeXML(w, http.StatusInternalServerError, rss.Render(rss.ErrorFeed(info)))
		return
	}

	w.Header().Set("Cache-Control", postRSSCacheControl)
	writeXML(w, http.StatusOK, rss.Render(rss.PostsFeed(info, page.Items)))
}

// handleUserRSS serves /api/x/rss/{username}. An unknown handle is a
// 404 carrying an error-channel document.
func (api *XAPI) handleUserRSS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	username := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/x/rss/"), "/")
	if username == "" || strings.Contains(username, "/") {
		writeXML(w, http.StatusBadRequest, rss.Render(rss.ErrorFeed(rss.ChannelInfo{Link: api.baseURL})))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := api.users.ByScreenName(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeXML(w, http.StatusNotFound, rss.Render(rss.ErrorFeed(rss.ChannelInfo{Link: api.baseURL})))
			return
		}
		api.logger.Error("Failed to look up X user", logging.WithField("error", err.Error()))
		writeXML(w, http.StatusInternalServerError, rss.Render(rss.ErrorFeed(rss.ChannelInfo{Link: api.baseURL})))
		return
	}

	info := rss.ChannelInfo{
		Title:       "BlockNews - @" + user.ScreenName,
		Link:        user.UserLink,
		Description: "Latest posts from @" + user.ScreenName,
		SelfLink:    api.baseURL + "/api/x/rss/" + user.ScreenName,
	}

	params := api.pageParams(r, rssPageSize)
	params.UserID = user.UserID

	page, err := api.posts.Paged(ctx, params)
	if err != nil {
		api.logger.Error("Failed to build user X feed", logging.WithField("error", err.Error()))
		writeXML(w, http.StatusInternalServerError, rss.Render(rss.ErrorFeed(info)))
		return
	}

	w.Header().Set("Cache-Control", postRSSCacheControl)
	writeXML(w, http.StatusOK, rss.Render(rss.PostsFeed(info, page.Items)))
}
