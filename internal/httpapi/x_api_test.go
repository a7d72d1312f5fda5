package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blocknews/blocknews/internal/database"
	"github.com/blocknews/blocknews/internal/models"
	"github.com/blocknews/blocknews/internal/testutil"
)

type fakePostStore struct {
	latest     []models.XData
	page       database.PagedXData
	stats      map[string]int
	err        error
	lastLimit  int
	lastParams database.PagedXDataParams
}

func (f *fakePostStore) Latest(ctx context.Context, limit int) ([]models.XData, error) {
	f.lastLimit = limit
	return f.latest, f.err
}

func (f *fakePostStore) Paged(ctx context.Context, params database.PagedXDataParams) (database.PagedXData, error) {
	f.lastParams = params
	return f.page, f.err
}

func (f *fakePostStore) UserActivityStats(ctx context.Context, since time.Time) (map[string]int, error) {
	return f.stats, f.err
}

type fakeUserDirectory struct {
	users []models.XUser
	err   error
}

func (f *fakeUserDirectory) All(ctx context.Context, includeExpired bool) ([]models.XUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	if includeExpired {
		return f.users, nil
	}
	active := make([]models.XUser, 0, len(f.users))
	for _, u := range f.users {
		if !u.Expire {
			active = append(active, u)
		}
	}
	return active, nil
}

func (f *fakeUserDirectory) ByID(ctx context.Context, userID string) (*models.XUser, error) {
	for i := range f.users {
		if f.users[i].UserID == userID {
			return &f.users[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeUserDirectory) ByScreenName(ctx context.Context, screenName string) (*models.XUser, error) {
	for i := range f.users {
		if f.users[i].ScreenName == screenName {
			return &f.users[i], nil
		}
	}
	return nil, database.ErrNotFound
}

func fakePost(xID, username, text string) models.XData {
	return models.XData{
		XID:       xID,
		ItemType:  models.ItemTypeTweet,
		Username:  username,
		UserID:    "u-" + username,
		UserLink:  "https://x.com/" + username,
		CreatedAt: time.Now().UTC(),
		Payload:   models.PostPayload{Single: &models.TweetBody{FullText: text}},
	}
}

func newXAPI(posts PostStore, users UserDirectory) *XAPI {
	return NewXAPI(posts, users, "https://blocknews.dev", testutil.NullLogger())
}

func TestHandleXLatest(t *testing.T) {
	cursor := "2024-03-01T09:00:00Z"
	store := &fakePostStore{page: database.PagedXData{
		Items:      []models.XData{fakePost("tweet-1", "alice", "hello")},
		NextCursor: &cursor,
		HasMore:    true,
	}}
	api := newXAPI(store, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleLatest(rec, httptest.NewRequest(http.MethodGet, "/api/x/latest?paginated=true&onlyImportant=true&itemType=tweet", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !store.lastParams.OnlyImportant {
		t.Error("onlyImportant filter not passed to store")
	}
	if store.lastParams.ItemType != "tweet" {
		t.Errorf("itemType = %q, want tweet", store.lastParams.ItemType)
	}

	var body struct {
		Success    bool            `json:"success"`
		Data       []models.XData  `json:"data"`
		Pagination json.RawMessage `json:"pagination"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !body.Success || len(body.Data) != 1 {
		t.Errorf("envelope = %+v", body)
	}
	if !strings.Contains(string(body.Pagination), `"hasMore":true`) {
		t.Errorf("pagination = %s", body.Pagination)
	}
}

func TestHandleXLatest_Unpaginated(t *testing.T) {
	store := &fakePostStore{latest: []models.XData{
		fakePost("tweet-1", "alice", "hello"),
		fakePost("tweet-2", "bob", "world"),
	}}
	api := newXAPI(store, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleLatest(rec, httptest.NewRequest(http.MethodGet, "/api/x/latest?limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", store.lastLimit)
	}

	raw := rec.Body.String()
	var body struct {
		Success bool           `json:"success"`
		Data    []models.XData `json:"data"`
		Total   int            `json:"total"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !body.Success || body.Total != 2 || len(body.Data) != 2 {
		t.Errorf("envelope = %+v", body)
	}
	if strings.Contains(raw, "pagination") {
		t.Error("latest-N response must not carry pagination state")
	}
}

func TestHandleXLatest_UnpaginatedDefaultLimit(t *testing.T) {
	store := &fakePostStore{}
	api := newXAPI(store, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleLatest(rec, httptest.NewRequest(http.MethodGet, "/api/x/latest", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastLimit != latestDefaultLimit {
		t.Errorf("limit = %d, want %d", store.lastLimit, latestDefaultLimit)
	}
}

func TestHandleXLatest_BeforeCursorParsed(t *testing.T) {
	store := &fakePostStore{}
	api := newXAPI(store, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleLatest(rec, httptest.NewRequest(http.MethodGet,
		"/api/x/latest?paginated=true&before=2024-03-01T09:00:00.123456Z", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastParams.Before == nil {
		t.Fatal("before cursor not passed to store")
	}
	want := time.Date(2024, time.March, 1, 9, 0, 0, 123456000, time.UTC)
	if !store.lastParams.Before.Equal(want) {
		t.Errorf("before = %v, want %v", store.lastParams.Before, want)
	}
}

func TestHandleXLatest_CursorParam(t *testing.T) {
	store := &fakePostStore{}
	api := newXAPI(store, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleLatest(rec, httptest.NewRequest(http.MethodGet,
		"/api/x/latest?paginated=true&cursor=2024-03-01T09:00:00Z", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastParams.Before == nil {
		t.Fatal("cursor not passed to store")
	}
	want := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	if !store.lastParams.Before.Equal(want) {
		t.Errorf("cursor = %v, want %v", store.lastParams.Before, want)
	}

	// cursor takes precedence when both names are supplied.
	rec = httptest.NewRecorder()
	api.handleLatest(rec, httptest.NewRequest(http.MethodGet,
		"/api/x/latest?paginated=true&cursor=2024-03-01T09:00:00Z&before=2020-01-01T00:00:00Z", nil))

	if store.lastParams.Before == nil || !store.lastParams.Before.Equal(want) {
		t.Errorf("cursor did not win over before: %v", store.lastParams.Before)
	}
}

func TestHandleXUsers(t *testing.T) {
	users := &fakeUserDirectory{users: []models.XUser{
		{UserID: "u-alice", ScreenName: "alice"},
		{UserID: "u-bob", ScreenName: "bob", Expire: true},
	}}
	api := newXAPI(&fakePostStore{}, users)

	rec := httptest.NewRecorder()
	api.handleUsers(rec, httptest.NewRequest(http.MethodGet, "/api/x/users", nil))

	var body struct {
		Success bool           `json:"success"`
		Data    []models.XUser `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Data) != 1 {
		t.Errorf("active users = %d, want 1", len(body.Data))
	}

	rec = httptest.NewRecorder()
	api.handleUsers(rec, httptest.NewRequest(http.MethodGet, "/api/x/users?includeExpired=true", nil))

	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Data) != 2 {
		t.Errorf("all users = %d, want 2", len(body.Data))
	}
}

func TestHandleXUser_NotFound(t *testing.T) {
	api := newXAPI(&fakePostStore{}, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleUser(rec, httptest.NewRequest(http.MethodGet, "/api/x/user/u-ghost", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want structured error", rec.Body.String())
	}
}

func TestHandleXUser_Found(t *testing.T) {
	users := &fakeUserDirectory{users: []models.XUser{{UserID: "u-alice", ScreenName: "alice"}}}
	store := &fakePostStore{page: database.PagedXData{
		Items: []models.XData{fakePost("tweet-1", "alice", "hello")},
	}}
	api := newXAPI(store, users)

	rec := httptest.NewRecorder()
	api.handleUser(rec, httptest.NewRequest(http.MethodGet, "/api/x/user/u-alice", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastParams.UserID != "u-alice" {
		t.Errorf("posts queried for %q", store.lastParams.UserID)
	}
	if !strings.Contains(rec.Body.String(), `"screen_name":"alice"`) {
		t.Errorf("body missing user: %s", rec.Body.String())
	}
}

func TestHandleXUserStats(t *testing.T) {
	store := &fakePostStore{stats: map[string]int{"u-alice": 3}}
	api := newXAPI(store, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleUserStats(rec, httptest.NewRequest(http.MethodGet, "/api/x/users/stats?hours=48", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
		Hours   int            `json:"hours"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Data["u-alice"] != 3 || body.Hours != 48 {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleXRSS(t *testing.T) {
	store := &fakePostStore{page: database.PagedXData{
		Items: []models.XData{fakePost("tweet-1", "alice", "hello world")},
	}}
	api := newXAPI(store, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleRSS(rec, httptest.NewRequest(http.MethodGet, "/api/x/rss", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != postRSSCacheControl {
		t.Errorf("Cache-Control = %q, want %q", got, postRSSCacheControl)
	}
	if !strings.Contains(rec.Body.String(), "@alice: hello world") {
		t.Error("feed missing post item")
	}
}

func TestHandleXUserRSS_UnknownHandle(t *testing.T) {
	api := newXAPI(&fakePostStore{}, &fakeUserDirectory{})

	rec := httptest.NewRecorder()
	api.handleUserRSS(rec, httptest.NewRequest(http.MethodGet, "/api/x/rss/ghost", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<![CDATA[Error]]>") {
		t.Error("404 response is not the error-channel document")
	}
}

func TestHandleXUserRSS(t *testing.T) {
	users := &fakeUserDirectory{users: []models.XUser{
		{UserID: "u-alice", ScreenName: "alice", UserLink: "https://x.com/alice"},
	}}
	store := &fakePostStore{page: database.PagedXData{
		Items: []models.XData{fakePost("tweet-1", "alice", "hello")},
	}}
	api := newXAPI(store, users)

	rec := httptest.NewRecorder()
	api.handleUserRSS(rec, httptest.NewRequest(http.MethodGet, "/api/x/rss/alice", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.lastParams.UserID != "u-alice" {
		t.Errorf("posts queried for %q, want the resolved user id", store.lastParams.UserID)
	}
	if !strings.Contains(rec.Body.String(), "BlockNews - @alice") {
		t.Error("channel title missing the handle")
	}
}
