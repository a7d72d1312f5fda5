package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blocknews/blocknews/internal/cache"
	"github.com/blocknews/blocknews/internal/models"
	"github.com/blocknews/blocknews/internal/sources"
	"github.com/blocknews/blocknews/internal/testutil"
)

type fakeFetcher struct {
	name  string
	items []models.NewsItem
	err   error
	calls int32
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeFetcher) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func newsItem(title, link string, age time.Duration) models.NewsItem {
	return models.NewsItem{
		Title:   title,
		Link:    link,
		PubDate: time.Now().Add(-age),
		Source:  "Test Source",
	}
}

func TestAggregator_Refresh_MergesAndSorts(t *testing.T) {
	f1 := &fakeFetcher{name: "one", items: []models.NewsItem{
		newsItem("Old story", "https://a.example/1", 3*time.Hour),
		newsItem("Newest story", "https://a.example/2", time.Minute),
	}}
	f2 := &fakeFetcher{name: "two", items: []models.NewsItem{
		newsItem("Middle story", "https://b.example/1", time.Hour),
	}}

	agg := New([]sources.Fetcher{f1, f2}, nil, testutil.NullLogger(), Options{MaxCount: 20})

	items, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Refresh() returned %d items, want 3", len(items))
	}

	wantOrder := []string{"Newest story", "Middle story", "Old story"}
	for i, want := range wantOrder {
		if items[i].Title != want {
			t.Errorf("items[%d].Title = %q, want %q", i, items[i].Title, want)
		}
	}

	snapshot := agg.Snapshot()
	if len(snapshot) != len(items) {
		t.Errorf("Snapshot() returned %d items, want %d", len(snapshot), len(items))
	}
	if agg.SourceCount() != 2 {
		t.Errorf("SourceCount() = %d, want 2", agg.SourceCount())
	}
}

func TestAggregator_Refresh_ToleratesFailedSource(t *testing.T) {
	healthy := &fakeFetcher{name: "healthy", items: []models.NewsItem{
		newsItem("Survivor", "https://a.example/1", time.Minute),
	}}
	broken := &fakeFetcher{name: "broken", err: errors.New("connection refused")}

	agg := New([]sources.Fetcher{healthy, broken}, nil, testutil.NullLogger(), Options{MaxCount: 20})

	items, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v, want nil despite one failed source", err)
	}
	if len(items) != 1 {
		t.Fatalf("Refresh() returned %d items, want 1 from the healthy source", len(items))
	}
	if items[0].Title != "Survivor" {
		t.Errorf("items[0].Title = %q, want Survivor", items[0].Title)
	}
}

func TestAggregator_Refresh_Deduplicates(t *testing.T) {
	f1 := &fakeFetcher{name: "one", items: []models.NewsItem{
		newsItem("Shared story", "https://shared.example/1", time.Hour),
	}}
	f2 := &fakeFetcher{name: "two", items: []models.NewsItem{
		newsItem("Shared story", "https://shared.example/1", time.Hour),
		newsItem("  shared STORY  ", "https://mirror.example/1", time.Hour),
		newsItem("Unique story", "https://unique.example/1", time.Hour),
	}}

	agg := New([]sources.Fetcher{f1, f2}, nil, testutil.NullLogger(), Options{MaxCount: 20})

	items, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Refresh() returned %d items, want 2 after dedup", len(items))
	}
}

func TestAggregator_Refresh_CapsAtMaxCount(t *testing.T) {
	items := make([]models.NewsItem, 0, 30)
	for i := 0; i < 30; i++ {
		items = append(items, newsItem(
			fmt.Sprintf("Story %d", i),
			fmt.Sprintf("https://a.example/%d", i),
			time.Duration(i)*time.Minute,
		))
	}
	f := &fakeFetcher{name: "big", items: items}

	agg := New([]sources.Fetcher{f}, nil, testutil.NullLogger(), Options{MaxCount: 20})

	got, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(got) != 20 {
		t.Errorf("Refresh() returned %d items, want MaxCount cap of 20", len(got))
	}
	// The cap keeps the newest items
	if got[0].Title != "Story 0" {
		t.Errorf("got[0].Title = %q, want Story 0", got[0].Title)
	}
}

func TestAggregator_Latest_ServesCacheWithoutFetching(t *testing.T) {
	f := &fakeFetcher{name: "one", items: []models.NewsItem{
		newsItem("Cached story", "https://a.example/1", time.Minute),
	}}

	c := cache.NewMemory(time.Minute)
	defer c.Stop()

	agg := New([]sources.Fetcher{f}, c, testutil.NullLogger(), Options{MaxCount: 20, CacheTTL: time.Minute})

	first, err := agg.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() first call error = %v", err)
	}
	if f.callCount() != 1 {
		t.Fatalf("first Latest() made %d fetch calls, want 1", f.callCount())
	}

	second, err := agg.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() second call error = %v", err)
	}
	if f.callCount() != 1 {
		t.Errorf("second Latest() within TTL made %d fetch calls, want still 1", f.callCount())
	}
	if len(second) != len(first) || second[0].Title != first[0].Title {
		t.Errorf("cached result differs from first result: %+v vs %+v", second, first)
	}
}

func TestAggregator_Latest_EmptySnapshotNotServedFromCache(t *testing.T) {
	f := &fakeFetcher{name: "flaky", err: errors.New("connection refused"), items: []models.NewsItem{
		newsItem("Recovered story", "https://a.example/1", time.Minute),
	}}

	c := cache.NewMemory(time.Minute)
	defer c.Stop()

	agg := New([]sources.Fetcher{f}, c, testutil.NullLogger(), Options{MaxCount: 20, CacheTTL: time.Minute})

	// The source is down: the merge comes back empty and gets cached.
	first, err := agg.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() during outage error = %v", err)
	}
	if len(first) != 0 {
		t.Fatalf("Latest() during outage returned %d items, want 0", len(first))
	}

	// The source recovers. An empty snapshot must not count as a cache
	// hit, so the next call recomputes even within the TTL.
	f.err = nil

	second, err := agg.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() after recovery error = %v", err)
	}
	if f.callCount() != 2 {
		t.Errorf("Latest() after recovery made %d total fetch calls, want 2", f.callCount())
	}
	if len(second) != 1 || second[0].Title != "Recovered story" {
		t.Errorf("Latest() after recovery = %+v, want the recovered item", second)
	}
}

func TestAggregator_Latest_RefetchesAfterTTL(t *testing.T) {
	f := &fakeFetcher{name: "one", items: []models.NewsItem{
		newsItem("Story", "https://a.example/1", time.Minute),
	}}

	c := cache.NewMemory(time.Minute)
	defer c.Stop()

	agg := New([]sources.Fetcher{f}, c, testutil.NullLogger(), Options{MaxCount: 20, CacheTTL: 30 * time.Millisecond})

	if _, err := agg.Latest(context.Background()); err != nil {
		t.Fatalf("Latest() error = %v", err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, err := agg.Latest(context.Background()); err != nil {
		t.Fatalf("Latest() after TTL error = %v", err)
	}
	if f.callCount() != 2 {
		t.Errorf("Latest() after TTL made %d total fetch calls, want 2", f.callCount())
	}
}

func TestAggregator_Refresh_BypassesCache(t *testing.T) {
	f := &fakeFetcher{name: "one", items: []models.NewsItem{
		newsItem("Story", "https://a.example/1", time.Minute),
	}}

	c := cache.NewMemory(time.Minute)
	defer c.Stop()

	agg := New([]sources.Fetcher{f}, c, testutil.NullLogger(), Options{MaxCount: 20, CacheTTL: time.Minute})

	if _, err := agg.Latest(context.Background()); err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if _, err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if f.callCount() != 2 {
		t.Errorf("Refresh() after cached Latest() made %d total calls, want 2", f.callCount())
	}
}
