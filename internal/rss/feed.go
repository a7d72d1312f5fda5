// Package rss renders article and post lists as RSS 2.0 documents.
// Free-text fields go out as CDATA; a private namespace carries the
// numeric id and created_at of each row so feed-reading clients can
// resume pagination from the document itself.
package rss

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/blocknews/blocknews/internal/models"
)

const (
	articleDescriptionLimit = 500
	postTitleTextLimit      = 100
	postDescriptionLimit    = 1000
)

// Item is one RSS <item>. CursorID and CursorCreatedAt, when set, are
// emitted as namespaced extension elements.
type Item struct {
	Title           string
	Link            string
	Description     string
	PubDate         time.Time
	GUID            string
	Source          string
	CursorID        *int64
	CursorCreatedAt *time.Time
}

// Feed is one RSS <channel> plus its items.
type Feed struct {
	Title       string
	Link        string
	Description string
	SelfLink    string
	BuildTime   time.Time
	Items       []Item
}

// ChannelInfo names one feed for channel metadata.
type ChannelInfo struct {
	Title       string
	Link        string
	Description string
	SelfLink    string
}

// ArticlesFeed renders articles newest-first as supplied. The item
// description is the article body clipped for feed readers; the guid is
// the article's dedup hash. pubDate is the row's creation time, not the
// upstream publication date, so feed order matches crawl order.
func ArticlesFeed(info ChannelInfo, articles []models.Article) Feed {
	items := make([]Item, 0, len(articles))
	for _, a := range articles {
		id := a.ID
		createdAt := a.CreatedAt
		items = append(items, Item{
			Title:           a.Title,
			Link:            a.URL,
			Description:     clip(a.Content, articleDescriptionLimit),
			PubDate:         a.CreatedAt,
			GUID:            a.URLHash,
			Source:          a.Source,
			CursorID:        &id,
			CursorCreatedAt: &createdAt,
		})
	}

	return Feed{
		Title:       info.Title,
		Link:        info.Link,
		Description: info.Description,
		SelfLink:    info.SelfLink,
		BuildTime:   time.Now(),
		Items:       items,
	}
}

// PostsFeed renders X posts. Important posts get a fire marker in the
// title; the description leads with the AI summary and labels when the
// post has been analyzed.
func PostsFeed(info ChannelInfo, posts []models.XData) Feed {
	items := make([]Item, 0, len(posts))
	for _, p := range posts {
		createdAt := p.CreatedAt
		items = append(items, Item{
			Title:           postTitle(p),
			Link:            postLink(p),
			Description:     postDescription(p),
			PubDate:         p.CreatedAt,
			GUID:            p.XID,
			Source:          "@" + p.Username,
			CursorCreatedAt: &createdAt,
		})
	}

	return Feed{
		Title:       info.Title,
		Link:        info.Link,
		Description: info.Description,
		SelfLink:    info.SelfLink,
		BuildTime:   time.Now(),
		Items:       items,
	}
}

// ErrorFeed is the placeholder document served when feed generation
// fails. It stays parseable so feed readers degrade gracefully.
func ErrorFeed(info ChannelInfo) Feed {
	return Feed{
		Title:       "Error",
		Link:        info.Link,
		Description: "Failed to generate feed",
		SelfLink:    info.SelfLink,
		BuildTime:   time.Now(),
	}
}

func postTitle(p models.XData) string {
	title := "@" + p.Username + ": " + clip(oneLine(p.Payload.Text()), postTitleTextLimit)
	if p.Important() {
		title = "🔥 " + title
	}
	return title
}

func postLink(p models.XData) string {
	tweetID := p.TweetID()
	if tweetID == "" {
		return p.UserLink
	}
	return fmt.Sprintf("https://x.com/%s/status/%s", p.Username, tweetID)
}

func postDescription(p models.XData) string {
	var b strings.Builder

	if ai := p.AIResult(); ai != nil {
		if ai.Summary != "" {
			b.WriteString("<p><b>")
			b.WriteString(html.EscapeString(ai.Summary))
			b.WriteString("</b></p>")
		}
		if len(ai.HighlightLabel) > 0 {
			b.WriteString("<p>")
			for i, label := range ai.HighlightLabel {
				if i > 0 {
					b.WriteString(" ")
				}
				b.WriteString("#")
				b.WriteString(html.EscapeString(label))
			}
			b.WriteString("</p>")
		}
	}

	b.WriteString(html.EscapeString(p.Payload.Text()))

	return clip(b.String(), postDescriptionLimit)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
