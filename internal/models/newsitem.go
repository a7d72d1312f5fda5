package models

import "time"

// NewsItem is one entry in the merged external news feed. These are never
// persisted; they live for one aggregation cache window.
type NewsItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pubDate"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
}
