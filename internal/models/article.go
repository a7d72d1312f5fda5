package models

import "time"

// Article is a crawled news article as stored by the spider pipeline.
// ID is assigned by Postgres and strictly increases in insertion order,
// which makes it the pagination sort key.
type Article struct {
	ID        int64      `json:"id"`
	URL       string     `json:"url"`
	URLHash   string     `json:"url_hash"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	PubDate   *time.Time `json:"pub_date"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SourceStat is the article count for one source site
type SourceStat struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}
