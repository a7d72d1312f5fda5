package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blocknews/blocknews/internal/models"
)

// ArticleStore reads crawled articles from Postgres. The store is read-only;
// the spider pipeline owns writes.
type ArticleStore struct {
	db *DB
}

func NewArticleStore(db *DB) *ArticleStore {
	return &ArticleStore{db: db}
}

const articleColumns = `id, url, url_hash, title, content, pub_date, source, created_at, updated_at`

// PagedArticlesParams selects one page of articles. BeforeID is the precise
// cursor (article IDs are strictly increasing); Before is a timestamp
// fallback accepted for older clients that stored created_at cursors.
type PagedArticlesParams struct {
	Source   string
	Limit    int
	BeforeID *int64
	Before   *time.Time
}

// PagedArticles is one page plus continuation state. NextCursor is the ID of
// the last returned row; chaining it never repeats or skips a row because
// the ID order is strict.
type PagedArticles struct {
	Items      []models.Article `json:"items"`
	NextCursor *string          `json:"nextCursor"`
	HasMore    bool             `json:"hasMore"`
}

// Latest returns the newest articles, newest first
func (s *ArticleStore) Latest(ctx context.Context, limit int) ([]models.Article, error) {
	limit = ClampArticleLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest articles: %w", err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// BySource returns the newest articles from one source, newest first
func (s *ArticleStore) BySource(ctx context.Context, source string, limit int) ([]models.Article, error) {
	limit = ClampArticleLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+`
		FROM articles
		WHERE source = $1
		ORDER BY created_at DESC
		LIMIT $2`, source, limit)
	if err != nil {
		return nil, fmt.Errorf("query articles for source %s: %w", source, err)
	}
	defer rows.Close()

	return scanArticles(rows)
}

// Paged returns at most one page of articles older than the cursor, ordered
// by id descending, plus whether more pages exist. No COUNT query is issued;
// the store fetches one extra row instead.
func (s *ArticleStore) Paged(ctx context.Context, params PagedArticlesParams) (PagedArticles, error) {
	pageSize := ClampArticleLimit(params.Limit)

	whereParts := []string{"TRUE"}
	args := make([]interface{}, 0, 3)
	argPos := 1

	if params.Source != "" {
		whereParts = append(whereParts, fmt.Sprintf("source = $%d", argPos))
		args = append(args, params.Source)
		argPos++
	}
	if params.BeforeID != nil {
		whereParts = append(whereParts, fmt.Sprintf("id < $%d", argPos))
		args = append(args, *params.BeforeID)
		argPos++
	} else if params.Before != nil {
		whereParts = append(whereParts, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, *params.Before)
		argPos++
	}

	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE ` + strings.Join(whereParts, " AND ") + `
		ORDER BY id DESC
		LIMIT $` + strconv.Itoa(argPos)
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return PagedArticles{Items: []models.Article{}}, fmt.Errorf("query paged articles: %w", err)
	}
	defer rows.Close()

	all, err := scanArticles(rows)
	if err != nil {
		return PagedArticles{Items: []models.Article{}}, err
	}

	items, hasMore := trimOverfetch(all, pageSize)

	var nextCursor *string
	if len(items) > 0 {
		cursor := strconv.FormatInt(items[len(items)-1].ID, 10)
		nextCursor = &cursor
	}

	return PagedArticles{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

// SourceStats returns per-source article counts
func (s *ArticleStore) SourceStats(ctx context.Context) ([]models.SourceStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*)
		FROM articles
		GROUP BY source
		ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("query source stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.SourceStat, 0)
	for rows.Next() {
		var stat models.SourceStat
		if err := rows.Scan(&stat.Source, &stat.Count); err != nil {
			return nil, fmt.Errorf("scan source stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source stats: %w", err)
	}

	return stats, nil
}

func scanArticles(rows *sql.Rows) ([]models.Article, error) {
	articles := make([]models.Article, 0)
	for rows.Next() {
		var article models.Article
		var pubDate sql.NullTime

		if err := rows.Scan(
			&article.ID,
			&article.URL,
			&article.URLHash,
			&article.Title,
			&article.Content,
			&pubDate,
			&article.Source,
			&article.CreatedAt,
			&article.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}

		if pubDate.Valid {
			t := pubDate.Time
			article.PubDate = &t
		}

		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}

	return articles, nil
}
