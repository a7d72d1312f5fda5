package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blocknews/blocknews/internal/models"
)

// XDataStore reads captured X posts from Postgres.
//
// Pagination here sorts by created_at, which unlike the article ID cursor is
// not a strict total order: posts captured in one spider batch can share a
// timestamp, and a page boundary landing on such a tie skips the remaining
// rows with that timestamp. Known gap, kept as-is.
type XDataStore struct {
	db *DB
}

func NewXDataStore(db *DB) *XDataStore {
	return &XDataStore{db: db}
}

const xDataColumns = `id, x_id, item_type, data, username, user_id, user_link, created_at, more_info`

// PagedXDataParams selects one page of posts. Before is the created_at
// timestamp cursor; OnlyImportant keeps only posts whose AI annotation
// marked them important.
type PagedXDataParams struct {
	UserID        string
	ItemType      string
	Limit         int
	Before        *time.Time
	OnlyImportant bool
}

// PagedXData is one page plus continuation state. NextCursor is the
// created_at of the last returned row in RFC 3339 form.
type PagedXData struct {
	Items      []models.XData `json:"items"`
	NextCursor *string        `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}

// Latest returns the newest posts, newest first, with no continuation
// state. The cursor-paged path is Paged.
func (s *XDataStore) Latest(ctx context.Context, limit int) ([]models.XData, error) {
	limit = ClampXDataLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+xDataColumns+`
		FROM t_x
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest x data: %w", err)
	}
	defer rows.Close()

	return scanXData(rows)
}

// Paged returns at most one page of posts older than the cursor, ordered by
// created_at descending, overfetching one row to detect further pages.
func (s *XDataStore) Paged(ctx context.Context, params PagedXDataParams) (PagedXData, error) {
	pageSize := ClampXDataLimit(params.Limit)

	whereParts := []string{"TRUE"}
	args := make([]interface{}, 0, 4)
	argPos := 1

	if params.UserID != "" {
		whereParts = append(whereParts, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, params.UserID)
		argPos++
	}
	if params.ItemType != "" {
		whereParts = append(whereParts, fmt.Sprintf("item_type = $%d", argPos))
		args = append(args, params.ItemType)
		argPos++
	}
	if params.Before != nil {
		whereParts = append(whereParts, fmt.Sprintf("created_at < $%d", argPos))
		args = append(args, *params.Before)
		argPos++
	}
	if params.OnlyImportant {
		whereParts = append(whereParts, `more_info->'ai_result' IS NOT NULL`)
		whereParts = append(whereParts, `(more_info->'ai_result'->>'is_important')::boolean IS TRUE`)
	}

	query := `
		SELECT ` + xDataColumns + `
		FROM t_x
		WHERE ` + strings.Join(whereParts, " AND ") + `
		ORDER BY created_at DESC
		LIMIT $` + strconv.Itoa(argPos)
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return PagedXData{Items: []models.XData{}}, fmt.Errorf("query paged x data: %w", err)
	}
	defer rows.Close()

	all, err := scanXData(rows)
	if err != nil {
		return PagedXData{Items: []models.XData{}}, err
	}

	items, hasMore := trimOverfetch(all, pageSize)

	var nextCursor *string
	if len(items) > 0 {
		cursor := items[len(items)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
		nextCursor = &cursor
	}

	return PagedXData{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

// UserActivityStats returns per-user post counts since the given time
func (s *XDataStore) UserActivityStats(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*)
		FROM t_x
		WHERE created_at >= $1 AND user_id IS NOT NULL
		GROUP BY user_id`, since)
	if err != nil {
		return nil, fmt.Errorf("query user activity stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("scan user activity stat: %w", err)
		}
		stats[userID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user activity stats: %w", err)
	}

	return stats, nil
}

func scanXData(rows *sql.Rows) ([]models.XData, error) {
	items := make([]models.XData, 0)
	for rows.Next() {
		var item models.XData
		var data []byte
		var username, userID, userLink sql.NullString
		var moreInfo []byte

		if err := rows.Scan(
			&item.ID,
			&item.XID,
			&item.ItemType,
			&data,
			&username,
			&userID,
			&userLink,
			&item.CreatedAt,
			&moreInfo,
		); err != nil {
			return nil, fmt.Errorf("scan x data: %w", err)
		}

		item.Data = json.RawMessage(data)
		item.Username = username.String
		item.UserID = userID.String
		item.UserLink = userLink.String

		if len(moreInfo) > 0 {
			var mi models.MoreInfo
			if err := json.Unmarshal(moreInfo, &mi); err == nil {
				item.MoreInfo = &mi
			}
		}

		// Resolve the polymorphic payload once here. A malformed payload
		// keeps its raw form and an empty decoded view; the row still
		// serves.
		if payload, err := models.DecodePayload(item.XID, item.Data); err == nil {
			item.Payload = payload
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate x data: %w", err)
	}

	return items, nil
}
