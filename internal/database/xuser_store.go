package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blocknews/blocknews/internal/models"
)

// XUserStore reads the tracked X account directory
type XUserStore struct {
	db *DB
}

func NewXUserStore(db *DB) *XUserStore {
	return &XUserStore{db: db}
}

const xUserColumns = `user_id, user_name, screen_name, user_link, avatar, expire, created_at, updated_at`

// All returns tracked users, newest first. Expired accounts are excluded
// unless includeExpired is set.
func (s *XUserStore) All(ctx context.Context, includeExpired bool) ([]models.XUser, error) {
	query := `
		SELECT ` + xUserColumns + `
		FROM t_x_users`
	if !includeExpired {
		query += `
		WHERE expire = false`
	}
	query += `
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query x users: %w", err)
	}
	defer rows.Close()

	users := make([]models.XUser, 0)
	for rows.Next() {
		user, err := scanXUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan x user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate x users: %w", err)
	}

	return users, nil
}

// ByID returns one user by their external user ID, or ErrNotFound
func (s *XUserStore) ByID(ctx context.Context, userID string) (*models.XUser, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+xUserColumns+`
		FROM t_x_users
		WHERE user_id = $1`, userID)

	user, err := scanXUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query x user %s: %w", userID, err)
	}

	return user, nil
}

// ByScreenName returns one user by their handle, or ErrNotFound
func (s *XUserStore) ByScreenName(ctx context.Context, screenName string) (*models.XUser, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+xUserColumns+`
		FROM t_x_users
		WHERE screen_name = $1`, screenName)

	user, err := scanXUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query x user @%s: %w", screenName, err)
	}

	return user, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanXUser(row rowScanner) (*models.XUser, error) {
	var user models.XUser
	var avatar sql.NullString

	if err := row.Scan(
		&user.UserID,
		&user.UserName,
		&user.ScreenName,
		&user.UserLink,
		&avatar,
		&user.Expire,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.Avatar = avatar.String
	return &user, nil
}
