package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Config holds database configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "blocknews",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DB wraps the sql.DB connection
type DB struct {
	*sql.DB
	config Config
}

// New creates a new database connection
func New(config Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, config: config}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate runs database migrations
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationArticles,
		migrationXUsers,
		migrationXData,
		migrationIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// Migration SQL statements. The spider pipeline owns these tables in
// production; the migrations exist so a fresh instance can serve without it.
const migrationArticles = `
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    url VARCHAR(2048) NOT NULL,
    url_hash VARCHAR(64) NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    pub_date TIMESTAMPTZ,
    source VARCHAR(100) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(url_hash, source)
);
`

const migrationXUsers = `
CREATE TABLE IF NOT EXISTS t_x_users (
    user_id VARCHAR(50) PRIMARY KEY,
    user_name VARCHAR(255) NOT NULL,
    screen_name VARCHAR(255) NOT NULL,
    user_link VARCHAR(512) NOT NULL,
    avatar VARCHAR(1024),
    expire BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const migrationXData = `
CREATE TABLE IF NOT EXISTS t_x (
    id BIGSERIAL PRIMARY KEY,
    x_id VARCHAR(512) NOT NULL UNIQUE,
    item_type VARCHAR(50) NOT NULL,
    data JSONB NOT NULL DEFAULT '{}',
    username VARCHAR(255),
    user_id VARCHAR(50),
    user_link VARCHAR(512),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    more_info JSONB
);
`

const migrationIndexes = `
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);
CREATE INDEX IF NOT EXISTS idx_articles_id_desc ON articles(id DESC);
CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_t_x_created_at ON t_x(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_t_x_user_id ON t_x(user_id);
CREATE INDEX IF NOT EXISTS idx_t_x_important ON t_x(((more_info->'ai_result'->>'is_important')::boolean)) WHERE more_info IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_t_x_users_expire ON t_x_users(expire);
`
