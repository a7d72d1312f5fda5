package config

import (
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Cache    CacheConfig
	Database DatabaseConfig
	News     NewsConfig
	Sources  SourcesConfig
	Logging  LoggingConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
	// BaseURL is the externally visible origin used in self-referencing
	// RSS links, e.g. "https://news.example.com".
	BaseURL      string
	RateLimitDur time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend   string // "memory" or "redis"
	TTL       time.Duration
	RedisAddr string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewsConfig holds the external news feed aggregation settings
type NewsConfig struct {
	Feeds []string
	// MaxCount caps the merged feed length.
	MaxCount int
	// CacheTTL is how long a computed merge is served before refetching.
	CacheTTL time.Duration
	// RefreshCron optionally refreshes the merge in the background; empty
	// disables scheduled refresh and the cache TTL alone drives recompute.
	RefreshCron string
}

// SourcesConfig is the allow-list of known article sources: key is the
// source identifier stored on article rows, value is the display label.
type SourcesConfig struct {
	Map map[string]string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// AuthConfig holds the service-token settings for admin routes
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

var defaultNewsFeeds = []string{
	"https://feeds.bbci.co.uk/news/rss.xml",
	"https://rss.cnn.com/rss/edition.rss",
	"https://feeds.npr.org/1001/rss.xml",
}

var defaultSourceMap = map[string]string{
	"www_caixin_com": "财新网",
	"www_zaobao_com": "联合早报",
}

// Load parses flags and environment variables to build configuration.
// A .env file in the working directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	httpAddr := flag.String("http", ":8080", "HTTP server address")
	baseURL := flag.String("base-url", "http://localhost:8080", "Externally visible base URL")
	cacheTTL := flag.Duration("cache-ttl", 10*time.Minute, "TTL for the merged news feed cache")
	cacheBackend := flag.String("cache-backend", "memory", "Cache backend: memory or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "Redis server address")
	rateLimitDur := flag.Duration("rate-limit", time.Second, "Minimum delay between requests to same host")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	dbHost := flag.String("db-host", "localhost", "PostgreSQL host")
	dbPort := flag.Int("db-port", 5432, "PostgreSQL port")
	dbUser := flag.String("db-user", "postgres", "PostgreSQL user")
	dbPassword := flag.String("db-password", "postgres", "PostgreSQL password")
	dbName := flag.String("db-name", "blocknews", "PostgreSQL database name")
	dbSSLMode := flag.String("db-sslmode", "disable", "PostgreSQL SSL mode")

	flag.Parse()

	applyEnvOverrides(httpAddr, baseURL, cacheTTL, cacheBackend, redisAddr, rateLimitDur, logLevel, dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	cfg := &Config{}

	cfg.Server = ServerConfig{
		HTTPAddr:     *httpAddr,
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		RateLimitDur: *rateLimitDur,
	}

	cfg.Cache = CacheConfig{
		Backend:   *cacheBackend,
		TTL:       *cacheTTL,
		RedisAddr: *redisAddr,
	}

	cfg.Database = DatabaseConfig{
		Host:     *dbHost,
		Port:     *dbPort,
		User:     *dbUser,
		Password: *dbPassword,
		Database: *dbName,
		SSLMode:  *dbSSLMode,
	}

	cfg.Logging = LoggingConfig{
		Level: *logLevel,
	}

	cfg.News = loadNewsConfig()
	cfg.Sources = loadSourcesConfig()
	cfg.Auth = loadAuthConfig()

	return cfg
}

func loadNewsConfig() NewsConfig {
	feeds := defaultNewsFeeds
	if v := os.Getenv("RSS_FEEDS"); v != "" {
		feeds = splitAndTrim(v)
	}

	maxCount := 20
	if v := os.Getenv("MAX_NEWS_COUNT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxCount = parsed
		}
	}

	cacheTTL := 10 * time.Minute
	if v := os.Getenv("NEWS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cacheTTL = d
		}
	}

	return NewsConfig{
		Feeds:       feeds,
		MaxCount:    maxCount,
		CacheTTL:    cacheTTL,
		RefreshCron: os.Getenv("NEWS_REFRESH_CRON"),
	}
}

// loadSourcesConfig reads the source allow-list from SOURCE_MAP_FILE when
// set, falling back to the built-in map.
func loadSourcesConfig() SourcesConfig {
	if path := os.Getenv("SOURCE_MAP_FILE"); path != "" {
		if m, err := readSourceMap(path); err == nil && len(m) > 0 {
			return SourcesConfig{Map: m}
		}
	}

	m := make(map[string]string, len(defaultSourceMap))
	for k, v := range defaultSourceMap {
		m[k] = v
	}
	return SourcesConfig{Map: m}
}

func readSourceMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnvOrDefault("AUTH_JWT_SECRET", "change-me-in-production"),
		JWTIssuer: getEnvOrDefault("AUTH_JWT_ISSUER", "blocknews"),
	}
}

// Known reports whether source is in the allow-list
func (s SourcesConfig) Known(source string) bool {
	_, ok := s.Map[source]
	return ok
}

// DisplayName returns the human-readable name for a source key, or the
// key itself when no mapping exists.
func (s SourcesConfig) DisplayName(source string) string {
	if name, ok := s.Map[source]; ok && name != "" {
		return name
	}
	return source
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func applyEnvOverrides(
	httpAddr *string,
	baseURL *string,
	cacheTTL *time.Duration,
	cacheBackend *string,
	redisAddr *string,
	rateLimitDur *time.Duration,
	logLevel *string,
	dbHost *string,
	dbPort *int,
	dbUser *string,
	dbPassword *string,
	dbName *string,
	dbSSLMode *string,
) {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		*httpAddr = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		*baseURL = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*cacheTTL = d
		}
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		*cacheBackend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		*redisAddr = v
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*rateLimitDur = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		*logLevel = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		*dbHost = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			*dbPort = p
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		*dbUser = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		*dbPassword = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		*dbName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		*dbSSLMode = v
	}
}
