package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// カタログバックエンドの種別。
const (
	// BackendPostgres はlib/pqでPostgreSQLに直接接続する。
	BackendPostgres = "postgres"
	// BackendREST はホスト型のPostgREST互換APIを経由して読み取る。
	BackendREST = "rest"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	CatalogBackend string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Hosted REST API
	RESTURL             string
	RESTAPIKey          string
	RESTTimeout         time.Duration
	RESTMaxResponseSize int64

	// Rate Limit
	RateLimitPerMinute int

	// Article page
	RelatedArticlesLimit int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// バックエンドごとの必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.CatalogBackend = strings.ToLower(getEnvString("CATALOG_BACKEND", BackendPostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RESTURL = os.Getenv("REST_URL")
	cfg.RESTAPIKey = os.Getenv("REST_API_KEY")

	// Required fields
	var missing []string

	switch cfg.CatalogBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendREST:
		if cfg.RESTURL == "" {
			missing = append(missing, "REST_URL")
		}
		if cfg.RESTAPIKey == "" {
			missing = append(missing, "REST_API_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown CATALOG_BACKEND %q: must be %q or %q", cfg.CatalogBackend, BackendPostgres, BackendREST)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.RESTTimeout = getEnvDuration("REST_TIMEOUT", 5*time.Second)
	cfg.RESTMaxResponseSize = getEnvInt64("REST_MAX_RESPONSE_SIZE", 2097152)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 240)
	cfg.RelatedArticlesLimit = getEnvInt("RELATED_ARTICLES_LIMIT", 3)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
