package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // distroless イメージにはタイムゾーンデータがない
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Booking API
	BookingAPIURL      string
	BookingAPIToken    string
	UpstreamTimeout    time.Duration
	UpstreamMaxRetries int

	// Cache
	RedisURL string
	CacheTTL time.Duration

	// Loader
	LoaderConcurrency int

	// Geocoding
	GeocodeURL        string
	GeocodeCountry    string
	GeocodeRatePerSec float64
	GeocodeCacheTTL   time.Duration
	GeocodeMaxWait    time.Duration

	// 内部ネットワーク上のジオコーダーへの接続を許可する
	GeocodeAllowPrivate bool

	// Search
	SearchMaxResults       int
	SuggestDebounce        time.Duration
	CatalogRefreshInterval time.Duration
	Timezone               *time.Location

	// Session
	SessionTTL time.Duration

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、未設定のものをまとめてエラーで返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.BookingAPIURL = strings.TrimRight(os.Getenv("BOOKING_API_URL"), "/")
	if cfg.BookingAPIURL == "" {
		missing = append(missing, "BOOKING_API_URL")
	}

	cfg.BookingAPIToken = os.Getenv("BOOKING_API_TOKEN")
	if cfg.BookingAPIToken == "" {
		missing = append(missing, "BOOKING_API_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	tzName := getEnvString("TIMEZONE", "Asia/Ho_Chi_Minh")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}
	cfg.Timezone = loc

	// Optional fields with defaults
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 5*time.Second)
	cfg.UpstreamMaxRetries = getEnvInt("UPSTREAM_MAX_RETRIES", 2)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 60*time.Second)
	cfg.LoaderConcurrency = getEnvInt("LOADER_CONCURRENCY", 8)
	cfg.GeocodeURL = getEnvString("GEOCODE_URL", "https://nominatim.openstreetmap.org/search")
	cfg.GeocodeCountry = getEnvString("GEOCODE_COUNTRY", "vn")
	cfg.GeocodeRatePerSec = getEnvFloat("GEOCODE_RATE_PER_SEC", 1)
	cfg.GeocodeCacheTTL = getEnvDuration("GEOCODE_CACHE_TTL", 24*time.Hour)
	cfg.GeocodeMaxWait = getEnvDuration("GEOCODE_MAX_WAIT", 5*time.Second)
	cfg.GeocodeAllowPrivate = getEnvBool("GEOCODE_ALLOW_PRIVATE", false)
	cfg.SearchMaxResults = getEnvInt("SEARCH_MAX_RESULTS", 10)
	cfg.SuggestDebounce = getEnvDuration("SUGGEST_DEBOUNCE", 300*time.Millisecond)
	cfg.CatalogRefreshInterval = getEnvDuration("CATALOG_REFRESH_INTERVAL", 0)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
