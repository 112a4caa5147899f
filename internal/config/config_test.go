package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("BOOKING_API_URL", "https://airbnbnew.cybersoft.edu.vn/")
	t.Setenv("BOOKING_API_TOKEN", "test-token")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.BookingAPIURL != "https://airbnbnew.cybersoft.edu.vn" {
		t.Errorf("BookingAPIURL = %q, want trailing slash trimmed", cfg.BookingAPIURL)
	}
	if cfg.BookingAPIToken != "test-token" {
		t.Errorf("BookingAPIToken = %q, want %q", cfg.BookingAPIToken, "test-token")
	}
}

func TestLoad_MissingRequiredVars_ReportsAll(t *testing.T) {
	t.Setenv("BOOKING_API_URL", "")
	t.Setenv("BOOKING_API_TOKEN", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required vars")
	}
	for _, name := range []string{"BOOKING_API_URL", "BOOKING_API_TOKEN"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should mention %s", err, name)
		}
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)
	for _, key := range []string{
		"UPSTREAM_TIMEOUT", "UPSTREAM_MAX_RETRIES", "REDIS_URL", "CACHE_TTL", "LOADER_CONCURRENCY",
		"GEOCODE_URL", "GEOCODE_COUNTRY", "GEOCODE_RATE_PER_SEC", "GEOCODE_CACHE_TTL",
		"SEARCH_MAX_RESULTS", "SUGGEST_DEBOUNCE", "CATALOG_REFRESH_INTERVAL", "SESSION_TTL",
		"RATE_LIMIT_GENERAL", "LOG_LEVEL", "SERVER_PORT", "COOKIE_SECURE", "CORS_ALLOWED_ORIGIN", "TIMEZONE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"UpstreamTimeout", cfg.UpstreamTimeout, 5 * time.Second},
		{"UpstreamMaxRetries", cfg.UpstreamMaxRetries, 2},
		{"RedisURL", cfg.RedisURL, ""},
		{"CacheTTL", cfg.CacheTTL, 60 * time.Second},
		{"LoaderConcurrency", cfg.LoaderConcurrency, 8},
		{"GeocodeURL", cfg.GeocodeURL, "https://nominatim.openstreetmap.org/search"},
		{"GeocodeCountry", cfg.GeocodeCountry, "vn"},
		{"GeocodeRatePerSec", cfg.GeocodeRatePerSec, 1.0},
		{"GeocodeCacheTTL", cfg.GeocodeCacheTTL, 24 * time.Hour},
		{"GeocodeMaxWait", cfg.GeocodeMaxWait, 5 * time.Second},
		{"GeocodeAllowPrivate", cfg.GeocodeAllowPrivate, false},
		{"SearchMaxResults", cfg.SearchMaxResults, 10},
		{"SuggestDebounce", cfg.SuggestDebounce, 300 * time.Millisecond},
		{"CatalogRefreshInterval", cfg.CatalogRefreshInterval, time.Duration(0)},
		{"SessionTTL", cfg.SessionTTL, 24 * time.Hour},
		{"RateLimitGeneral", cfg.RateLimitGeneral, 120},
		{"LogLevel", cfg.LogLevel, "info"},
		{"ServerPort", cfg.ServerPort, "8080"},
		{"CookieSecure", cfg.CookieSecure, false},
		{"CORSAllowedOrigin", cfg.CORSAllowedOrigin, "http://localhost:3000"},
		{"Timezone", cfg.Timezone.String(), "Asia/Ho_Chi_Minh"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("UPSTREAM_MAX_RETRIES", "0")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("GEOCODE_RATE_PER_SEC", "0.5")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("GEOCODE_ALLOW_PRIVATE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.UpstreamMaxRetries != 0 || cfg.SessionTTL != 30*time.Minute || !cfg.CookieSecure {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.GeocodeRatePerSec != 0.5 || cfg.RedisURL != "redis://localhost:6379/0" || cfg.Timezone != time.UTC || !cfg.GeocodeAllowPrivate {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	t.Setenv("SEARCH_MAX_RESULTS", "many")
	t.Setenv("COOKIE_SECURE", "maybe")
	t.Setenv("GEOCODE_RATE_PER_SEC", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.UpstreamTimeout != 5*time.Second || cfg.SearchMaxResults != 10 || cfg.CookieSecure || cfg.GeocodeRatePerSec != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid TIMEZONE")
	}
}
