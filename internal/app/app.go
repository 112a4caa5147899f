package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/roombook/internal/booking"
	"github.com/hitoshi/roombook/internal/cache"
	"github.com/hitoshi/roombook/internal/catalog"
	"github.com/hitoshi/roombook/internal/config"
	"github.com/hitoshi/roombook/internal/geocode"
	"github.com/hitoshi/roombook/internal/handler"
	"github.com/hitoshi/roombook/internal/logger"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/security"
	"github.com/hitoshi/roombook/internal/session"
	"github.com/hitoshi/roombook/internal/store"
	"github.com/hitoshi/roombook/internal/upstream"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVEL に従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 設定読み込み前にログを使えるようにする
	log := logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, log, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn("LOG_LEVEL が不正なため info を使用します", slog.String("value", cfg.LogLevel))
	}
	return cfg, logger.SetupDefault(w, level), nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return checkHealth(context.Background(), fmt.Sprintf("http://localhost:%s/health", port))
	}

	// suggest は標準出力を結果の表示に使うため、ログは標準エラーに出す
	logOut := w
	if cmd == CommandSuggest {
		logOut = os.Stderr
	}
	cfg, log, err := Init(logOut)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("booking_api", cfg.BookingAPIURL),
	)

	switch cmd {
	case CommandSuggest:
		return runSuggest(ctx, cfg, log, os.Stdin, w)
	default:
		return runServe(ctx, cfg, log)
	}
}

// components はサーバーとCLIで共有する依存関係。
type components struct {
	registry  *prometheus.Registry
	collector *metrics.Collector
	upstream  *upstream.Client
	catalog   *catalog.Service
	bookings  *booking.Service
	geocoder  *geocode.Client
	redis     *redis.Client

	// メモリバックエンドの定期削除対象。Redis使用時は空。
	purgers []cache.Purger
}

func (c *components) Close() {
	if c.redis != nil {
		c.redis.Close()
	}
}

// newBackend は REDIS_URL が設定されていればRedis、なければメモリのバックエンドを返す。
func newBackend[V any](c *components, prefix string) cache.Backend[V] {
	if c.redis != nil {
		return cache.NewRedisBackend[V](c.redis, prefix)
	}
	b := cache.NewMemoryBackend[V]()
	c.purgers = append(c.purgers, b)
	return b
}

// build は設定から全依存関係をワイヤリングする。
func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*components, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	c := &components{registry: reg, collector: collector}

	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.redis = rdb
		log.Info("redis cache enabled")
	}

	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	c.upstream = upstream.NewClient(httpClient, upstream.Config{
		BaseURL:    cfg.BookingAPIURL,
		Token:      cfg.BookingAPIToken,
		MaxRetries: cfg.UpstreamMaxRetries,
	}, log, collector)

	rooms := cache.New[int, []model.Room]("rooms", newBackend[[]model.Room](c, "roombook"), cfg.CacheTTL, collector, log)
	room := cache.New[int, model.Room]("room", newBackend[model.Room](c, "roombook"), cfg.CacheTTL, collector, log)
	users := cache.New[int, model.User]("user", newBackend[model.User](c, "roombook"), cfg.CacheTTL, collector, log)
	coords := cache.New[string, model.Coordinates]("geocode", newBackend[model.Coordinates](c, "roombook"), cfg.GeocodeCacheTTL, collector, log)

	c.catalog = catalog.NewService(
		c.upstream,
		store.NewValue[[]model.PositionWithSlug](nil),
		rooms, room,
		security.NewCommentSanitizer(),
		log,
	)
	c.bookings = booking.NewService(c.upstream, c.catalog, users, collector, log, cfg.LoaderConcurrency, cfg.Timezone)
	// ジオコーダーは設定で差し替え可能なため、内部ネットワークへの接続を拒否する
	geocodeHTTP := httpClient
	if !cfg.GeocodeAllowPrivate {
		guard := security.NewEgressGuard()
		if err := guard.ValidateEndpoint(cfg.GeocodeURL); err != nil {
			c.Close()
			return nil, fmt.Errorf("invalid GEOCODE_URL: %w", err)
		}
		geocodeHTTP = guard.NewClient(cfg.UpstreamTimeout)
	}
	c.geocoder = geocode.NewClient(geocodeHTTP, geocode.Config{
		Endpoint:   cfg.GeocodeURL,
		Country:    cfg.GeocodeCountry,
		RatePerSec: cfg.GeocodeRatePerSec,
		MaxWait:    cfg.GeocodeMaxWait,
	}, coords, log, collector)

	return c, nil
}

// runServe はAPIサーバーモードで起動する。
// ctx がキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	c, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	// 地点一覧は起動時に読み込む。失敗しても最初のリクエストで再取得する
	if err := c.catalog.Refresh(ctx); err != nil {
		log.Warn("起動時の地点一覧の読み込みに失敗しました", slog.String("error", err.Error()))
	}
	c.catalog.Start(ctx, cfg.CatalogRefreshInterval)

	cache.StartPurge(ctx, cfg.CacheTTL, log, c.purgers...)

	sessions := session.NewManager(cfg.SessionTTL, c.bookings.NewLoader, cfg.Timezone)
	sessions.StartCleanup(ctx, cfg.SessionTTL/4, log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         log,
		Metrics:        c.collector,
		MetricsHandler: metrics.Handler(c.registry),
		Sessions:       sessions,
		Visitor: middleware.VisitorConfig{
			CookieSecure: cfg.CookieSecure,
			MaxAge:       int(cfg.SessionTTL / time.Second),
		},
		RateLimiter:       middleware.NewRateLimiter(ctx, middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral), log),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Catalog:           c.catalog,
		Bookings:          c.bookings,
		Geocoder:          c.geocoder,
		MaxResults:        cfg.SearchMaxResults,
		Location:          cfg.Timezone,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("API server stopped gracefully")
	return nil
}

// runSuggest は地点一覧を読み込み、標準入力の各行を入力中のクエリとして候補を表示する。
func runSuggest(ctx context.Context, cfg *config.Config, log *slog.Logger, in io.Reader, out io.Writer) error {
	c, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	candidates, err := c.catalog.Candidates(ctx)
	if err != nil {
		return err
	}
	return RunSuggest(ctx, in, out, candidates, cfg.SuggestDebounce, cfg.SearchMaxResults)
}

// checkHealth はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func checkHealth(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
