package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ミドルウェア依存
	Sessions          *session.Manager
	Visitor           middleware.VisitorConfig
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string

	Catalog    CatalogService
	Bookings   BookingService
	Geocoder   Geocoder
	MaxResults int
	Location   *time.Location
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  /api/*: RateLimit → Visitor → OriginGuard
//
// /health と /metrics は訪問者セッションを作らない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	positionHandler := NewPositionHandler(deps.Catalog, deps.MaxResults, logger)
	searchHandler := NewSearchHandler(deps.Catalog, deps.Sessions, collector, loc, logger)
	roomHandler := NewRoomHandler(deps.Catalog, deps.Bookings, logger)
	userHandler := NewUserHandler(deps.Bookings, loc, logger)
	geocodeHandler := NewGeocodeHandler(deps.Geocoder, logger)

	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// 制限を超えたリクエストではセッションを作らない
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Use(middleware.NewVisitorMiddleware(deps.Sessions, deps.Visitor))
		r.Use(middleware.NewOriginGuardMiddleware(deps.CORSAllowedOrigin, logger))

		// 地点候補
		r.Get("/positions", positionHandler.Suggest)
		r.Get("/positions/{slug}", positionHandler.Get)

		// 検索フォームと確定済み検索条件
		r.Route("/search", func(r chi.Router) {
			r.Get("/", searchHandler.GetCommitted)
			r.Post("/", searchHandler.Commit)
			r.Delete("/", searchHandler.ClearCommitted)
			r.Get("/draft", searchHandler.GetDraft)
			r.Patch("/draft", searchHandler.PatchDraft)
		})

		// 部屋とレビュー
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", roomHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", roomHandler.Get)
				r.Get("/comments", roomHandler.Comments)
				r.Post("/comments", roomHandler.PostComment)
			})
		})

		// ユーザーと予約
		r.Get("/users/{id}", userHandler.Get)
		r.Put("/users/{id}", userHandler.Update)
		r.Post("/users/upload-avatar", userHandler.UploadAvatar)
		r.Get("/users/{id}/bookings", userHandler.Bookings)
		r.Post("/bookings", userHandler.CreateBooking)

		r.Get("/geocode", geocodeHandler.Lookup)
	})

	return r
}
