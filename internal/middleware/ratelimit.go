package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/store"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	Rate            rate.Limit    // 接続元IPごとのレート（req/sec）。120/60 = 2 req/sec
	Burst           int           // バーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// RateLimiterConfigPerMinute は1分あたりのリクエスト数から設定を生成する。
func RateLimiterConfigPerMinute(perMinute int) RateLimiterConfig {
	if perMinute < 1 {
		perMinute = 1
	}
	return RateLimiterConfig{
		Rate:            rate.Limit(float64(perMinute) / 60.0),
		Burst:           perMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiter は接続元IPごとのレート制限を管理する。
// 最終アクセスから CleanupInterval の2倍を過ぎたリミッターは破棄する。
type RateLimiter struct {
	config   RateLimiterConfig
	limiters *store.Registry[*rate.Limiter]
	logger   *slog.Logger
}

// NewRateLimiter は新しいRateLimiterを生成し、ctx が終了するまで
// 期限切れエントリのクリーンアップを行う。
func NewRateLimiter(ctx context.Context, config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		limiters: store.NewRegistry(config.CleanupInterval*2, func(string) *rate.Limiter {
			return rate.NewLimiter(config.Rate, config.Burst)
		}),
		logger: logger,
	}
	rl.limiters.StartCleanup(ctx, config.CleanupInterval, nil)
	return rl
}

// Middleware はレート制限ミドルウェアを返す。
// キーは接続元IPで、Cookie を付け替えても同じリミッターが使われる。
// セッションを作成する前に適用する。
func (rl *RateLimiter) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			limiter, _ := rl.limiters.GetOrCreate(key)
			if !limiter.Allow() {
				rl.logger.Warn("rate limit exceeded", slog.String("client", key))
				writeRateLimitResponse(w, rl.config.Rate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount は管理しているリミッター数を返す。
func (rl *RateLimiter) LimiterCount() int {
	return rl.limiters.Len()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが1つ補充されるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
