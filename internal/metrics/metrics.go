// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 上流クライアント、キャッシュ、ミドルウェア、サービス層から利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(op string, statusCode int, duration time.Duration)
	RecordUpstreamRetry(op string)
	CacheHit(name string)
	CacheMiss(name string)
	RecordJoinDropped(count int)
	RecordGeocodeFallback()
	RecordCommit(outcome string)
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// 検索確定の結果ラベル
const (
	CommitOutcomeCommitted  = "committed"
	CommitOutcomeInvalid    = "invalid"
	CommitOutcomeUnresolved = "unresolved"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamRetries  *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	joinDropped      prometheus.Counter
	geocodeFallback  prometheus.Counter
	commits          *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_upstream_requests_total",
			Help: "予約API呼び出しの操作・ステータスコード別の合計数",
		}, []string{"op", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roombook_upstream_latency_seconds",
			Help:    "予約API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		upstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_upstream_retries_total",
			Help: "予約API呼び出しのリトライ回数",
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_cache_lookups_total",
			Help: "キャッシュ参照のヒット・ミス別の合計数",
		}, []string{"cache", "result"}),
		joinDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_join_dropped_total",
			Help: "関連データの取得失敗により結合結果から除外された要素の合計数",
		}),
		geocodeFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_geocode_fallback_total",
			Help: "ジオコーディングで既定座標を返した回数",
		}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_search_commits_total",
			Help: "検索条件の確定結果別の合計数",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_http_requests_total",
			Help: "HTTPリクエストのルート・ステータスコード別の合計数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roombook_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.upstreamRetries,
		c.cacheLookups,
		c.joinDropped,
		c.geocodeFallback,
		c.commits,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordUpstreamRequest は予約API呼び出しの結果を記録する。
// statusCode が0の場合は通信エラーとして記録する。
func (c *Collector) RecordUpstreamRequest(op string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.upstreamRequests.WithLabelValues(op, status).Inc()
	c.upstreamLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordUpstreamRetry は予約API呼び出しのリトライを記録する。
func (c *Collector) RecordUpstreamRetry(op string) {
	c.upstreamRetries.WithLabelValues(op).Inc()
}

// CacheHit はキャッシュヒットを記録する。
func (c *Collector) CacheHit(name string) {
	c.cacheLookups.WithLabelValues(name, "hit").Inc()
}

// CacheMiss はキャッシュミスを記録する。
func (c *Collector) CacheMiss(name string) {
	c.cacheLookups.WithLabelValues(name, "miss").Inc()
}

// RecordJoinDropped は結合結果から除外された要素数を記録する。
func (c *Collector) RecordJoinDropped(count int) {
	c.joinDropped.Add(float64(count))
}

// RecordGeocodeFallback は既定座標へのフォールバックを記録する。
func (c *Collector) RecordGeocodeFallback() {
	c.geocodeFallback.Inc()
}

// RecordCommit は検索条件の確定結果を記録する。
func (c *Collector) RecordCommit(outcome string) {
	c.commits.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest はHTTPリクエストの処理結果を記録する。
// route はルーティングパターン（例: /api/rooms/{id}）で、ラベルの種類を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しない MetricsCollector。テストやCLIで使う。
type NopCollector struct{}

func (NopCollector) RecordUpstreamRequest(string, int, time.Duration) {}
func (NopCollector) RecordUpstreamRetry(string) {}
func (NopCollector) CacheHit(string) {}
func (NopCollector) CacheMiss(string) {}
func (NopCollector) RecordJoinDropped(int) {}
func (NopCollector) RecordGeocodeFallback() {}
func (NopCollector) RecordCommit(string) {}
func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
