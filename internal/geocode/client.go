// Package geocode は都市名から地図表示用の座標を取得する。
// 結果が得られない場合は既定座標を返し、呼び出し側にエラーを返さない。
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/roombook/internal/cache"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/textnorm"
)

// ErrEmptyCity は都市名が空であることを示す。
var ErrEmptyCity = errors.New("都市名が空です")

// errNoResult は検索結果が0件であることを示す。
var errNoResult = errors.New("検索結果がありません")

const (
	// DefaultEndpoint は公開Nominatimの検索エンドポイント。
	DefaultEndpoint = "https://nominatim.openstreetmap.org/search"
	userAgent       = "roombook/1.0 (geocoding)"
	// DefaultMaxWait はレート制限の待機の上限の既定値。
	DefaultMaxWait = 5 * time.Second
)

// Config はジオコーディングの設定。
type Config struct {
	Endpoint   string
	Country    string        // countrycodes パラメータ（空の場合は指定しない）
	RatePerSec float64       // 1秒あたりの最大リクエスト数
	MaxWait    time.Duration // レート制限の待機の上限。超える場合は待たずに既定座標を返す
}

// Client はNominatim互換APIのクライアント。
type Client struct {
	httpClient *http.Client
	endpoint   string
	country    string
	limiter    *rate.Limiter
	maxWait    time.Duration
	cache      *cache.Cache[string, model.Coordinates]
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

// NewClient は Client の新しいインスタンスを生成する。coords が nil の場合はキャッシュしない。
func NewClient(httpClient *http.Client, cfg Config, coords *cache.Cache[string, model.Coordinates], logger *slog.Logger, collector metrics.MetricsCollector) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		country:    cfg.Country,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		maxWait:    cfg.MaxWait,
		cache:      coords,
		logger:     logger,
		metrics:    collector,
	}
}

// Lookup は都市名の座標を返す。
// 都市名が空の場合のみエラーを返す。検索結果なし、解析失敗、通信失敗の場合は
// Fallback を true にした既定座標を返す。
func (c *Client) Lookup(ctx context.Context, city string) (model.Coordinates, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return model.Coordinates{}, ErrEmptyCity
	}

	var (
		coords model.Coordinates
		err    error
	)
	if c.cache != nil {
		coords, err = c.cache.Get(ctx, textnorm.Normalize(city), func(ctx context.Context) (model.Coordinates, error) {
			return c.search(ctx, city)
		})
	} else {
		coords, err = c.search(ctx, city)
	}
	if err != nil {
		c.logger.Warn("ジオコーディングに失敗したため既定座標を使用します",
			slog.String("city", city),
			slog.String("error", err.Error()),
		)
		coords = fallback()
	}
	if coords.Fallback {
		c.metrics.RecordGeocodeFallback()
	}
	return coords, nil
}

func fallback() model.Coordinates {
	coords := model.DefaultCoordinates
	coords.Fallback = true
	return coords
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// search はAPIを呼び出す。結果が0件または座標が解析できない場合は既定座標を返し、
// キャッシュ対象とする。通信失敗はエラーとして返し、キャッシュしない。
// キャッシュ経由の呼び出しはキャンセルされないため、レート制限の待機は maxWait で打ち切る。
func (c *Client) search(ctx context.Context, city string) (model.Coordinates, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.maxWait)
	err := c.limiter.Wait(waitCtx)
	cancel()
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("レート制限の待機に失敗しました: %w", err)
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("q", city)
	q.Set("format", "json")
	q.Set("limit", "1")
	if c.country != "" {
		q.Set("countrycodes", c.country)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Coordinates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Coordinates{}, fmt.Errorf("ジオコーディングAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		c.logger.Warn("ジオコーディングAPIのレスポンスのパースに失敗しました",
			slog.String("city", city),
			slog.String("error", err.Error()),
		)
		return fallback(), nil
	}

	coords, err := parsePlace(places)
	if err != nil {
		c.logger.Info("座標が見つからないため既定座標を使用します",
			slog.String("city", city),
			slog.String("reason", err.Error()),
		)
		return fallback(), nil
	}
	return coords, nil
}

func parsePlace(places []place) (model.Coordinates, error) {
	if len(places) == 0 || places[0].Lat == "" || places[0].Lon == "" {
		return model.Coordinates{}, errNoResult
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("緯度の解析に失敗しました: %w", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("経度の解析に失敗しました: %w", err)
	}
	return model.Coordinates{Latitude: lat, Longitude: lon}, nil
}
