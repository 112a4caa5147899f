// Package cache はキー単位のTTLキャッシュを提供する。
// 同一キーへの同時取得は1回の取得にまとめられ、取得エラーはキャッシュしない。
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrCacheMiss はキーに対応する値が存在しないか期限切れであることを示す。
var ErrCacheMiss = errors.New("cache miss")

// Backend はキャッシュ値の保存先。
type Backend[V any] interface {
	Get(ctx context.Context, key string) (V, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Observer はキャッシュのヒット・ミスを受け取る。
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
}

// Cache は Backend の前段で同時取得をまとめるキャッシュ。
type Cache[K comparable, V any] struct {
	name     string
	backend  Backend[V]
	ttl      time.Duration
	observer Observer
	logger   *slog.Logger
	sf       singleflight.Group
}

// New は Cache の新しいインスタンスを生成する。
// name はキーの接頭辞とメトリクスのラベルに使う。observer と logger は nil でもよい。
func New[K comparable, V any](name string, backend Backend[V], ttl time.Duration, observer Observer, logger *slog.Logger) *Cache[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[K, V]{
		name:     name,
		backend:  backend,
		ttl:      ttl,
		observer: observer,
		logger:   logger,
	}
}

// Key はキャッシュキーの文字列表現を返す。
func (c *Cache[K, V]) Key(key K) string {
	return fmt.Sprintf("%s:%v", c.name, key)
}

// Get はキャッシュ済みの値を返す。存在しない場合は fetch で取得して保存する。
// 同一キーに対する同時呼び出しでは fetch は1回だけ実行される。
func (c *Cache[K, V]) Get(ctx context.Context, key K, fetch func(ctx context.Context) (V, error)) (V, error) {
	k := c.Key(key)

	v, err, _ := c.sf.Do(k, func() (any, error) {
		cached, err := c.backend.Get(ctx, k)
		if err == nil {
			c.hit()
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("キャッシュの読み込みに失敗しました",
				slog.String("cache", c.name),
				slog.String("key", k),
				slog.String("error", err.Error()),
			)
		}
		c.miss()

		// 待ち合わせている他の呼び出しがあるため、最初の呼び出し元のキャンセルは伝播させない
		value, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		if err := c.backend.Set(ctx, k, value, c.ttl); err != nil {
			c.logger.Warn("キャッシュの書き込みに失敗しました",
				slog.String("cache", c.name),
				slog.String("key", k),
				slog.String("error", err.Error()),
			)
		}
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Delete はキーに対応する値を削除する。
func (c *Cache[K, V]) Delete(ctx context.Context, keys ...K) error {
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = c.Key(k)
	}
	return c.backend.Delete(ctx, ks...)
}

func (c *Cache[K, V]) hit() {
	if c.observer != nil {
		c.observer.CacheHit(c.name)
	}
}

func (c *Cache[K, V]) miss() {
	if c.observer != nil {
		c.observer.CacheMiss(c.name)
	}
}
