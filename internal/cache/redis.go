package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient は接続URLからRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLのパースに失敗しました: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}
	return client, nil
}

// RedisBackend は値をJSONとしてRedisに保存する Backend。
// 複数インスタンス間でキャッシュを共有する場合に使う。
type RedisBackend[V any] struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend は RedisBackend の新しいインスタンスを生成する。
func NewRedisBackend[V any](client *redis.Client, prefix string) *RedisBackend[V] {
	return &RedisBackend[V]{client: client, prefix: prefix}
}

func (b *RedisBackend[V]) buildKey(key string) string {
	return b.prefix + ":" + key
}

// Get はRedisから値を読み込む。
func (b *RedisBackend[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	data, err := b.client.Get(ctx, b.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrCacheMiss
		}
		return zero, fmt.Errorf("Redisからの読み込みに失敗しました: %w", err)
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, fmt.Errorf("キャッシュ値のデコードに失敗しました: %w", err)
	}
	return v, nil
}

// Set は値をJSONにエンコードしてRedisに保存する。
func (b *RedisBackend[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("キャッシュ値のエンコードに失敗しました: %w", err)
	}
	if err := b.client.Set(ctx, b.buildKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("Redisへの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Delete はRedisから値を削除する。
func (b *RedisBackend[V]) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = b.buildKey(k)
	}
	if err := b.client.Del(ctx, ks...).Err(); err != nil {
		return fmt.Errorf("Redisからの削除に失敗しました: %w", err)
	}
	return nil
}
