package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry はキーごとの値を保持し、一定時間アクセスのない値を破棄する。
type Registry[T any] struct {
	ttl   time.Duration
	newFn func(key string) T
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry[T]
}

type registryEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// NewRegistry は Registry の新しいインスタンスを生成する。
// newFn は未登録のキーに対する値を生成する。ttl が0以下の場合は破棄しない。
func NewRegistry[T any](ttl time.Duration, newFn func(key string) T) *Registry[T] {
	return &Registry[T]{
		ttl:     ttl,
		newFn:   newFn,
		now:     time.Now,
		entries: make(map[string]*registryEntry[T]),
	}
}

// GetOrCreate はキーに対応する値を返す。存在しない場合は生成して登録する。
// 2番目の戻り値は新規に生成した場合 true。
func (r *Registry[T]) GetOrCreate(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[key]; ok && !r.expired(e, now) {
		e.lastSeen = now
		return e.value, false
	}
	v := r.newFn(key)
	r.entries[key] = &registryEntry[T]{value: v, lastSeen: now}
	return v, true
}

// Lookup はキーに対応する値を返す。存在しないか期限切れの場合は false を返す。
func (r *Registry[T]) Lookup(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok || r.expired(e, r.now()) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Touch は既存の値を返し、最終アクセス時刻を更新する。
// 存在しないか期限切れの場合は何も生成せず false を返す。
func (r *Registry[T]) Touch(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	e, ok := r.entries[key]
	if !ok || r.expired(e, now) {
		var zero T
		return zero, false
	}
	e.lastSeen = now
	return e.value, true
}

// Delete はキーに対応する値を削除する。
func (r *Registry[T]) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Len は登録数を返す（期限切れで未削除のものを含む）。
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Cleanup は期限切れの値を削除し、削除件数を返す。
func (r *Registry[T]) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for k, e := range r.entries {
		if r.expired(e, now) {
			delete(r.entries, k)
			removed++
		}
	}
	return removed
}

// StartCleanup は interval ごとに Cleanup を実行するゴルーチンを開始する。
// ctx がキャンセルされると停止する。
func (r *Registry[T]) StartCleanup(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Cleanup(); n > 0 && logger != nil {
					logger.Info("期限切れのエントリを削除しました", slog.Int("count", n))
				}
			}
		}
	}()
}

func (r *Registry[T]) expired(e *registryEntry[T], now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.lastSeen) > r.ttl
}
