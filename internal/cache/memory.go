package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value   V
	expires time.Time
}

// MemoryBackend はプロセス内のマップに値を保持する Backend。
type MemoryBackend[V any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[V]
	now     func() time.Time
}

// NewMemoryBackend は MemoryBackend の新しいインスタンスを生成する。
func NewMemoryBackend[V any]() *MemoryBackend[V] {
	return &MemoryBackend[V]{
		entries: make(map[string]memoryEntry[V]),
		now:     time.Now,
	}
}

// Get は期限内の値を返す。期限切れの値はその場で削除する。
func (b *MemoryBackend[V]) Get(_ context.Context, key string) (V, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero V
	e, ok := b.entries[key]
	if !ok {
		return zero, ErrCacheMiss
	}
	if !b.now().Before(e.expires) {
		delete(b.entries, key)
		return zero, ErrCacheMiss
	}
	return e.value, nil
}

// Set は値を保存する。ttl が0以下の場合は保存しない。
func (b *MemoryBackend[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = memoryEntry[V]{value: value, expires: b.now().Add(ttl)}
	return nil
}

// Delete は値を削除する。
func (b *MemoryBackend[V]) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.entries, k)
	}
	return nil
}

// Purge は期限切れの値を削除し、削除件数を返す。
func (b *MemoryBackend[V]) Purge() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for k, e := range b.entries {
		if !now.Before(e.expires) {
			delete(b.entries, k)
			removed++
		}
	}
	return removed
}

// Len は保持している値の数を返す（期限切れで未削除のものを含む）。
func (b *MemoryBackend[V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
