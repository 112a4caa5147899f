// Package store はアプリケーション状態を保持する注入可能なコンテナを提供する。
//
// Value はスナップショットの取得・置換・購読を提供し、読み手が書き込み途中の
// 値を観測することはない。Registry はキーごとの値を有効期限付きで保持する。
package store

import "sync"

// Value は単一の値を保持する状態コンテナ。
// Set は値全体を置換し、購読者には置換後のスナップショットが通知される。
type Value[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[uint64]func(T)
	nextID uint64
}

// NewValue は初期値を持つ Value を生成する。
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{value: initial, subs: make(map[uint64]func(T))}
}

// Get は現在のスナップショットを返す。
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set は値を置換し、購読者に通知する。
// 通知はロックの外で行うため、購読者から Get / Set を呼び出してもよい。
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.value = value
	subs := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Update は現在値から新しい値を計算して置換する。
// 計算と置換の間に他の書き込みが割り込むことはない。
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	next := fn(v.value)
	v.value = next
	subs := make([]func(T), 0, len(v.subs))
	for _, s := range v.subs {
		subs = append(subs, s)
	}
	v.mu.Unlock()

	for _, s := range subs {
		s(next)
	}
	return next
}

// Subscribe は値の置換時に呼ばれる関数を登録する。
// 戻り値の関数を呼ぶと購読を解除する。
func (v *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.subs == nil {
		v.subs = make(map[uint64]func(T))
	}
	id := v.nextID
	v.nextID++
	v.subs[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}
