// Package aggregate は一次コレクションの取得と、各要素が参照する二次エンティティの
// 並行取得・結合を1つの読み込み状態として提供する。
//
// 二次エンティティはキーごとに1回だけ取得し、取得に失敗したキーを参照する要素は
// 結合結果から除外する。全体のエラーは一次コレクションの取得失敗のみ。
package aggregate

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/roombook/internal/store"
)

// DefaultConcurrency は二次取得の同時実行数の既定値。
const DefaultConcurrency = 8

// Joined は一次要素と、その参照先の二次エンティティの組。
type Joined[P, S any] struct {
	Item      P
	Secondary S
}

// State は読み込み状態。Key が空の状態は何も読み込んでいないことを表す。
// 読み込み中の Data は nil。
type State[P, S any] struct {
	Key       string
	Data      []Joined[P, S]
	IsLoading bool
	Err       error
}

// Result は Load の結果。
// State は常に要求したキーの結果を表す。Current は結果がローダーの状態に反映されたかを示し、
// 読み込み中に別のキーで Load が呼ばれた場合は false になる。
type Result[P, S any] struct {
	State   State[P, S]
	Current bool
}

// Option は Loader の設定を変更する。
type Option func(*options)

type options struct {
	concurrency int
	logger      *slog.Logger
	onDropped   func(n int)
}

// WithConcurrency は二次取得の同時実行数を設定する。0以下は無制限。
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDroppedHook は二次取得の失敗で除外した要素数を受け取る関数を設定する。
func WithDroppedHook(fn func(n int)) Option {
	return func(o *options) { o.onDropped = fn }
}

// Loader は一次コレクションと二次エンティティを結合して読み込む。
// 最後に要求されたキーの結果だけが状態に反映される。
type Loader[P any, K comparable, S any] struct {
	fetchPrimary   func(ctx context.Context, key string) ([]P, error)
	derive         func(P) K
	fetchSecondary func(ctx context.Context, key K) (S, error)
	opts           options

	mu    sync.Mutex
	gen   uint64
	state *store.Value[State[P, S]]
}

// NewLoader は Loader の新しいインスタンスを生成する。
// 重複排除は1回の Load の中で行う。Load をまたいだ再利用は fetchSecondary 側のキャッシュで行う。
func NewLoader[P any, K comparable, S any](
	fetchPrimary func(ctx context.Context, key string) ([]P, error),
	derive func(P) K,
	fetchSecondary func(ctx context.Context, key K) (S, error),
	opts ...Option,
) *Loader[P, K, S] {
	o := options{
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loader[P, K, S]{
		fetchPrimary:   fetchPrimary,
		derive:         derive,
		fetchSecondary: fetchSecondary,
		opts:           o,
		state:          store.NewValue(State[P, S]{}),
	}
}

// State は現在の読み込み状態を返す。
func (l *Loader[P, K, S]) State() State[P, S] {
	return l.state.Get()
}

// Subscribe は状態の変化を購読する。
// 通知中に同じ Loader の Load を呼び出してはならない。
func (l *Loader[P, K, S]) Subscribe(fn func(State[P, S])) (cancel func()) {
	return l.state.Subscribe(fn)
}

// Load は primaryKey に対応するデータを読み込んで結合する。
//
// primaryKey が空の場合は何も取得せず、読み込み中の処理の結果は破棄される。
// 読み込み中は IsLoading が true の状態が通知される。
func (l *Loader[P, K, S]) Load(ctx context.Context, primaryKey string) Result[P, S] {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	if primaryKey == "" {
		inert := State[P, S]{}
		return Result[P, S]{State: inert, Current: l.apply(gen, inert)}
	}

	l.apply(gen, State[P, S]{Key: primaryKey, IsLoading: true})

	final := l.fetch(ctx, primaryKey)
	return Result[P, S]{State: final, Current: l.apply(gen, final)}
}

// apply は世代が最新の場合に限り状態を置換する。
func (l *Loader[P, K, S]) apply(gen uint64, st State[P, S]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false
	}
	l.state.Set(st)
	return true
}

func (l *Loader[P, K, S]) fetch(ctx context.Context, primaryKey string) State[P, S] {
	items, err := l.fetchPrimary(ctx, primaryKey)
	if err != nil {
		return State[P, S]{Key: primaryKey, Err: err}
	}

	// 出現順の重複なしキー
	keys := make([]K, 0, len(items))
	seen := make(map[K]struct{}, len(items))
	for _, it := range items {
		k := l.derive(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	var (
		mu       sync.Mutex
		resolved = make(map[K]S, len(keys))
		g        errgroup.Group
	)
	if l.opts.concurrency > 0 {
		g.SetLimit(l.opts.concurrency)
	}
	for _, k := range keys {
		k := k
		g.Go(func() error {
			s, err := l.fetchSecondary(ctx, k)
			if err != nil {
				l.opts.logger.Warn("関連データの取得に失敗したため結合結果から除外します",
					slog.String("primary_key", primaryKey),
					slog.Any("secondary_key", k),
					slog.String("error", err.Error()),
				)
				return nil
			}
			mu.Lock()
			resolved[k] = s
			mu.Unlock()
			return nil
		})
	}
	// すべての取得が終わるまで結合しない
	_ = g.Wait()

	joined := make([]Joined[P, S], 0, len(items))
	dropped := 0
	for _, it := range items {
		s, ok := resolved[l.derive(it)]
		if !ok {
			dropped++
			continue
		}
		joined = append(joined, Joined[P, S]{Item: it, Secondary: s})
	}
	if dropped > 0 && l.opts.onDropped != nil {
		l.opts.onDropped(dropped)
	}

	return State[P, S]{Key: primaryKey, Data: joined}
}
