// Package session は匿名の訪問者ごとの検索状態を保持する。
//
// 訪問者は visitor_id Cookie（UUID v4）で識別し、一定時間アクセスのない
// セッションは破棄する。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/booking"
	"github.com/hitoshi/roombook/internal/search"
	"github.com/hitoshi/roombook/internal/store"
)

// CookieName は訪問者IDを格納するCookie名。
const CookieName = "visitor_id"

// Session は1人の訪問者の状態。
type Session struct {
	ID string

	mu     sync.Mutex
	search *search.Coordinator

	// Committed は確定済みの検索条件。値全体の置換で更新する。
	Committed *store.Value[search.Committed]
	// Bookings は予約一覧の読み込み状態。
	Bookings *booking.Loader
}

// WithSearch は排他制御下で検索フォームを操作する。
// 操作は呼び出し順に適用される。
func (s *Session) WithSearch(fn func(c *search.Coordinator)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.search)
}

// Manager は訪問者IDごとのセッションを管理する。
type Manager struct {
	sessions  *store.Registry[*Session]
	now       func() time.Time
	newLoader func() *booking.Loader
	opts      []search.Option
}

// NewManager は Manager の新しいインスタンスを生成する。
// ttl はアクセスがない場合にセッションを破棄するまでの時間。
// newLoader が nil の場合、セッションは予約一覧ローダーを持たない。
func NewManager(ttl time.Duration, newLoader func() *booking.Loader, loc *time.Location) *Manager {
	m := &Manager{
		now:       time.Now,
		newLoader: newLoader,
		opts:      []search.Option{search.WithLocation(loc)},
	}
	m.sessions = store.NewRegistry(ttl, m.newSession)
	return m
}

func (m *Manager) newSession(id string) *Session {
	opts := append([]search.Option{search.WithClock(m.now)}, m.opts...)
	s := &Session{
		ID:        id,
		search:    search.NewCoordinator(opts...),
		Committed: store.NewValue(search.DefaultCommitted(m.now())),
	}
	if m.newLoader != nil {
		s.Bookings = m.newLoader()
	}
	return s
}

// Get は訪問者IDに対応する既存のセッションを返す。
// 未知のIDは採用せず、サーバー側で生成したIDで新しいセッションを作成する。
// 2番目の戻り値は新規に作成した場合 true。
func (m *Manager) Get(visitorID string) (*Session, bool) {
	if s, ok := m.sessions.Touch(visitorID); ok {
		return s, false
	}
	return m.sessions.GetOrCreate(uuid.NewString())
}

// Lookup は既存のセッションを返す。
func (m *Manager) Lookup(visitorID string) (*Session, bool) {
	return m.sessions.Lookup(visitorID)
}

// Len は保持しているセッション数を返す。
func (m *Manager) Len() int {
	return m.sessions.Len()
}

// StartCleanup は期限切れセッションの定期削除を開始する。
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	m.sessions.StartCleanup(ctx, interval, logger)
}

// ClearSearch は確定済みの検索条件を既定値に戻す。
func (m *Manager) ClearSearch(s *Session) search.Committed {
	def := search.DefaultCommitted(m.now())
	s.Committed.Set(def)
	return def
}

type contextKey struct{}

// NewContext はセッションを格納したコンテキストを返す。
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext はコンテキストからセッションを取り出す。
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}
