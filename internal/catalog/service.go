// Package catalog は地点と部屋の参照データを提供する。
//
// 地点の一覧は初回アクセス時に一括取得してスラッグを付与し、ストアに公開する。
// 以降は読み取り専用の共有データとして扱い、Refresh でのみ置き換える。
package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/roombook/internal/cache"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/position"
	"github.com/hitoshi/roombook/internal/security"
	"github.com/hitoshi/roombook/internal/store"
	"github.com/hitoshi/roombook/internal/textnorm"
)

// ErrLocationNotFound はスラッグに対応する地点がないことを示す。
var ErrLocationNotFound = errors.New("地点が見つかりません")

// Upstream は catalog が必要とする予約APIの操作。
type Upstream interface {
	ListPositions(ctx context.Context) ([]model.Position, error)
	ListRoomsByPosition(ctx context.Context, positionID int) ([]model.Room, error)
	GetRoom(ctx context.Context, roomID int) (model.Room, error)
	ListCommentsByRoom(ctx context.Context, roomID int) ([]model.Comment, error)
}

// Suggestion はハイライト付きの地点候補。
type Suggestion struct {
	model.PositionWithSlug
	Segments []position.Segment `json:"segments"`
}

// Service は地点・部屋・レビューの取得を提供する。
type Service struct {
	api       Upstream
	rooms     *cache.Cache[int, []model.Room]
	room      *cache.Cache[int, model.Room]
	sanitizer security.CommentSanitizerService
	logger    *slog.Logger

	positions *store.Value[[]model.PositionWithSlug]
	mu        sync.Mutex
	loaded    bool
	sf        singleflight.Group
}

// NewService は Service の新しいインスタンスを生成する。
// positions は地点一覧の公開先で、他のコンポーネントと共有する。
func NewService(
	api Upstream,
	positions *store.Value[[]model.PositionWithSlug],
	rooms *cache.Cache[int, []model.Room],
	room *cache.Cache[int, model.Room],
	sanitizer security.CommentSanitizerService,
	logger *slog.Logger,
) *Service {
	return &Service{
		api:       api,
		positions: positions,
		rooms:     rooms,
		room:      room,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// WithSlugs は地点一覧に省名から生成したスラッグを付与する。
func WithSlugs(ps []model.Position) []model.PositionWithSlug {
	out := make([]model.PositionWithSlug, len(ps))
	for i, p := range ps {
		out[i] = model.PositionWithSlug{Position: p, Slug: textnorm.Slugify(p.TinhThanh)}
	}
	return out
}

// Positions はスラッグ付きの地点一覧を返す。
// 未取得の場合は取得してストアに公開する。取得に失敗した場合は次回の呼び出しで再取得する。
func (s *Service) Positions(ctx context.Context) ([]model.PositionWithSlug, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return s.positions.Get(), nil
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.positions.Get(), nil
}

// Candidates は照合用の地点一覧を返す。
func (s *Service) Candidates(ctx context.Context) ([]model.Position, error) {
	ps, err := s.Positions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Position, len(ps))
	for i, p := range ps {
		out[i] = p.Position
	}
	return out, nil
}

// Refresh は地点一覧を再取得してストアの値を置き換える。
func (s *Service) Refresh(ctx context.Context) error {
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) error {
	_, err, _ := s.sf.Do("positions", func() (any, error) {
		ps, err := s.api.ListPositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("地点一覧の取得に失敗しました: %w", err)
		}
		s.positions.Set(WithSlugs(ps))

		s.mu.Lock()
		s.loaded = true
		s.mu.Unlock()

		s.logger.Info("地点一覧を読み込みました", slog.Int("count", len(ps)))
		return nil, nil
	})
	return err
}

// Start は interval ごとに地点一覧を再取得するゴルーチンを開始する。
// interval が0以下の場合は何もしない。ctx がキャンセルされると停止する。
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
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
				if err := s.Refresh(ctx); err != nil {
					s.logger.Error("地点一覧の再取得に失敗しました", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// Suggest はクエリに一致する地点を表示名のハイライト付きで返す。
func (s *Service) Suggest(ctx context.Context, query string, maxResults int) ([]Suggestion, error) {
	ps, err := s.Positions(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]model.Position, len(ps))
	for i, p := range ps {
		candidates[i] = p.Position
	}

	matches := position.Filter(candidates, query, position.Options{MaxResults: maxResults})
	nq := textnorm.Normalize(query)
	out := make([]Suggestion, len(matches))
	for i, m := range matches {
		out[i] = Suggestion{
			PositionWithSlug: model.PositionWithSlug{Position: m, Slug: textnorm.Slugify(m.TinhThanh)},
			Segments:         position.Highlight(m.TenViTri, nq),
		}
	}
	return out, nil
}

// BySlug はスラッグが一致する最初の地点を返す。
func (s *Service) BySlug(ctx context.Context, slug string) (model.PositionWithSlug, error) {
	ps, err := s.Positions(ctx)
	if err != nil {
		return model.PositionWithSlug{}, err
	}
	for _, p := range ps {
		if p.Slug == slug {
			return p, nil
		}
	}
	return model.PositionWithSlug{}, ErrLocationNotFound
}

// ByID は地点IDに対応する地点を返す。
func (s *Service) ByID(ctx context.Context, id int) (model.PositionWithSlug, bool) {
	ps, err := s.Positions(ctx)
	if err != nil {
		return model.PositionWithSlug{}, false
	}
	for _, p := range ps {
		if p.ID == id {
			return p, true
		}
	}
	return model.PositionWithSlug{}, false
}

// RoomsByLocation はスラッグに対応する地点の部屋一覧を返す。
func (s *Service) RoomsByLocation(ctx context.Context, slug string) (model.PositionWithSlug, []model.Room, error) {
	p, err := s.BySlug(ctx, slug)
	if err != nil {
		return model.PositionWithSlug{}, nil, err
	}
	rooms, err := s.rooms.Get(ctx, p.ID, func(ctx context.Context) ([]model.Room, error) {
		return s.api.ListRoomsByPosition(ctx, p.ID)
	})
	if err != nil {
		return p, nil, err
	}
	return p, rooms, nil
}

// Room は部屋を返す。結果はキャッシュされ、予約一覧の結合でも共有する。
func (s *Service) Room(ctx context.Context, roomID int) (model.Room, error) {
	return s.room.Get(ctx, roomID, func(ctx context.Context) (model.Room, error) {
		return s.api.GetRoom(ctx, roomID)
	})
}

// Comments は部屋のレビューをサニタイズし、新しい順（ID降順）で返す。
func (s *Service) Comments(ctx context.Context, roomID int) ([]model.Comment, error) {
	comments, err := s.api.ListCommentsByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Comment, len(comments))
	for i, c := range comments {
		out[i] = s.sanitizer.SanitizeComment(c)
	}
	slices.SortStableFunc(out, func(a, b model.Comment) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}
