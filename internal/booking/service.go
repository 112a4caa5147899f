// Package booking はユーザーの予約一覧と、予約・レビューの登録を提供する。
//
// 予約一覧は予約→部屋の結合を aggregate.Loader で読み込み、部屋の取得は
// catalog の部屋キャッシュを共有する。
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/roombook/internal/aggregate"
	"github.com/hitoshi/roombook/internal/cache"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/search"
)

// Upstream は booking が必要とする予約APIの操作。
type Upstream interface {
	ListBookingsByUser(ctx context.Context, userID int) ([]model.Booking, error)
	CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	CreateComment(ctx context.Context, c model.PostComment) (model.Comment, error)
	GetUser(ctx context.Context, userID int) (model.User, error)
	UpdateUser(ctx context.Context, userID int, u model.UpdateUser) (model.User, error)
	UploadAvatar(ctx context.Context, filename string, data []byte) (model.User, error)
}

// MaxAvatarSize はアバター画像の最大サイズ（2MB）。
const MaxAvatarSize = 2 << 20

// avatarTypes は受け付けるアバター画像の形式。
var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Catalog は部屋と地点の参照。
type Catalog interface {
	Room(ctx context.Context, roomID int) (model.Room, error)
	ByID(ctx context.Context, positionID int) (model.PositionWithSlug, bool)
}

// Loader は予約と部屋を結合するローダー。
type Loader = aggregate.Loader[model.Booking, int, model.Room]

// View は部屋情報を結合した予約。地点は一覧に存在する場合のみ付与する。
type View struct {
	model.Booking
	Room     model.Room              `json:"room"`
	Position *model.PositionWithSlug `json:"position,omitempty"`
}

// InvalidInputError は入力検証エラーの一覧。
type InvalidInputError struct {
	Errors []search.ValidationError
}

func (e *InvalidInputError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, v := range e.Errors {
		parts[i] = v.Error()
	}
	return "入力内容に誤りがあります: " + strings.Join(parts, ", ")
}

// Unwrap は search.ErrValidation を返す。
func (e *InvalidInputError) Unwrap() error {
	return search.ErrValidation
}

// Service は予約関連の操作を提供する。
type Service struct {
	api         Upstream
	catalog     Catalog
	users       *cache.Cache[int, model.User]
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
	loc         *time.Location
}

// NewService は Service の新しいインスタンスを生成する。
// loc は予約日が過去かどうかの判定に使うタイムゾーン。
func NewService(
	api Upstream,
	catalog Catalog,
	users *cache.Cache[int, model.User],
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	concurrency int,
	loc *time.Location,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		api:         api,
		catalog:     catalog,
		users:       users,
		metrics:     collector,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		loc:         loc,
	}
}

// NewLoader はセッションごとの予約一覧ローダーを生成する。
// キーはユーザーIDの10進文字列。
func (s *Service) NewLoader() *Loader {
	return aggregate.NewLoader(
		func(ctx context.Context, key string) ([]model.Booking, error) {
			userID, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("ユーザーIDが不正です: %q", key)
			}
			return s.api.ListBookingsByUser(ctx, userID)
		},
		func(b model.Booking) int { return b.MaPhong },
		s.catalog.Room,
		aggregate.WithConcurrency(s.concurrency),
		aggregate.WithLogger(s.logger),
		aggregate.WithDroppedHook(s.metrics.RecordJoinDropped),
	)
}

// UserBookings はユーザーの予約一覧を部屋・地点付きで返す。
// 部屋を取得できなかった予約は含まれない。エラーは予約一覧の取得失敗のみ。
func (s *Service) UserBookings(ctx context.Context, loader *Loader, userID int) ([]View, error) {
	key := ""
	if userID > 0 {
		key = strconv.Itoa(userID)
	}
	res := loader.Load(ctx, key)
	if res.State.Err != nil {
		return nil, res.State.Err
	}

	views := make([]View, 0, len(res.State.Data))
	for _, j := range res.State.Data {
		v := View{Booking: j.Item, Room: j.Secondary}
		if p, ok := s.catalog.ByID(ctx, j.Secondary.MaViTri); ok {
			v.Position = &p
		}
		views = append(views, v)
	}
	return views, nil
}

// Create は予約を検証して登録する。
func (s *Service) Create(ctx context.Context, d search.BookingDraft) (model.Booking, error) {
	if errs := search.ValidateBooking(d, s.now().In(s.loc)); len(errs) > 0 {
		return model.Booking{}, &InvalidInputError{Errors: errs}
	}
	created, err := s.api.CreateBooking(ctx, d.Booking())
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Info("予約を登録しました",
		slog.Int("booking_id", created.ID),
		slog.Int("room_id", d.MaPhong),
		slog.Int("user_id", d.MaNguoiDung),
	)
	return created, nil
}

// PostComment はレビューを検証して投稿する。投稿日時が空の場合は現在時刻を使う。
func (s *Service) PostComment(ctx context.Context, c model.PostComment) (model.Comment, error) {
	if strings.TrimSpace(c.NgayBinhLuan) == "" {
		c.NgayBinhLuan = search.FormatISO(s.now())
	}
	if errs := search.ValidateComment(c); len(errs) > 0 {
		return model.Comment{}, &InvalidInputError{Errors: errs}
	}
	return s.api.CreateComment(ctx, c)
}

// User はユーザー情報を返す。結果はキャッシュされる。
func (s *Service) User(ctx context.Context, userID int) (model.User, error) {
	return s.users.Get(ctx, userID, func(ctx context.Context) (model.User, error) {
		return s.api.GetUser(ctx, userID)
	})
}

// UpdateUser はプロフィールを検証して更新する。
// 更新後はキャッシュ済みのユーザー情報を破棄する。
func (s *Service) UpdateUser(ctx context.Context, userID int, u model.UpdateUser) (model.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if errs := search.ValidateUserProfile(userID, u); len(errs) > 0 {
		return model.User{}, &InvalidInputError{Errors: errs}
	}
	updated, err := s.api.UpdateUser(ctx, userID, u)
	if err != nil {
		return model.User{}, err
	}
	s.forgetUser(ctx, userID)
	s.logger.Info("プロフィールを更新しました", slog.Int("user_id", userID))
	return updated, nil
}

// UploadAvatar はアバター画像の形式とサイズを検証して登録する。
// 形式は内容から判定し、拡張子は見ない。
func (s *Service) UploadAvatar(ctx context.Context, filename string, data []byte) (model.User, error) {
	if len(data) == 0 || len(data) > MaxAvatarSize || !avatarTypes[http.DetectContentType(data)] {
		return model.User{}, &InvalidInputError{Errors: []search.ValidationError{
			{Field: "formFile", Code: search.CodeInvalidAvatar},
		}}
	}
	updated, err := s.api.UploadAvatar(ctx, filename, data)
	if err != nil {
		return model.User{}, err
	}
	if updated.ID > 0 {
		s.forgetUser(ctx, updated.ID)
	}
	s.logger.Info("アバター画像を登録しました", slog.Int("user_id", updated.ID), slog.Int("size", len(data)))
	return updated, nil
}

// forgetUser はユーザー情報のキャッシュを破棄する。失敗してもTTLで失効するため記録のみ。
func (s *Service) forgetUser(ctx context.Context, userID int) {
	if err := s.users.Delete(ctx, userID); err != nil {
		s.logger.Warn("ユーザーキャッシュの削除に失敗しました",
			slog.Int("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
