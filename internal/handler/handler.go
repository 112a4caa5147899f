// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/booking"
	"github.com/hitoshi/roombook/internal/catalog"
	"github.com/hitoshi/roombook/internal/geocode"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/search"
	"github.com/hitoshi/roombook/internal/upstream"
)

// CatalogService はハンドラーが必要とする地点・部屋の参照サービス。
type CatalogService interface {
	Suggest(ctx context.Context, query string, maxResults int) ([]catalog.Suggestion, error)
	BySlug(ctx context.Context, slug string) (model.PositionWithSlug, error)
	Candidates(ctx context.Context) ([]model.Position, error)
	RoomsByLocation(ctx context.Context, slug string) (model.PositionWithSlug, []model.Room, error)
	Room(ctx context.Context, roomID int) (model.Room, error)
	Comments(ctx context.Context, roomID int) ([]model.Comment, error)
}

// BookingService はハンドラーが必要とする予約サービス。
type BookingService interface {
	UserBookings(ctx context.Context, loader *booking.Loader, userID int) ([]booking.View, error)
	Create(ctx context.Context, d search.BookingDraft) (model.Booking, error)
	PostComment(ctx context.Context, c model.PostComment) (model.Comment, error)
	User(ctx context.Context, userID int) (model.User, error)
	UpdateUser(ctx context.Context, userID int, u model.UpdateUser) (model.User, error)
	UploadAvatar(ctx context.Context, filename string, data []byte) (model.User, error)
}

// Geocoder は都市名の座標検索。
type Geocoder interface {
	Lookup(ctx context.Context, city string) (model.Coordinates, error)
}

// userTokenHeader はログイン中ユーザーのトークンを受け取るヘッダー。予約APIにそのまま転送する。
const userTokenHeader = "token"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// upstreamContext はリクエストのユーザートークンを予約API呼び出し用のコンテキストに載せる。
func upstreamContext(r *http.Request) context.Context {
	if token := r.Header.Get(userTokenHeader); token != "" {
		return upstream.WithUserToken(r.Context(), token)
	}
	return r.Context()
}

// pathID はURLパラメータを1以上の整数として読み取る。
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(name, raw))
		return 0, false
	}
	return id, true
}

// parseDate は "2006-01-02"（loc の0時）またはRFC3339の日付を解釈する。空文字列はゼロ値。
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// handleServiceError はサービス層のエラーを統一フォーマットのレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		apiErr   *model.APIError
		invalid  *booking.InvalidInputError
		fetchErr *upstream.FetchError
	)
	switch {
	case errors.As(err, &invalid):
		middleware.WriteValidationErrors(w, invalid.Errors)
	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
	case errors.Is(err, geocode.ErrEmptyCity):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEmptyCityError())
	case errors.Is(err, upstream.ErrMissingUserToken):
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
	case errors.As(err, &fetchErr):
		logger.Warn("予約APIの呼び出しに失敗しました",
			slog.String("op", fetchErr.Op),
			slog.Int("upstream_status", upstream.StatusCode(err)),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError(fetchErr.Op))
	case errors.Is(err, context.Canceled):
		// クライアントが切断済み
	default:
		logger.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidID, model.ErrCodeMissingParameter,
		model.ErrCodeInvalidDate, model.ErrCodeEmptyCity:
		return http.StatusBadRequest
	case model.ErrCodeValidationFailed, model.ErrCodeLocationUnresolved:
		return http.StatusUnprocessableEntity
	case model.ErrCodeLocationNotFound, model.ErrCodeRoomNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUpstreamFailed:
		return http.StatusBadGateway
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
