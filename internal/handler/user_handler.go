package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/roombook/internal/booking"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/search"
	"github.com/hitoshi/roombook/internal/upstream"
)

// UserHandler はユーザーと予約のHTTPハンドラー。
type UserHandler struct {
	bookings BookingService
	loc      *time.Location
	logger   *slog.Logger
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(bookings BookingService, loc *time.Location, logger *slog.Logger) *UserHandler {
	return &UserHandler{bookings: bookings, loc: loc, logger: logger}
}

// Get はユーザー情報を返す。
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.bookings.User(upstreamContext(r), id)
	if upstream.IsNotFound(err) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Update はユーザーのプロフィールを更新する。
// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.UpdateUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	u, err := h.bookings.UpdateUser(upstreamContext(r), id, req)
	if upstream.IsNotFound(err) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(id))
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// avatarFormField はアバター画像のフォーム項目名。
const avatarFormField = "formFile"

// UploadAvatar はログイン中ユーザーのアバター画像を登録する。
// POST /api/users/upload-avatar（multipart/form-data の formFile）
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(userTokenHeader) == "" {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	// 画像本体に加えてフォームの境界などのオーバーヘッドを許容する
	r.Body = http.MaxBytesReader(w, r.Body, booking.MaxAvatarSize+64<<10)
	f, hdr, err := r.FormFile(avatarFormField)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		middleware.WriteValidationErrors(w, []search.ValidationError{{Field: avatarFormField, Code: search.CodeInvalidAvatar}})
		return
	case err != nil:
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingParameterError(avatarFormField))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, booking.MaxAvatarSize+1))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	u, err := h.bookings.UploadAvatar(upstreamContext(r), hdr.Filename, data)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// bookingsResponse はユーザーの予約一覧。部屋を取得できなかった予約は含まない。
type bookingsResponse struct {
	UserID   int            `json:"userId"`
	Bookings []booking.View `json:"bookings"`
}

// Bookings はユーザーの予約一覧を部屋情報付きで返す。
// 訪問者のセッションのローダーで読み込むため、並行する古い要求の結果は反映されない。
// GET /api/users/{id}/bookings
func (h *UserHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	if s.Bookings == nil {
		h.logger.Error("セッションに予約ローダーがありません", slog.String("visitor_id", s.ID))
		middleware.WriteInternalServerError(w)
		return
	}

	views, err := h.bookings.UserBookings(upstreamContext(r), s.Bookings, id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingsResponse{UserID: id, Bookings: views})
}

// bookingRequest は予約登録リクエストのボディ。日付は YYYY-MM-DD またはISO-8601。
type bookingRequest struct {
	MaPhong      int    `json:"maPhong"`
	NgayDen      string `json:"ngayDen"`
	NgayDi       string `json:"ngayDi"`
	SoLuongKhach int    `json:"soLuongKhach"`
	MaNguoiDung  int    `json:"maNguoiDung"`
}

// CreateBooking は予約を登録する。
// POST /api/bookings
func (h *UserHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	checkIn, err := parseDate(req.NgayDen, h.loc)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError("ngayDen", req.NgayDen))
		return
	}
	checkOut, err := parseDate(req.NgayDi, h.loc)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError("ngayDi", req.NgayDi))
		return
	}

	created, err := h.bookings.Create(upstreamContext(r), search.BookingDraft{
		MaPhong:      req.MaPhong,
		NgayDen:      checkIn,
		NgayDi:       checkOut,
		SoLuongKhach: req.SoLuongKhach,
		MaNguoiDung:  req.MaNguoiDung,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
