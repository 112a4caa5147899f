package search

import (
	"strings"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// 予約・レビュー入力の追加エラーコード。
const (
	CodeRequiredUserID         = "requiredUserId"
	CodeRequiredRoom           = "requiredRoom"
	CodeRequiredCommentUser    = "requiredCommentUser"
	CodeRequiredCommentContent = "requiredCommentContent"
	CodeInvalidStarRating      = "invalidStarRating"
	CodeInvalidCommentDate     = "invalidCommentDate"
)

// BookingDraft は予約フォームの入力値。
type BookingDraft struct {
	MaPhong      int       `json:"maPhong"`
	NgayDen      time.Time `json:"ngayDen"`
	NgayDi       time.Time `json:"ngayDi"`
	SoLuongKhach int       `json:"soLuongKhach"`
	MaNguoiDung  int       `json:"maNguoiDung"`
}

// ValidateBooking は予約フォームを検証し、すべての検証エラーを返す。
// 日付の規則は検索条件と同じ。
func ValidateBooking(d BookingDraft, now time.Time) []ValidationError {
	var errs []ValidationError
	add := func(field, code string) {
		if code != "" {
			errs = append(errs, ValidationError{Field: field, Code: code})
		}
	}

	if d.MaPhong < 1 {
		add("maPhong", CodeRequiredRoom)
	}
	add("ngayDen", checkCheckIn(d.NgayDen, now))
	add("ngayDi", checkCheckOut(d.NgayDen, d.NgayDi))
	add("soLuongKhach", checkGuests(d.SoLuongKhach))
	if d.MaNguoiDung < 1 {
		add("maNguoiDung", CodeRequiredUserID)
	}
	return errs
}

// Booking は検証済みの入力値を上流APIの予約エンティティに変換する。
func (d BookingDraft) Booking() model.Booking {
	return model.Booking{
		MaPhong:      d.MaPhong,
		NgayDen:      FormatISO(d.NgayDen),
		NgayDi:       FormatISO(d.NgayDi),
		SoLuongKhach: d.SoLuongKhach,
		MaNguoiDung:  d.MaNguoiDung,
	}
}

// ValidateComment はレビュー投稿の入力値を検証する。
func ValidateComment(c model.PostComment) []ValidationError {
	var errs []ValidationError
	if c.MaPhong < 1 {
		errs = append(errs, ValidationError{Field: "maPhong", Code: CodeRequiredRoom})
	}
	if c.MaNguoiBinhLuan < 1 {
		errs = append(errs, ValidationError{Field: "maNguoiBinhLuan", Code: CodeRequiredCommentUser})
	}
	if strings.TrimSpace(c.NgayBinhLuan) == "" {
		errs = append(errs, ValidationError{Field: "ngayBinhLuan", Code: CodeInvalidCommentDate})
	}
	if strings.TrimSpace(c.NoiDung) == "" {
		errs = append(errs, ValidationError{Field: "noiDung", Code: CodeRequiredCommentContent})
	}
	if c.SaoBinhLuan < 1 || c.SaoBinhLuan > 5 {
		errs = append(errs, ValidationError{Field: "saoBinhLuan", Code: CodeInvalidStarRating})
	}
	return errs
}
