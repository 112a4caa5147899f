package model

// Booking は部屋の予約を表す。MaPhong が Room.ID を参照する。
// 日付はISO-8601文字列のまま受け渡す。
type Booking struct {
	ID           int    `json:"id"`
	MaPhong      int    `json:"maPhong"`
	NgayDen      string `json:"ngayDen"`
	NgayDi       string `json:"ngayDi"`
	SoLuongKhach int    `json:"soLuongKhach"`
	MaNguoiDung  int    `json:"maNguoiDung"`
}
