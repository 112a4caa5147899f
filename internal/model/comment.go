package model

// Comment は部屋に投稿されたレビューを表す。
type Comment struct {
	ID               int    `json:"id"`
	NgayBinhLuan     string `json:"ngayBinhLuan"`
	NoiDung          string `json:"noiDung"`
	SaoBinhLuan      int    `json:"saoBinhLuan"`
	TenNguoiBinhLuan string `json:"tenNguoiBinhLuan"`
	Avatar           string `json:"avatar"`
}

// PostComment はレビュー投稿リクエストのボディ。
type PostComment struct {
	MaPhong         int    `json:"maPhong"`
	MaNguoiBinhLuan int    `json:"maNguoiBinhLuan"`
	NgayBinhLuan    string `json:"ngayBinhLuan"`
	NoiDung         string `json:"noiDung"`
	SaoBinhLuan     int    `json:"saoBinhLuan"`
}
