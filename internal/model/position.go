// Package model は予約APIから受け取るエンティティとAPIエラーを定義する。
// JSONフィールド名は上流APIの名前をそのまま使用し、名前の変換層は持たない。
package model

// Position は検索対象となる地点（都市・省・国）を表す。
// セッション開始時に一括取得し、以降は読み取り専用の参照データとして扱う。
type Position struct {
	ID        int    `json:"id"`
	TenViTri  string `json:"tenViTri"`  // 表示名
	TinhThanh string `json:"tinhThanh"` // 省・地域
	QuocGia   string `json:"quocGia"`   // 国
	HinhAnh   string `json:"hinhAnh"`   // 画像URL
}

// PositionWithSlug はルーティング用のスラッグを付与したPosition。
type PositionWithSlug struct {
	Position
	Slug string `json:"slug"`
}
