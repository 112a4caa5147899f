package model

// User は予約APIのユーザーを表す。
// 上流のレスポンスに含まれるpasswordは読み込まず、再出力もしない。
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"`
	Avatar   string `json:"avatar"`
	Gender   bool   `json:"gender"`
	Role     string `json:"role"`
}

// UpdateUser はプロフィール更新で送信する項目。
type UpdateUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Birthday string `json:"birthday"`
	Gender   bool   `json:"gender"`
}
