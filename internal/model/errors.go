package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, search, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeMissingParameter   = "MISSING_PARAMETER"
	ErrCodeInvalidDate        = "INVALID_DATE"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeLocationUnresolved = "LOCATION_UNRESOLVED"
	ErrCodeLocationNotFound   = "LOCATION_NOT_FOUND"
	ErrCodeRoomNotFound       = "ROOM_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUpstreamFailed     = "UPSTREAM_FAILED"
	ErrCodeEmptyCity          = "EMPTY_CITY"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeForbiddenOrigin    = "FORBIDDEN_ORIGIN"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディ解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewMissingParameterError は必須のクエリパラメータがない場合のエラーを生成する。
func NewMissingParameterError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameter,
		Message:  fmt.Sprintf("%sパラメータが指定されていません。", name),
		Category: "validation",
		Action:   fmt.Sprintf("%sパラメータを指定してください。", name),
	}
}

// NewInvalidDateError は日付として解釈できない入力のエラーを生成する。
func NewInvalidDateError(field, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("%sの日付が不正です: %q", field, value),
		Category: "validation",
		Action:   "YYYY-MM-DD またはISO-8601形式で指定してください。",
	}
}

// NewInvalidIDError は不正なID指定エラーを生成する。
func NewInvalidIDError(name, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("%sが不正です: %q", name, value),
		Category: "validation",
		Action:   "1以上の整数を指定してください。",
	}
}

// NewValidationFailedError は入力検証エラーを生成する。
// 個別の項目エラーはレスポンスのerrorsフィールドで返す。
func NewValidationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラーを確認して修正してください。",
	}
}

// NewLocationUnresolvedError は検索地点が既知の地点に一致しない場合のエラーを生成する。
func NewLocationUnresolvedError(text string) *APIError {
	return &APIError{
		Code:     ErrCodeLocationUnresolved,
		Message:  fmt.Sprintf("検索に失敗しました。地点が見つかりません: %s", text),
		Category: "search",
		Action:   "候補の一覧から地点を選択してください。",
	}
}

// NewLocationNotFoundError はスラッグに対応する地点がない場合のエラーを生成する。
func NewLocationNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeLocationNotFound,
		Message:  fmt.Sprintf("指定された地域が見つかりません: %s", slug),
		Category: "search",
		Action:   "地域を選び直して再度検索してください。",
	}
}

// NewRoomNotFoundError は部屋未検出エラーを生成する。
func NewRoomNotFoundError(roomID int) *APIError {
	return &APIError{
		Code:     ErrCodeRoomNotFound,
		Message:  fmt.Sprintf("指定された部屋が見つかりません: %d", roomID),
		Category: "upstream",
		Action:   "部屋IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(userID int) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %d", userID),
		Category: "upstream",
		Action:   "ログインし直してください。",
	}
}

// NewUpstreamFailedError は予約APIの呼び出し失敗エラーを生成する。
func NewUpstreamFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("予約APIからのデータ取得に失敗しました: %s", reason),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewEmptyCityError は都市名未指定エラーを生成する。
func NewEmptyCityError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCity,
		Message:  "都市名が指定されていません。",
		Category: "validation",
		Action:   "cityパラメータに都市名を指定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewForbiddenOriginError は許可されていないオリジンからの更新リクエストのエラーを生成する。
func NewForbiddenOriginError() *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenOrigin,
		Message:  "許可されていないオリジンからのリクエストです。",
		Category: "system",
		Action:   "アプリケーションの画面から操作してください。",
	}
}

// NewUnauthenticatedError はログインが必要な操作でユーザートークンがない場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "validation",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
