package upstream

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidID はリクエスト前に検出した不正なIDを示す。
	ErrInvalidID = errors.New("IDが不正です")
	// ErrNotFound は対象のエンティティが存在しないことを示す。
	ErrNotFound = errors.New("対象が見つかりません")
	// ErrUnexpectedStatus は想定外のステータスコードを示す。
	ErrUnexpectedStatus = errors.New("想定外のステータスコードです")
	// ErrDecode はレスポンスの解析失敗を示す。
	ErrDecode = errors.New("レスポンスの解析に失敗しました")
	// ErrMissingUserToken はユーザートークンが必要な操作でトークンがないことを示す。
	ErrMissingUserToken = errors.New("ユーザートークンがありません")
)

// FetchError は予約API呼び出しの失敗。
// StatusCode は通信エラーやリクエスト前の失敗では0。
type FetchError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("upstream %s", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsNotFound は err が存在しないエンティティによる失敗かを判定する。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type userTokenKey struct{}

// WithUserToken はログイン中ユーザーのトークンをコンテキストに設定する。
// 設定したトークンは token ヘッダーで予約APIに送信される。
func WithUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, userTokenKey{}, token)
}

func userToken(ctx context.Context) string {
	token, _ := ctx.Value(userTokenKey{}).(string)
	return token
}
