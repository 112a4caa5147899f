// Package security はアプリケーションのセキュリティ機能を提供する。
//
// CommentSanitizer は予約APIから受け取るレビュー本文や投稿者名などの
// ユーザー入力由来の文字列からHTMLを除去し、画像URLをhttp(s)に限定する。
// bluemondayの厳格なポリシーを使用し、タグはすべて除去する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/roombook/internal/model"
)

// CommentSanitizerService はレビューのサニタイズ機能のインターフェースを定義する。
type CommentSanitizerService interface {
	// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
	// エンティティはデコードした文字に戻し、前後の空白を除去する。
	SanitizeText(raw string) string

	// SafeImageURL はhttpまたはhttpsの絶対URLの場合のみ入力を返し、それ以外は空文字列を返す。
	SafeImageURL(raw string) string

	// SanitizeComment はレビューの本文・投稿者名・アバターURLをサニタイズしたコピーを返す。
	SanitizeComment(c model.Comment) model.Comment
}

// commentSanitizer はCommentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに使用できる。
type commentSanitizer struct {
	policy *bluemonday.Policy
}

// NewCommentSanitizer はCommentSanitizerServiceの新しいインスタンスを生成する。
// すべてのタグと属性を除去する StrictPolicy を使う。
func NewCommentSanitizer() *commentSanitizer {
	return &commentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
func (s *commentSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicy は & などをエスケープして返すため、JSON応答用に元の文字に戻す
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SafeImageURL はhttp(s)の絶対URLのみを許可する。
func (s *commentSanitizer) SafeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return raw
}

// SanitizeComment はレビューをサニタイズしたコピーを返す。
func (s *commentSanitizer) SanitizeComment(c model.Comment) model.Comment {
	c.NoiDung = s.SanitizeText(c.NoiDung)
	c.TenNguoiBinhLuan = s.SanitizeText(c.TenNguoiBinhLuan)
	c.Avatar = s.SafeImageURL(c.Avatar)
	return c
}
