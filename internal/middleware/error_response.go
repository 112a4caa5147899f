// Package middleware はHTTPミドルウェアと統一エラーレスポンスを提供する。
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/search"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。入力検証エラーの場合のみ項目別のエラーを含む。
// LocationUnresolved は検証エラーと同時に地点も解決できなかった場合に true。
type ErrorResponseBody struct {
	Code               string                   `json:"code"`
	Message            string                   `json:"message"`
	Category           string                   `json:"category"`
	Action             string                   `json:"action"`
	Errors             []search.ValidationError `json:"errors,omitempty"`
	LocationUnresolved bool                     `json:"locationUnresolved,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeErrorBody(w, statusCode, ErrorResponseBody{}, apiErr)
}

// WriteValidationErrors は422と項目別の検証エラーを書き込む。
func WriteValidationErrors(w http.ResponseWriter, errs []search.ValidationError) {
	writeErrorBody(w, http.StatusUnprocessableEntity, ErrorResponseBody{Errors: errs}, model.NewValidationFailedError())
}

// WriteCommitError は検索条件の確定失敗を422で書き込む。
// 検証エラーがあれば VALIDATION_FAILED とし、地点の解決失敗もフラグで併せて返す。
func WriteCommitError(w http.ResponseWriter, ce *search.CommitError, unresolved *model.APIError) {
	if len(ce.Validation) == 0 {
		WriteErrorResponse(w, http.StatusUnprocessableEntity, unresolved)
		return
	}
	writeErrorBody(w, http.StatusUnprocessableEntity, ErrorResponseBody{
		Errors:             ce.Validation,
		LocationUnresolved: ce.LocationUnresolved,
	}, model.NewValidationFailedError())
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body ErrorResponseBody, apiErr *model.APIError) {
	body.Code = apiErr.Code
	body.Message = apiErr.Message
	body.Category = apiErr.Category
	body.Action = apiErr.Action
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
