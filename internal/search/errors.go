package search

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation は入力検証に失敗した確定処理のエラー。
	ErrValidation = errors.New("検索条件の検証に失敗しました")
	// ErrLocationUnresolved は入力された地点が既知の地点に完全一致しないことを示す。
	ErrLocationUnresolved = errors.New("地点が見つかりません")
)

// ValidationError は項目単位の検証エラー。
type ValidationError struct {
	Field string `json:"field"`
	Code  string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Code)
}

// CommitError は確定処理で検出したすべての失敗をまとめたエラー。
// errors.Is で ErrValidation / ErrLocationUnresolved と照合できる。
type CommitError struct {
	Validation         []ValidationError
	LocationUnresolved bool
}

func (e *CommitError) Error() string {
	parts := make([]string, 0, len(e.Validation)+1)
	for _, v := range e.Validation {
		parts = append(parts, v.Error())
	}
	if e.LocationUnresolved {
		parts = append(parts, ErrLocationUnresolved.Error())
	}
	return "検索条件を確定できません: " + strings.Join(parts, ", ")
}

// Unwrap は含まれる失敗の種類に対応するセンチネルエラーを返す。
func (e *CommitError) Unwrap() []error {
	var errs []error
	if len(e.Validation) > 0 {
		errs = append(errs, ErrValidation)
	}
	if e.LocationUnresolved {
		errs = append(errs, ErrLocationUnresolved)
	}
	return errs
}

// Codes は指定した項目の検証エラーコードを返す。
func (e *CommitError) Codes(field string) []string {
	var codes []string
	for _, v := range e.Validation {
		if v.Field == field {
			codes = append(codes, v.Code)
		}
	}
	return codes
}
