package search

import (
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// プロフィール入力のエラーコード。
const (
	CodeRequiredName    = "requiredName"
	CodeInvalidEmail    = "invalidEmail"
	CodeInvalidBirthday = "invalidBirthday"
	CodeInvalidAvatar   = "invalidAvatar"
)

// ValidateUserProfile はプロフィール更新の入力値を検証する。
// 誕生日は空か、YYYY-MM-DD または DD/MM/YYYY 形式を受け付ける。
func ValidateUserProfile(userID int, u model.UpdateUser) []ValidationError {
	var errs []ValidationError
	if userID < 1 {
		errs = append(errs, ValidationError{Field: "id", Code: CodeRequiredUserID})
	}
	if strings.TrimSpace(u.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Code: CodeRequiredName})
	}
	if !validEmail(u.Email) {
		errs = append(errs, ValidationError{Field: "email", Code: CodeInvalidEmail})
	}
	if b := strings.TrimSpace(u.Birthday); b != "" && !validBirthday(b) {
		errs = append(errs, ValidationError{Field: "birthday", Code: CodeInvalidBirthday})
	}
	return errs
}

// validEmail は表示名や山括弧を含まない単独のアドレスだけを受け付ける。
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Name == "" && addr.Address == s
}

func validBirthday(s string) bool {
	for _, layout := range []string{time.DateOnly, "02/01/2006"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
