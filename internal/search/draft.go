// Package search は検索フォームの入力状態と確定処理を提供する。
//
// Coordinator は検索条件の下書き（地点・チェックイン・チェックアウト・人数）を保持し、
// 項目ごとの検証と確定を行う。確定処理 CommitDraft は通信も状態の書き込みも行わない
// 純粋な計算で、確定結果の反映は呼び出し側の責務とする。
package search

import (
	"strings"
	"time"
)

// 項目名。ValidationError.Field と FieldError の引数に使用する。
const (
	FieldLocation = "location"
	FieldCheckIn  = "checkIn"
	FieldCheckOut = "checkOut"
	FieldGuests   = "guests"
)

// 検証エラーコード。画面側の翻訳キーと同じ値を使う。
const (
	CodeRequiredLocation = "requiredLocation"
	CodeRequiredCheckIn  = "requiredCheckIn"
	CodeInvalidCheckIn   = "invalidCheckIn"
	CodeRequiredCheckOut = "requiredCheckOut"
	CodeInvalidCheckOut  = "invalidCheckOut"
	CodeInvalidGuests    = "invalidGuests"
)

// Field は入力項目1つ分の状態。
// Err は検証エラーコードで、エラーがない場合は空文字列。
type Field[T any] struct {
	Value   T
	Touched bool
	Err     string
}

// VisibleErr は操作済みの項目に限り検証エラーコードを返す。
func (f Field[T]) VisibleErr() string {
	if !f.Touched {
		return ""
	}
	return f.Err
}

// Draft は確定前の検索条件。日付のゼロ値は未入力を表す。
type Draft struct {
	Location Field[string]
	CheckIn  Field[time.Time]
	CheckOut Field[time.Time]
	Guests   Field[int]
}

// NewDraft は入力値から未操作の Draft を生成する。負の人数は0に丸める。
func NewDraft(location string, checkIn, checkOut time.Time, guests int) Draft {
	return Draft{
		Location: Field[string]{Value: location},
		CheckIn:  Field[time.Time]{Value: checkIn},
		CheckOut: Field[time.Time]{Value: checkOut},
		Guests:   Field[int]{Value: max(guests, 0)},
	}
}

// StartOfDay は t と同じタイムゾーンにおける当日0時を返す。
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func checkLocation(location string) string {
	if strings.TrimSpace(location) == "" {
		return CodeRequiredLocation
	}
	return ""
}

func checkCheckIn(checkIn, now time.Time) string {
	switch {
	case checkIn.IsZero():
		return CodeRequiredCheckIn
	case checkIn.Before(StartOfDay(now)):
		return CodeInvalidCheckIn
	}
	return ""
}

func checkCheckOut(checkIn, checkOut time.Time) string {
	switch {
	case checkOut.IsZero():
		return CodeRequiredCheckOut
	case !checkIn.IsZero() && !checkOut.After(checkIn):
		return CodeInvalidCheckOut
	}
	return ""
}

func checkGuests(guests int) string {
	if guests < 1 {
		return CodeInvalidGuests
	}
	return ""
}

// validate は全項目の検証結果を Draft に書き込んで返す。
func (d Draft) validate(now time.Time) Draft {
	d.Location.Err = checkLocation(d.Location.Value)
	d.CheckIn.Err = checkCheckIn(d.CheckIn.Value, now)
	d.CheckOut.Err = checkCheckOut(d.CheckIn.Value, d.CheckOut.Value)
	d.Guests.Err = checkGuests(d.Guests.Value)
	return d
}

func (d Draft) touchAll() Draft {
	d.Location.Touched = true
	d.CheckIn.Touched = true
	d.CheckOut.Touched = true
	d.Guests.Touched = true
	return d
}
