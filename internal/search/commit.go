package search

import (
	"time"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/textnorm"
)

// ISOLayout は境界を越える日付の書式（UTC、ミリ秒、Z サフィックス）。
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatISO は日付を ISOLayout の文字列に変換する。
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// Committed は確定済みの検索条件。ストアには値全体を置換して書き込む。
type Committed struct {
	Location string `json:"location"`
	Guests   int    `json:"guests"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

// DefaultCommitted は未検索時・クリア時の検索条件を返す。
// 地点なし、1名、本日から7日間。
func DefaultCommitted(now time.Time) Committed {
	return Committed{
		Location: "",
		Guests:   1,
		CheckIn:  FormatISO(now),
		CheckOut: FormatISO(now.AddDate(0, 0, 7)),
	}
}

// Result は確定に成功した検索条件と遷移先。
// RouteTarget は解決した地点の省名から生成したスラッグ。
type Result struct {
	Search      Committed      `json:"search"`
	RouteTarget string         `json:"routeTarget"`
	Position    model.Position `json:"position"`
}

// ResolveLocation は表示名が完全一致する地点を返す。
func ResolveLocation(text string, candidates []model.Position) (model.Position, error) {
	for _, c := range candidates {
		if c.TenViTri == text {
			return c, nil
		}
	}
	return model.Position{}, ErrLocationUnresolved
}

// CommitDraft は下書きを検証し、確定済みの検索条件を計算する。
//
// 必須項目、チェックインが本日（now のタイムゾーンでの0時）以降であること、
// チェックアウトがチェックインより後であること、地点の解決をこの順で確認し、
// 失敗はすべて *CommitError にまとめて返す。地点の解決は入力がある限り
// 他の検証結果にかかわらず行う。
func CommitDraft(d Draft, candidates []model.Position, now time.Time) (Result, error) {
	d = d.validate(now)

	var verr []ValidationError
	add := func(field, code string) {
		verr = append(verr, ValidationError{Field: field, Code: code})
	}

	// 1. 必須項目
	if d.Location.Err == CodeRequiredLocation {
		add(FieldLocation, CodeRequiredLocation)
	}
	if d.CheckIn.Err == CodeRequiredCheckIn {
		add(FieldCheckIn, CodeRequiredCheckIn)
	}
	if d.CheckOut.Err == CodeRequiredCheckOut {
		add(FieldCheckOut, CodeRequiredCheckOut)
	}
	if d.Guests.Err == CodeInvalidGuests {
		add(FieldGuests, CodeInvalidGuests)
	}
	// 2. チェックインが過去でないこと
	if d.CheckIn.Err == CodeInvalidCheckIn {
		add(FieldCheckIn, CodeInvalidCheckIn)
	}
	// 3. チェックアウトがチェックインより後であること
	if d.CheckOut.Err == CodeInvalidCheckOut {
		add(FieldCheckOut, CodeInvalidCheckOut)
	}

	// 4. 地点の解決
	var (
		pos        model.Position
		unresolved bool
	)
	if d.Location.Err == "" {
		p, err := ResolveLocation(d.Location.Value, candidates)
		if err != nil {
			unresolved = true
		} else {
			pos = p
		}
	}

	if len(verr) > 0 || unresolved {
		return Result{}, &CommitError{Validation: verr, LocationUnresolved: unresolved}
	}

	return Result{
		Search: Committed{
			Location: d.Location.Value,
			Guests:   d.Guests.Value,
			CheckIn:  FormatISO(d.CheckIn.Value),
			CheckOut: FormatISO(d.CheckOut.Value),
		},
		RouteTarget: textnorm.Slugify(pos.TinhThanh),
		Position:    pos,
	}, nil
}
