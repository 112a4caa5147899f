package search

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/store"
)

var hcm = time.FixedZone("ICT", 7*60*60)

// 2026-03-10 14:30 (UTC+7)
func fixedNow() time.Time {
	return time.Date(2026, 3, 10, 14, 30, 0, 0, hcm)
}

func day(offset int) time.Time {
	return StartOfDay(fixedNow()).AddDate(0, 0, offset)
}

func candidates() []model.Position {
	return []model.Position{
		{ID: 1, TenViTri: "Đà Lạt", TinhThanh: "Lâm Đồng", QuocGia: "Việt Nam"},
		{ID: 2, TenViTri: "Hà Nội", TinhThanh: "Hà Nội", QuocGia: "Việt Nam"},
	}
}

func newTestCoordinator() *Coordinator {
	return NewCoordinator(WithClock(fixedNow), WithLocation(hcm))
}

func TestCoordinator_FieldErrorsVisibleOnlyWhenTouched(t *testing.T) {
	c := newTestCoordinator()

	for _, f := range []string{FieldLocation, FieldCheckIn, FieldCheckOut, FieldGuests} {
		if got := c.FieldError(f); got != "" {
			t.Errorf("未操作の %s のエラー = %q, want empty", f, got)
		}
	}

	c.SetLocationText("")
	if got := c.FieldError(FieldLocation); got != CodeRequiredLocation {
		t.Errorf("location error = %q, want %q", got, CodeRequiredLocation)
	}
	// 他の項目は未操作のまま
	if got := c.FieldError(FieldGuests); got != "" {
		t.Errorf("guests error = %q, want empty", got)
	}

	c.SetGuestCount(-3)
	if got := c.Draft().Guests.Value; got != 0 {
		t.Errorf("負の人数 → %d, want 0", got)
	}
	if got := c.FieldError(FieldGuests); got != CodeInvalidGuests {
		t.Errorf("guests error = %q, want %q", got, CodeInvalidGuests)
	}
}

func TestCoordinator_CheckInRevalidatesCheckOut(t *testing.T) {
	c := newTestCoordinator()

	c.SetCheckOut(day(3))
	if got := c.FieldError(FieldCheckOut); got != "" {
		t.Fatalf("checkOut error = %q, want empty", got)
	}

	c.SetCheckIn(day(5))
	if got := c.FieldError(FieldCheckOut); got != CodeInvalidCheckOut {
		t.Errorf("checkIn 変更後の checkOut error = %q, want %q", got, CodeInvalidCheckOut)
	}

	c.SetCheckIn(day(1))
	if got := c.FieldError(FieldCheckOut); got != "" {
		t.Errorf("checkIn 修正後の checkOut error = %q, want empty", got)
	}
}

func TestCoordinator_CheckInTodayIsValid(t *testing.T) {
	c := newTestCoordinator()

	// 本日0時は「過去」ではない
	c.SetCheckIn(day(0))
	if got := c.FieldError(FieldCheckIn); got != "" {
		t.Errorf("本日の checkIn error = %q, want empty", got)
	}

	c.SetCheckIn(day(0).Add(-time.Second))
	if got := c.FieldError(FieldCheckIn); got != CodeInvalidCheckIn {
		t.Errorf("昨日の checkIn error = %q, want %q", got, CodeInvalidCheckIn)
	}
}

func TestCoordinator_CommitSuccess(t *testing.T) {
	c := newTestCoordinator()
	c.SetLocationText("Đà Lạt")
	c.SetCheckIn(day(1))
	c.SetCheckOut(day(4))
	c.SetGuestCount(2)

	res, err := c.Commit(candidates())
	if err != nil {
		t.Fatalf("Commit がエラーを返した: %v", err)
	}
	if res.RouteTarget != "lam-dong" {
		t.Errorf("RouteTarget = %q, want lam-dong", res.RouteTarget)
	}
	if res.Position.ID != 1 {
		t.Errorf("Position.ID = %d, want 1", res.Position.ID)
	}

	want := Committed{
		Location: "Đà Lạt",
		Guests:   2,
		CheckIn:  "2026-03-10T17:00:00.000Z",
		CheckOut: "2026-03-13T17:00:00.000Z",
	}
	if res.Search != want {
		t.Errorf("Search = %+v, want %+v", res.Search, want)
	}
	if c.State() != StateCommitted {
		t.Errorf("State = %v, want committed", c.State())
	}
}

func TestCommitDraft_SameDayCheckOut(t *testing.T) {
	d := NewDraft("Đà Lạt", day(0), day(0), 2)

	_, err := CommitDraft(d, candidates(), fixedNow())

	var cerr *CommitError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CommitError", err)
	}
	// 当日のチェックインは日単位の比較で有効なので、エラーはチェックアウトの1件だけ
	want := []ValidationError{{Field: FieldCheckOut, Code: CodeInvalidCheckOut}}
	if !slices.Equal(cerr.Validation, want) {
		t.Errorf("Validation = %v, want %v", cerr.Validation, want)
	}
	if got := cerr.Codes(FieldCheckIn); len(got) != 0 {
		t.Errorf("checkIn codes = %v, want none", got)
	}
	if cerr.LocationUnresolved {
		t.Error("解決可能な地点で LocationUnresolved = true")
	}
	if errors.Is(err, ErrLocationUnresolved) {
		t.Error("errors.Is(err, ErrLocationUnresolved) = true, want false")
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = false, want true")
	}
}

func TestCommitDraft_CollectsAllFailures(t *testing.T) {
	// 過去のチェックイン、同日のチェックアウト、0名、未知の地点
	d := NewDraft("Đà Lạ", day(-1), day(-1), 0)

	_, err := CommitDraft(d, candidates(), fixedNow())

	var cerr *CommitError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CommitError", err)
	}
	want := []ValidationError{
		{Field: FieldGuests, Code: CodeInvalidGuests},
		{Field: FieldCheckIn, Code: CodeInvalidCheckIn},
		{Field: FieldCheckOut, Code: CodeInvalidCheckOut},
	}
	if !slices.Equal(cerr.Validation, want) {
		t.Errorf("Validation = %v, want %v", cerr.Validation, want)
	}
	if !cerr.LocationUnresolved {
		t.Error("LocationUnresolved = false, want true")
	}
	if !errors.Is(err, ErrLocationUnresolved) || !errors.Is(err, ErrValidation) {
		t.Error("CommitError が両方のセンチネルエラーに一致しない")
	}
}

func TestCommitDraft_RequiredFields(t *testing.T) {
	_, err := CommitDraft(Draft{}, candidates(), fixedNow())

	var cerr *CommitError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CommitError", err)
	}
	want := []ValidationError{
		{Field: FieldLocation, Code: CodeRequiredLocation},
		{Field: FieldCheckIn, Code: CodeRequiredCheckIn},
		{Field: FieldCheckOut, Code: CodeRequiredCheckOut},
		{Field: FieldGuests, Code: CodeInvalidGuests},
	}
	if !slices.Equal(cerr.Validation, want) {
		t.Errorf("Validation = %v, want %v", cerr.Validation, want)
	}
	// 地点が未入力の場合は解決を試みない
	if cerr.LocationUnresolved {
		t.Error("未入力の地点で LocationUnresolved = true")
	}
}

func TestCommitDraft_LocationUnresolvedOnly(t *testing.T) {
	d := NewDraft("da lat", day(1), day(2), 1)

	_, err := CommitDraft(d, candidates(), fixedNow())

	var cerr *CommitError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CommitError", err)
	}
	if len(cerr.Validation) != 0 {
		t.Errorf("Validation = %v, want none", cerr.Validation)
	}
	if !cerr.LocationUnresolved {
		t.Error("完全一致しない地点で LocationUnresolved = false")
	}
}

// チェックアウトがチェックイン以前、またはチェックインが本日より前の場合は成功しない。
func TestCommitDraft_DateInvariant(t *testing.T) {
	for in := -2; in <= 2; in++ {
		for out := -2; out <= 3; out++ {
			for _, shift := range []time.Duration{0, 13 * time.Hour} {
				checkIn := day(in).Add(shift)
				checkOut := day(out)
				d := NewDraft("Hà Nội", checkIn, checkOut, 1)

				_, err := CommitDraft(d, candidates(), fixedNow())
				invalid := !checkOut.After(checkIn) || checkIn.Before(day(0))
				if invalid && err == nil {
					t.Errorf("checkIn=%v checkOut=%v で成功した", checkIn, checkOut)
				}
				if !invalid && err != nil {
					t.Errorf("checkIn=%v checkOut=%v で失敗した: %v", checkIn, checkOut, err)
				}
			}
		}
	}
}

func TestCoordinator_RejectedThenEditing(t *testing.T) {
	c := newTestCoordinator()
	c.SetLocationText("Đà Lạt")

	if _, err := c.Commit(candidates()); err == nil {
		t.Fatal("不完全な下書きで Commit が成功した")
	}
	if c.State() != StateRejected {
		t.Errorf("State = %v, want rejected", c.State())
	}
	// 確定時にすべての項目が操作済みになる
	if got := c.FieldError(FieldCheckIn); got != CodeRequiredCheckIn {
		t.Errorf("checkIn error = %q, want %q", got, CodeRequiredCheckIn)
	}

	c.SetCheckIn(day(1))
	if c.State() != StateEditing {
		t.Errorf("入力後の State = %v, want editing", c.State())
	}
}

// 検証失敗時はストアの値は変わらず、成功時は値全体が1回だけ置換される。
func TestCommit_PublishToStore(t *testing.T) {
	initial := DefaultCommitted(fixedNow())
	committed := store.NewValue(initial)

	var writes int
	committed.Subscribe(func(Committed) { writes++ })

	publish := func(c *Coordinator) error {
		res, err := c.Commit(candidates())
		if err != nil {
			return err
		}
		committed.Set(res.Search)
		return nil
	}

	c := newTestCoordinator()
	c.SetLocationText("Đà Lạt")
	c.SetCheckIn(day(1))
	c.SetCheckOut(day(1))
	c.SetGuestCount(2)

	if err := publish(c); err == nil {
		t.Fatal("同日のチェックアウトで Commit が成功した")
	}
	if committed.Get() != initial || writes != 0 {
		t.Errorf("検証失敗後にストアが更新された: %+v (writes=%d)", committed.Get(), writes)
	}

	c.SetCheckOut(day(2))
	if err := publish(c); err != nil {
		t.Fatalf("Commit がエラーを返した: %v", err)
	}
	if writes != 1 {
		t.Errorf("書き込み回数 = %d, want 1", writes)
	}
	if got := committed.Get(); got.Location != "Đà Lạt" || got.Guests != 2 {
		t.Errorf("ストアの値 = %+v", got)
	}
}

func TestDefaultCommitted(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 4, 5, 6_000_000, time.UTC)
	got := DefaultCommitted(now)
	want := Committed{
		Location: "",
		Guests:   1,
		CheckIn:  "2026-03-10T03:04:05.006Z",
		CheckOut: "2026-03-17T03:04:05.006Z",
	}
	if got != want {
		t.Errorf("DefaultCommitted = %+v, want %+v", got, want)
	}
}

func TestValidateBooking(t *testing.T) {
	now := fixedNow()

	valid := BookingDraft{MaPhong: 3, NgayDen: day(1), NgayDi: day(3), SoLuongKhach: 2, MaNguoiDung: 7}
	if errs := ValidateBooking(valid, now); len(errs) != 0 {
		t.Errorf("ValidateBooking(valid) = %v, want none", errs)
	}

	invalid := BookingDraft{NgayDen: day(-1), NgayDi: day(-1)}
	want := []ValidationError{
		{Field: "maPhong", Code: CodeRequiredRoom},
		{Field: "ngayDen", Code: CodeInvalidCheckIn},
		{Field: "ngayDi", Code: CodeInvalidCheckOut},
		{Field: "soLuongKhach", Code: CodeInvalidGuests},
		{Field: "maNguoiDung", Code: CodeRequiredUserID},
	}
	if errs := ValidateBooking(invalid, now); !slices.Equal(errs, want) {
		t.Errorf("ValidateBooking(invalid) = %v, want %v", errs, want)
	}

	b := valid.Booking()
	if b.NgayDen != "2026-03-10T17:00:00.000Z" || b.MaPhong != 3 || b.MaNguoiDung != 7 {
		t.Errorf("Booking() = %+v", b)
	}
}

func TestValidateComment(t *testing.T) {
	tests := []struct {
		name  string
		in    model.PostComment
		codes []string
	}{
		{
			name:  "正常",
			in:    model.PostComment{MaPhong: 1, MaNguoiBinhLuan: 2, NgayBinhLuan: "2026-03-10T00:00:00.000Z", NoiDung: "good", SaoBinhLuan: 5},
			codes: nil,
		},
		{
			name:  "星の範囲外",
			in:    model.PostComment{MaPhong: 1, MaNguoiBinhLuan: 2, NgayBinhLuan: "x", NoiDung: "good", SaoBinhLuan: 6},
			codes: []string{CodeInvalidStarRating},
		},
		{
			name:  "空の投稿",
			in:    model.PostComment{MaPhong: 1, NoiDung: "   "},
			codes: []string{CodeRequiredCommentUser, CodeInvalidCommentDate, CodeRequiredCommentContent, CodeInvalidStarRating},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var codes []string
			for _, e := range ValidateComment(tt.in) {
				codes = append(codes, e.Code)
			}
			if !slices.Equal(codes, tt.codes) {
				t.Errorf("codes = %v, want %v", codes, tt.codes)
			}
		})
	}
}

func TestValidateUserProfile(t *testing.T) {
	tests := []struct {
		name  string
		id    int
		in    model.UpdateUser
		codes []string
	}{
		{
			name:  "正常",
			id:    4,
			in:    model.UpdateUser{Name: "Lan", Email: "lan@example.com", Birthday: "1990-02-01"},
			codes: nil,
		},
		{
			name:  "誕生日は空でもよい",
			id:    4,
			in:    model.UpdateUser{Name: "Lan", Email: "lan@example.com"},
			codes: nil,
		},
		{
			name:  "日/月/年の誕生日",
			id:    4,
			in:    model.UpdateUser{Name: "Lan", Email: "lan@example.com", Birthday: "01/02/1990"},
			codes: nil,
		},
		{
			name:  "表示名付きのメールアドレス",
			id:    4,
			in:    model.UpdateUser{Name: "Lan", Email: "Lan <lan@example.com>"},
			codes: []string{CodeInvalidEmail},
		},
		{
			name:  "すべて不正",
			id:    0,
			in:    model.UpdateUser{Name: " ", Email: "lan", Birthday: "yesterday"},
			codes: []string{CodeRequiredUserID, CodeRequiredName, CodeInvalidEmail, CodeInvalidBirthday},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var codes []string
			for _, e := range ValidateUserProfile(tt.id, tt.in) {
				codes = append(codes, e.Code)
			}
			if !slices.Equal(codes, tt.codes) {
				t.Errorf("codes = %v, want %v", codes, tt.codes)
			}
		})
	}
}
