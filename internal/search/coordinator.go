package search

import (
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// State は Coordinator の状態。
type State int

const (
	// StateEditing は入力中。
	StateEditing State = iota
	// StateValidating は確定処理の検証中。
	StateValidating
	// StateCommitted は確定済み。
	StateCommitted
	// StateRejected は確定に失敗した状態。次の入力で StateEditing に戻る。
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateValidating:
		return "validating"
	case StateCommitted:
		return "committed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Coordinator は1つの検索フォームの下書きを保持する。
// 並行呼び出しに対して安全ではないため、共有する場合は呼び出し側で排他制御する。
type Coordinator struct {
	draft Draft
	state State
	now   func() time.Time
	loc   *time.Location
}

// Option は Coordinator の設定を変更する。
type Option func(*Coordinator)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLocation は「本日」の判定に使うタイムゾーンを設定する。
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewCoordinator は空の下書きを持つ Coordinator を生成する。
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) currentTime() time.Time {
	return c.now().In(c.loc)
}

func (c *Coordinator) edit() {
	c.state = StateEditing
}

// SetLocationText は地点の入力値を設定する。
func (c *Coordinator) SetLocationText(text string) {
	c.edit()
	c.draft.Location.Value = text
	c.draft.Location.Touched = true
	c.draft.Location.Err = checkLocation(text)
}

// SetCheckIn はチェックイン日を設定する。ゼロ値は未入力を表す。
// チェックアウトが入力済みの場合はその検証結果も更新する。
func (c *Coordinator) SetCheckIn(t time.Time) {
	c.edit()
	c.draft.CheckIn.Value = t
	c.draft.CheckIn.Touched = true
	c.draft.CheckIn.Err = checkCheckIn(t, c.currentTime())
	if !c.draft.CheckOut.Value.IsZero() {
		c.draft.CheckOut.Err = checkCheckOut(t, c.draft.CheckOut.Value)
	}
}

// SetCheckOut はチェックアウト日を設定する。ゼロ値は未入力を表す。
func (c *Coordinator) SetCheckOut(t time.Time) {
	c.edit()
	c.draft.CheckOut.Value = t
	c.draft.CheckOut.Touched = true
	c.draft.CheckOut.Err = checkCheckOut(c.draft.CheckIn.Value, t)
}

// SetGuestCount は人数を設定する。負の値は0に丸める。
func (c *Coordinator) SetGuestCount(n int) {
	c.edit()
	n = max(n, 0)
	c.draft.Guests.Value = n
	c.draft.Guests.Touched = true
	c.draft.Guests.Err = checkGuests(n)
}

// Load は下書き全体を置き換える。各項目は未操作に戻る。
func (c *Coordinator) Load(d Draft) {
	c.edit()
	d.Location.Touched, d.CheckIn.Touched, d.CheckOut.Touched, d.Guests.Touched = false, false, false, false
	d.Guests.Value = max(d.Guests.Value, 0)
	c.draft = d.validate(c.currentTime())
}

// Reset は下書きを空にして入力中に戻す。
func (c *Coordinator) Reset() {
	c.draft = Draft{}
	c.state = StateEditing
}

// Draft は下書きのコピーを返す。
func (c *Coordinator) Draft() Draft {
	return c.draft
}

// State は現在の状態を返す。
func (c *Coordinator) State() State {
	return c.state
}

// FieldError は操作済みの項目の検証エラーコードを返す。
// 未操作またはエラーなしの場合は空文字列。
func (c *Coordinator) FieldError(name string) string {
	switch name {
	case FieldLocation:
		return c.draft.Location.VisibleErr()
	case FieldCheckIn:
		return c.draft.CheckIn.VisibleErr()
	case FieldCheckOut:
		return c.draft.CheckOut.VisibleErr()
	case FieldGuests:
		return c.draft.Guests.VisibleErr()
	default:
		return ""
	}
}

// ResolveLocation は下書きの地点を候補から完全一致で解決する。
func (c *Coordinator) ResolveLocation(candidates []model.Position) (model.Position, error) {
	return ResolveLocation(c.draft.Location.Value, candidates)
}

// Commit は現在の下書きを確定する。
// すべての項目を操作済みにし、成功時は StateCommitted、失敗時は StateRejected に遷移する。
// 確定結果のストアへの反映は呼び出し側が行う。
func (c *Coordinator) Commit(candidates []model.Position) (Result, error) {
	c.state = StateValidating
	now := c.currentTime()

	c.draft = c.draft.touchAll().validate(now)
	res, err := CommitDraft(c.draft, candidates, now)
	if err != nil {
		c.state = StateRejected
		return Result{}, err
	}
	c.state = StateCommitted
	return res, nil
}
