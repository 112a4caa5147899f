package position

import (
	"sync"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// Debouncer は一定時間内の連続した呼び出しをまとめ、最後の1回だけを実行する。
// 最後の Trigger から window が経過した時点で、その呼び出しの関数が実行される。
// 予約した関数の中から Flush や Stop を呼んではならない。
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	idle    *sync.Cond // running が0になったことを通知する
	timer   *time.Timer
	pending func()
	gen     uint64
	running int
}

// NewDebouncer は Debouncer の新しいインスタンスを生成する。
func NewDebouncer(window time.Duration) *Debouncer {
	d := &Debouncer{window: window}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Trigger は fn の実行を予約する。既に予約済みの関数は破棄される。
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if gen != d.gen || d.pending == nil {
			d.mu.Unlock()
			return
		}
		f := d.pending
		d.pending = nil
		d.running++
		d.mu.Unlock()
		d.run(f)
	})
}

// run は f を実行し、実行中の数を減らす。mu を保持せずに呼ぶ。
func (d *Debouncer) run(f func()) {
	defer func() {
		d.mu.Lock()
		d.running--
		if d.running == 0 {
			d.idle.Broadcast()
		}
		d.mu.Unlock()
	}()
	f()
}

// cancelLocked は予約を破棄し、実行中の関数の終了を待つ。mu を保持して呼ぶ。
func (d *Debouncer) cancelLocked() func() {
	f := d.pending
	d.pending = nil
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	for d.running > 0 {
		d.idle.Wait()
	}
	return f
}

// Flush は予約済みの関数があれば待たずに実行する。実行した場合は true を返す。
// タイマーで開始済みの関数があれば、その終了を待ってから実行する。
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	f := d.cancelLocked()
	if f == nil {
		d.mu.Unlock()
		return false
	}
	d.running++
	d.mu.Unlock()

	d.run(f)
	return true
}

// Stop は予約済みの関数を実行せずに破棄する。
// 戻った時点で、開始済みの関数はすべて終了している。
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Suggestion はクエリとその絞り込み結果。
type Suggestion struct {
	Query   string
	Matches []model.Position
}

// Suggester はキー入力ごとのクエリを Debouncer でまとめ、最後のクエリに対してだけ
// Filter を実行して結果を deliver に渡す。
type Suggester struct {
	debouncer  *Debouncer
	candidates func() []model.Position
	opts       Options
	deliver    func(Suggestion)
}

// NewSuggester は Suggester の新しいインスタンスを生成する。
// candidates は実行時点の候補リストを返す関数で、地点リストの再読み込みに追従できる。
func NewSuggester(candidates func() []model.Position, opts Options, window time.Duration, deliver func(Suggestion)) *Suggester {
	return &Suggester{
		debouncer:  NewDebouncer(window),
		candidates: candidates,
		opts:       opts,
		deliver:    deliver,
	}
}

// Query はクエリを受け付ける。
func (s *Suggester) Query(q string) {
	s.debouncer.Trigger(func() {
		s.deliver(Suggestion{Query: q, Matches: Filter(s.candidates(), q, s.opts)})
	})
}

// Flush は保留中のクエリがあれば即座に結果を配信する。
func (s *Suggester) Flush() bool {
	return s.debouncer.Flush()
}

// Stop は保留中のクエリを破棄し、配信中の結果があれば配信の完了を待つ。
func (s *Suggester) Stop() {
	s.debouncer.Stop()
}
