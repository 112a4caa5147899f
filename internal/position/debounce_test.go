package position

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

func TestDebouncer_RunsOnlyLastCall(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	done := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		v := i
		d.Trigger(func() {
			calls.Add(1)
			done <- v
		})
	}

	select {
	case v := <-done:
		if v != 3 {
			t.Errorf("実行された呼び出し = %d, want 3", v)
		}
	case <-time.After(time.Second):
		t.Fatal("デバウンスされた関数が実行されなかった")
	}

	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("実行回数 = %d, want 1", n)
	}
}

func TestDebouncer_Flush(t *testing.T) {
	d := NewDebouncer(time.Hour)

	ran := false
	d.Trigger(func() { ran = true })

	if !d.Flush() {
		t.Fatal("Flush = false, want true")
	}
	if !ran {
		t.Error("Flush で関数が実行されなかった")
	}
	if d.Flush() {
		t.Error("保留がない状態で Flush = true, want false")
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()

	time.Sleep(40 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("Stop 後の実行回数 = %d, want 0", n)
	}
}

func TestSuggester_DeliversLastQuery(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Suggestion
	)
	delivered := make(chan struct{}, 4)

	s := NewSuggester(
		func() []model.Position { return testPositions() },
		Options{},
		20*time.Millisecond,
		func(sg Suggestion) {
			mu.Lock()
			got = append(got, sg)
			mu.Unlock()
			delivered <- struct{}{}
		},
	)

	for _, q := range []string{"d", "da", "da l", "da lat"} {
		s.Query(q)
	}

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("候補が配信されなかった")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("配信回数 = %d, want 1", len(got))
	}
	if got[0].Query != "da lat" {
		t.Errorf("Query = %q, want %q", got[0].Query, "da lat")
	}
	if len(got[0].Matches) != 1 || got[0].Matches[0].ID != 1 {
		t.Errorf("Matches = %v, want [1]", ids(got[0].Matches))
	}
}

// startBlocked はタイマーで開始され、release が閉じられるまで終わらない関数を予約する。
func startBlocked(t *testing.T, d *Debouncer) (finished *atomic.Bool, release chan struct{}) {
	t.Helper()
	started := make(chan struct{})
	release = make(chan struct{})
	finished = &atomic.Bool{}
	d.Trigger(func() {
		close(started)
		<-release
		finished.Store(true)
	})
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("デバウンスされた関数が開始されなかった")
	}
	return finished, release
}

func TestDebouncer_StopWaitsForRunningCall(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	finished, release := startBlocked(t, d)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("実行中の関数が終わる前に Stop が戻った")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop が戻らない")
	}
	if !finished.Load() {
		t.Error("Stop が戻った時点で関数が終了していない")
	}
}

func TestDebouncer_FlushRunsAfterRunningCall(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	finished, release := startBlocked(t, d)

	// 開始済みの関数より後に予約した関数は、その終了後に実行される
	d.window = time.Hour
	var order []string
	var mu sync.Mutex
	d.Trigger(func() {
		mu.Lock()
		defer mu.Unlock()
		if !finished.Load() {
			order = append(order, "overlapped")
		}
		order = append(order, "flushed")
	})

	flushed := make(chan bool)
	go func() { flushed <- d.Flush() }()
	time.Sleep(30 * time.Millisecond)
	close(release)

	select {
	case ok := <-flushed:
		if !ok {
			t.Error("Flush = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("Flush が戻らない")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 || order[0] != "flushed" {
		t.Errorf("order = %v, want [flushed]", order)
	}
}
