package store

import (
	"sync"
	"testing"
	"time"
)

type pair struct {
	A, B int
}

func TestValue_GetSet(t *testing.T) {
	v := NewValue(pair{A: 1, B: 1})
	if got := v.Get(); got != (pair{1, 1}) {
		t.Errorf("Get = %+v, want {1 1}", got)
	}

	v.Set(pair{A: 2, B: 2})
	if got := v.Get(); got != (pair{2, 2}) {
		t.Errorf("Get = %+v, want {2 2}", got)
	}
}

func TestValue_SubscribeAndCancel(t *testing.T) {
	v := NewValue(0)

	var got []int
	cancel := v.Subscribe(func(n int) { got = append(got, n) })

	v.Set(1)
	v.Update(func(n int) int { return n + 10 })
	cancel()
	v.Set(99)

	if len(got) != 2 || got[0] != 1 || got[1] != 11 {
		t.Errorf("通知された値 = %v, want [1 11]", got)
	}
}

func TestValue_SubscriberMayReadValue(t *testing.T) {
	v := NewValue("a")
	var seen string
	v.Subscribe(func(string) { seen = v.Get() })

	v.Set("b")
	if seen != "b" {
		t.Errorf("購読者から読んだ値 = %q, want b", seen)
	}
}

// 並行な書き込み中も、読み手は常に一方の書き込みの完全な値を観測する。
func TestValue_ReadersNeverObservePartialWrite(t *testing.T) {
	v := NewValue(pair{})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				n := w*100000 + i
				v.Set(pair{A: n, B: n})
			}
		}(w)
	}

	for i := 0; i < 10000; i++ {
		if p := v.Get(); p.A != p.B {
			close(stop)
			wg.Wait()
			t.Fatalf("部分的に更新された値を観測した: %+v", p)
		}
	}
	close(stop)
	wg.Wait()
}

func TestRegistry_GetOrCreate(t *testing.T) {
	created := 0
	r := NewRegistry(time.Minute, func(key string) *pair {
		created++
		return &pair{}
	})

	a, isNew := r.GetOrCreate("x")
	if !isNew {
		t.Error("初回の GetOrCreate で isNew = false")
	}
	b, isNew := r.GetOrCreate("x")
	if isNew || a != b {
		t.Error("2回目の GetOrCreate で別の値が返された")
	}
	if created != 1 {
		t.Errorf("生成回数 = %d, want 1", created)
	}
}

func TestRegistry_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Minute, func(string) int { return 1 })
	r.now = func() time.Time { return now }

	r.GetOrCreate("a")
	r.GetOrCreate("b")

	now = now.Add(30 * time.Second)
	r.GetOrCreate("b") // b の最終アクセスを更新

	now = now.Add(45 * time.Second)
	if _, ok := r.Lookup("a"); ok {
		t.Error("期限切れの a が Lookup で返された")
	}
	if _, ok := r.Lookup("b"); !ok {
		t.Error("期限内の b が Lookup で返されなかった")
	}

	if n := r.Cleanup(); n != 1 {
		t.Errorf("Cleanup の削除件数 = %d, want 1", n)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Delete("b")
	if r.Len() != 0 {
		t.Errorf("Delete 後の Len = %d, want 0", r.Len())
	}
}

func TestRegistry_Touch(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created := 0
	r := NewRegistry(time.Minute, func(string) int { created++; return created })
	r.now = func() time.Time { return now }

	if _, ok := r.Touch("a"); ok || r.Len() != 0 {
		t.Fatal("未登録のキーで Touch が値を生成した")
	}

	r.GetOrCreate("a")
	now = now.Add(45 * time.Second)
	if v, ok := r.Touch("a"); !ok || v != 1 {
		t.Fatalf("Touch = %d, %v, want 1, true", v, ok)
	}

	// Touch で最終アクセスが更新されているため、登録から1分を過ぎても期限内
	now = now.Add(45 * time.Second)
	if _, ok := r.Lookup("a"); !ok {
		t.Error("Touch 後の a が期限切れになった")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := r.Touch("a"); ok {
		t.Error("期限切れの a が Touch で返された")
	}
	if created != 1 {
		t.Errorf("生成回数 = %d, want 1", created)
	}
}
