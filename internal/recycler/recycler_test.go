package recycler

import (
	"sync"
	"testing"
)

type item struct {
	n    int
	tags []string
}

func newItem() *item       { return &item{} }
func resetItem(it *item)   { it.n = 0; it.tags = it.tags[:0] }
func isZero(it *item) bool { return it.n == 0 && len(it.tags) == 0 }

func TestQueueing_ReleaseThenAcquireReturnsSameResetInstance(t *testing.T) {
	r, err := New(Config{Strategy: StrategyQueue, Capacity: 4}, newItem, resetItem)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	a := r.Acquire()
	a.n = 42
	a.tags = append(a.tags, "x", "y")
	r.Release(a)

	b := r.Acquire()
	if b != a {
		t.Fatal("expected the released instance back")
	}
	if !isZero(b) {
		t.Fatalf("instance not reset: %+v", b)
	}
}

func TestQueueing_ReleaseIsIdempotentlySafe(t *testing.T) {
	r, _ := New(Config{Strategy: StrategyQueue, Capacity: 1}, newItem, resetItem)
	a := r.Acquire()
	b := r.Acquire()
	r.Release(a)
	// Full: b is dropped, not queued twice.
	r.Release(b)
	if got := r.Acquire(); got != a {
		t.Fatal("expected first released instance")
	}
	if got := r.Acquire(); got == a || got == b {
		t.Fatal("expected a fresh instance once the queue is drained")
	}
}

func TestQueueing_ConcurrentAcquireNeverSharesInstance(t *testing.T) {
	r, _ := New(Config{Strategy: StrategyQueue, Capacity: 8}, newItem, resetItem)
	var (
		mu    sync.Mutex
		inUse = map[*item]bool{}
		wg    sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				it := r.Acquire()
				mu.Lock()
				if inUse[it] {
					mu.Unlock()
					t.Error("instance handed out twice")
					return
				}
				inUse[it] = true
				mu.Unlock()

				mu.Lock()
				delete(inUse, it)
				mu.Unlock()
				r.Release(it)
			}
		}()
	}
	wg.Wait()
}

func TestDummy_AlwaysAllocates(t *testing.T) {
	r, _ := New(Config{Strategy: StrategyNone}, newItem, resetItem)
	a := r.Acquire()
	r.Release(a)
	if r.Acquire() == a {
		t.Fatal("dummy recycler reused an instance")
	}
}

func TestPool_ResetsOnRelease(t *testing.T) {
	r, _ := New(Config{Strategy: StrategyPool}, newItem, resetItem)
	a := r.Acquire()
	a.n = 7
	r.Release(a)
	if a.n != 0 {
		t.Fatal("pool release did not reset the instance")
	}
	if !isZero(r.Acquire()) {
		t.Fatal("pool handed out a dirty instance")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cases := []Config{
		{Strategy: StrategyQueue, Capacity: 0},
		{Strategy: StrategyQueue, Capacity: -3},
		{Strategy: "threadlocal"},
	}
	for _, c := range cases {
		if _, err := New(c, newItem, resetItem); err == nil {
			t.Fatalf("%+v: expected error", c)
		}
	}
	if _, err := New[*item](Config{}, nil, nil); err == nil {
		t.Fatal("expected error for nil factory")
	}
}

func TestParseConfig(t *testing.T) {
	cases := []struct {
		in   string
		want Config
	}{
		{"", Config{Strategy: StrategyQueue, Capacity: DefaultCapacity}},
		{"queue", Config{Strategy: StrategyQueue, Capacity: DefaultCapacity}},
		{"queue:capacity=64", Config{Strategy: StrategyQueue, Capacity: 64}},
		{"POOL", Config{Strategy: StrategyPool}},
		{"none", Config{Strategy: StrategyNone}},
	}
	for _, c := range cases {
		got, err := ParseConfig(c.in)
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("%q: got %+v want %+v", c.in, got, c.want)
		}
	}
	for _, bad := range []string{"queue:size=3", "queue:capacity=x"} {
		if _, err := ParseConfig(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
