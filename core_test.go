package xlog4

import (
	"context"
	"errors"
	"testing"

	"github.com/trickstertwo/xlog4/internal/recycler"
	"github.com/trickstertwo/xlog4/status"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"info": LevelInfo, " WARNING ": LevelWarn, "off": LevelOff, "all": LevelAll, "-2": Level(-2),
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("err=%v want ErrUnknownLevel", err)
	}
}

func TestCustomLevel(t *testing.T) {
	notice := ForName("notice", 2)
	if again := ForName("NOTICE", 7); again != notice {
		t.Fatalf("second registration returned %v", again)
	}
	if notice.String() != "NOTICE" {
		t.Fatalf("String()=%q", notice.String())
	}
	if !notice.Enabled(LevelInfo) || notice.Enabled(LevelWarn) {
		t.Fatalf("custom level ordering broken")
	}
	if got, _ := ParseLevel(levelText(Level(3))); got != Level(3) {
		t.Fatalf("unregistered level did not round-trip: %v", got)
	}
}

func TestSentinelsNeverEnabled(t *testing.T) {
	for _, threshold := range []Level{LevelAll, LevelTrace, LevelOff} {
		if LevelOff.Enabled(threshold) || LevelAll.Enabled(threshold) {
			t.Fatalf("sentinel enabled at threshold %v", threshold)
		}
	}
	if LevelFatal.Enabled(LevelOff) {
		t.Fatalf("OFF threshold must disable everything")
	}
}

func TestParameterizedMessage(t *testing.T) {
	boom := errors.New("boom")
	cases := []struct {
		format string
		args   []any
		want   string
		thrown error
	}{
		{"a {} b {}", []any{1, "x"}, "a 1 b x", nil},
		{"escaped \\{} {}", []any{"v"}, "escaped {} v", nil},
		{"missing {} {}", []any{"only"}, "missing only {}", nil},
		{"err {}", []any{boom}, "err boom", nil},
		{"trailing {}", []any{"x", boom}, "trailing x", boom},
	}
	for _, tc := range cases {
		m := NewParameterizedMessage(tc.format, tc.args...)
		if got := m.FormattedMessage(); got != tc.want {
			t.Fatalf("%q: got %q want %q", tc.format, got, tc.want)
		}
		if !errors.Is(m.Throwable(), tc.thrown) {
			t.Fatalf("%q: thrown=%v want %v", tc.format, m.Throwable(), tc.thrown)
		}
	}
}

func TestFieldsMessageMementoIsDetached(t *testing.T) {
	m := &FieldsMessage{Text: "t", Fields: []Field{Str("k", "v")}}
	cp := freeze(m).(*FieldsMessage)
	m.Fields[0].Str = "changed"
	m.Text = "changed"
	if cp.Text != "t" || cp.Fields[0].Str != "v" {
		t.Fatalf("memento shares storage: %+v", cp)
	}
	if s := SimpleMessage("x"); freeze(s) != Message(s) {
		t.Fatalf("immutable message was copied")
	}
}

func TestMapMessageSorted(t *testing.T) {
	got := NewMapMessage(map[string]string{"b": "2", "a": "1"}).FormattedMessage()
	if got != `a="1" b="2"` {
		t.Fatalf("got %q", got)
	}
}

func TestContextDataIsCopyOnWrite(t *testing.T) {
	base := WithContextData(context.Background(), "a", "1")
	child := WithContextData(base, "b", "2")
	if _, ok := ContextDataFrom(base)["b"]; ok {
		t.Fatalf("child write leaked into parent")
	}
	if len(ContextDataFrom(WithoutContextData(child, "a"))) != 1 {
		t.Fatalf("WithoutContextData did not remove the key")
	}

	s := PushContextStack(PushContextStack(context.Background(), "outer"), "inner")
	popped, top := PopContextStack(s)
	if top != "inner" || len(ContextStackFrom(popped)) != 1 || len(ContextStackFrom(s)) != 2 {
		t.Fatalf("stack pop broken: top=%q", top)
	}
	again := PushContextStack(popped, "other")
	if ContextStackFrom(s)[1] != "inner" || ContextStackFrom(again)[1] != "other" {
		t.Fatalf("push after pop overwrote a shared stack")
	}
}

func TestDepthCountsNestedCalls(t *testing.T) {
	ctx := context.Background()
	if Depth(ctx) != 0 {
		t.Fatalf("depth of empty ctx")
	}
	ctx = enterLogging(enterLogging(ctx))
	if Depth(ctx) != 2 {
		t.Fatalf("depth=%d want 2", Depth(ctx))
	}
}

func TestPolicies(t *testing.T) {
	bg := WithBackground(context.Background())
	fg := context.Background()

	if r := (DefaultPolicy{}).Route(fg, LevelInfo); r != RouteEnqueue {
		t.Fatalf("default on producer=%v", r)
	}
	if r := (DefaultPolicy{}).Route(bg, LevelInfo); r != RouteSynchronous {
		t.Fatalf("default on consumer=%v", r)
	}

	p := NewDiscardPolicy(LevelWarn, RouteSynchronous)
	if r := p.Route(fg, LevelInfo); r != RouteDiscard {
		t.Fatalf("INFO below WARN threshold=%v", r)
	}
	if r := p.Route(fg, LevelWarn); r != RouteSynchronous {
		t.Fatalf("WARN at threshold=%v", r)
	}
	if p.DiscardCount() != 1 {
		t.Fatalf("discard count=%d", p.DiscardCount())
	}
	if r := NewDiscardPolicy(LevelOff, 0).Route(fg, LevelFatal); r != RouteDiscard {
		t.Fatalf("OFF threshold must discard FATAL, got %v", r)
	}

	got, err := ParsePolicy("discard", "", "")
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if dp := got.(*DiscardPolicy); dp.Threshold() != LevelWarn {
		t.Fatalf("default discard threshold=%v", dp.Threshold())
	}
	if _, err := ParsePolicy("bogus", "", ""); err == nil {
		t.Fatalf("unknown policy accepted")
	}
}

func TestFactoryRecyclesEvents(t *testing.T) {
	f := newEventFactory(recycler.Config{Strategy: recycler.StrategyQueue, Capacity: 4}, nil, status.Nop())
	ctx := enterLogging(context.Background())

	ev := f.acquire(ctx)
	if !ev.Reusable() {
		t.Fatalf("pooled event not marked reusable")
	}
	f.fill(WithThread(ctx, ThreadInfo{Name: "w"}), ev, "app", LevelInfo, SimpleMessage("x"), nil)
	f.release(ev)

	again := f.acquire(ctx)
	if again != ev {
		t.Fatalf("recycler did not return the released instance")
	}
	if again.LoggerName != "" || again.Thread.Name != "" || again.Message != nil {
		t.Fatalf("released event not reset: %+v", again)
	}

	nested := f.acquire(enterLogging(ctx))
	if nested.Reusable() || nested == again {
		t.Fatalf("nested call must get a fresh event")
	}
}

func TestFactoryFallsBackOnBadRecycler(t *testing.T) {
	f := newEventFactory(recycler.Config{Strategy: "bogus"}, nil, status.Nop())
	a, b := f.acquire(context.Background()), f.acquire(context.Background())
	if a == b {
		t.Fatalf("dummy recycler returned the same instance twice")
	}
}

func TestAsyncDelegateRejectsBadOptions(t *testing.T) {
	env := newDispatchEnv(status.Nop(), nil)
	if _, err := newAsyncDelegate(AsyncOptions{Queue: "lifo"}, env); err == nil {
		t.Fatalf("unknown queue accepted")
	}
	if _, err := newAsyncDelegate(AsyncOptions{Wait: "nap"}, env); err == nil {
		t.Fatalf("unknown wait strategy accepted")
	}
	d, err := newAsyncDelegate(AsyncOptions{Capacity: 3}, env)
	if err != nil {
		t.Fatalf("newAsyncDelegate: %v", err)
	}
	if d.Cap() != 3 || d.RemainingCapacity() != 3 {
		t.Fatalf("cap=%d remaining=%d", d.Cap(), d.RemainingCapacity())
	}
	if !d.stop(0) {
		t.Fatalf("stopping an idle delegate must succeed")
	}
}
