package xlog4_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/appender/list"
	"github.com/trickstertwo/xlog4/status"
)

// lifecycleStub counts Start and Stop calls.
type lifecycleStub struct {
	*list.Appender
	starts, stops atomic.Int32
}

func (s *lifecycleStub) Start() error              { s.starts.Add(1); return nil }
func (s *lifecycleStub) Stop(context.Context) error { s.stops.Add(1); return nil }

func TestSetLevelTakesEffectAndNotifies(t *testing.T) {
	app := list.New("list", list.Options{})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		AddAppender(app).
		Root(xlog4.LoggerSpec{Level: "WARN", AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("list")}}))

	var changes []xlog4.ConfigChange
	lc.AddObserver(xlog4.ObserverFunc(func(c xlog4.ConfigChange) { changes = append(changes, c) }))

	log := lc.Logger("svc.db")
	log.Info().Msg("before")
	if err := lc.SetLevel("svc", xlog4.LevelDebug); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	log.Debug().Msg("after")
	lc.Logger("other").Debug().Msg("other")

	if got := app.Messages(); len(got) != 1 || got[0] != "after" {
		t.Fatalf("messages=%v want [after]", got)
	}
	if len(changes) != 1 || changes[0].Current != lc.Configuration() || changes[0].Previous == changes[0].Current {
		t.Fatalf("observer saw %d changes", len(changes))
	}
	if lvl, ok := lc.Configuration().Root().Level(); !ok || lvl != xlog4.LevelWarn {
		t.Fatalf("root level changed to %v", lvl)
	}
}

func TestSetLevelKeepsSharedAppendersRunning(t *testing.T) {
	stub := &lifecycleStub{Appender: list.New("stub", list.Options{})}
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		AddAppender(stub).
		Root(xlog4.LoggerSpec{Level: "INFO", AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("stub")}}))

	if got := stub.starts.Load(); got != 1 {
		t.Fatalf("starts=%d want 1", got)
	}
	for _, lvl := range []xlog4.Level{xlog4.LevelDebug, xlog4.LevelError, xlog4.LevelTrace} {
		if err := lc.SetLevel("", lvl); err != nil {
			t.Fatalf("SetLevel: %v", err)
		}
	}
	if s, p := stub.starts.Load(), stub.stops.Load(); s != 1 || p != 0 {
		t.Fatalf("after reconfiguration starts=%d stops=%d want 1/0", s, p)
	}
	lc.Stop(time.Second)
	if got := stub.stops.Load(); got != 1 {
		t.Fatalf("stops=%d want 1", got)
	}
	if !lc.Stop(time.Second) {
		t.Fatalf("second Stop must report success")
	}
	if got := stub.stops.Load(); got != 1 {
		t.Fatalf("second Stop stopped appenders again")
	}
}

func TestReconfigureSwapsAppenders(t *testing.T) {
	oldApp := &lifecycleStub{Appender: list.New("old", list.Options{})}
	newApp := &lifecycleStub{Appender: list.New("new", list.Options{})}
	lc := start(t, xlog4.NewConfigurationBuilder("first").
		AddAppender(oldApp).
		Root(xlog4.LoggerSpec{Level: "INFO", AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("old")}}))

	next, err := xlog4.NewConfigurationBuilder("second").
		WithStatus(status.Nop()).
		WithAsync(xlog4.AsyncOptions{Capacity: 16}).
		AddAppender(newApp).
		Root(xlog4.LoggerSpec{Level: "INFO", Async: true, AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("new")}}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := lc.Reconfigure(next); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if oldApp.stops.Load() != 1 || newApp.starts.Load() != 1 {
		t.Fatalf("old stops=%d new starts=%d", oldApp.stops.Load(), newApp.starts.Load())
	}
	lc.Logger("app").Info().Msg("x")
	if !newApp.WaitFor(1, 2*time.Second) {
		t.Fatalf("new configuration did not deliver")
	}
	if oldApp.Len() != 0 {
		t.Fatalf("old configuration still receives events")
	}
	if lc.Configuration().Name() != "second" {
		t.Fatalf("active configuration=%q", lc.Configuration().Name())
	}
}

func TestSetLevelDuringDispatchKeepsEvent(t *testing.T) {
	var lc *xlog4.LoggerContext
	swapped := make(chan error, 1)
	syncApp := list.New("sync", list.Options{Hook: func(_ context.Context, ev *xlog4.LogEvent) error {
		if ev.FormattedMessage() == "inflight" {
			go func() { swapped <- lc.SetLevel("other", xlog4.LevelDebug) }()
			select {
			case err := <-swapped:
				swapped <- err
			case <-time.After(2 * time.Second):
			}
		}
		return nil
	}})
	asyncApp := list.New("async", list.Options{})
	lc = start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: 16}).
		AddAppender(syncApp).
		AddAppender(asyncApp).
		Root(xlog4.LoggerSpec{Level: "INFO", AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("sync")}}).
		AddLogger(xlog4.LoggerSpec{Name: "app", Level: "INFO", Async: true, AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("async")}}))

	first := lc.Configuration()
	lc.Logger("app").Info().Msg("inflight")

	select {
	case err := <-swapped:
		if err != nil {
			t.Fatalf("SetLevel: %v", err)
		}
	default:
		t.Fatalf("SetLevel blocked on the dispatch that triggered it")
	}
	if lc.Configuration() == first {
		t.Fatalf("configuration was not swapped")
	}
	if !asyncApp.WaitFor(1, 2*time.Second) {
		t.Fatalf("event lost across the swap: sync=%d async=%d", syncApp.Len(), asyncApp.Len())
	}
	if syncApp.Len() != 1 || asyncApp.Messages()[0] != "inflight" {
		t.Fatalf("sync=%v async=%v", syncApp.Messages(), asyncApp.Messages())
	}
}

func TestReconfigureAfterStop(t *testing.T) {
	lc := xlog4.NewLoggerContext(nil, xlog4.ContextOptions{Status: status.Nop()})
	if lc.Name() == "" {
		t.Fatalf("context name must default to a generated id")
	}
	if lc.Logger("x").Enabled(xlog4.LevelWarn) {
		t.Fatalf("empty configuration must disable WARN")
	}
	if lc.Logger("x") != lc.Logger("x") {
		t.Fatalf("Logger must cache handles")
	}
	if err := lc.Reconfigure(nil); !errors.Is(err, xlog4.ErrNilConfiguration) {
		t.Fatalf("Reconfigure(nil)=%v", err)
	}
	lc.Stop(time.Second)
	cfg, _ := xlog4.NewConfigurationBuilder("late").WithStatus(status.Nop()).Build()
	if err := lc.Reconfigure(cfg); !errors.Is(err, xlog4.ErrContextStopped) {
		t.Fatalf("Reconfigure after Stop=%v", err)
	}
	if err := lc.SetLevel("", xlog4.LevelInfo); !errors.Is(err, xlog4.ErrContextStopped) {
		t.Fatalf("SetLevel after Stop=%v", err)
	}
}

func TestLogEventBorrowsCallerEvent(t *testing.T) {
	app := list.New("list", list.Options{})
	lc := start(t, xlog4.NewConfigurationBuilder("t").
		WithAsync(xlog4.AsyncOptions{Capacity: 8}).
		AddAppender(app).
		Root(asyncRoot("list")))

	ev := &xlog4.LogEvent{Level: xlog4.LevelInfo, Message: xlog4.SimpleMessage("first")}
	if err := lc.Logger("bridge").LogEvent(context.Background(), ev); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	ev.Message = xlog4.SimpleMessage("mutated")
	if !app.WaitFor(1, 2*time.Second) {
		t.Fatalf("event not delivered")
	}
	got := app.Events()[0]
	if got.FormattedMessage() != "first" || got.LoggerName != "bridge" {
		t.Fatalf("delivered %q from %q", got.FormattedMessage(), got.LoggerName)
	}
}
