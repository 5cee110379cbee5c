package failover

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

func event(msg string) *xlog4.LogEvent {
	return &xlog4.LogEvent{LoggerName: "app", Level: xlog4.LevelError, Message: xlog4.SimpleMessage(msg)}
}

func TestFallsBackAndOpensBreaker(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	var calls atomic.Int32
	primary := list.New("primary", list.Options{Hook: func(context.Context, *xlog4.LogEvent) error {
		calls.Add(1)
		if failing.Load() {
			return errors.New("unreachable")
		}
		return nil
	}})
	backup := list.New("backup", list.Options{})
	a, err := New("failover", primary, []xlog4.Appender{backup}, Options{
		FailureThreshold: 2,
		RetryInterval:    50 * time.Millisecond,
		Status:           status.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := a.Append(context.Background(), event("x")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if backup.Len() != 5 || primary.Len() != 0 {
		t.Fatalf("backup=%d primary=%d", backup.Len(), primary.Len())
	}
	if calls.Load() != 2 {
		t.Fatalf("primary called %d times; breaker should open after 2", calls.Load())
	}
	if a.State() != "open" {
		t.Fatalf("state=%s", a.State())
	}

	failing.Store(false)
	time.Sleep(80 * time.Millisecond)
	if err := a.Append(context.Background(), event("recovered")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if primary.Len() != 1 || a.State() != "closed" {
		t.Fatalf("primary=%d state=%s", primary.Len(), a.State())
	}
}

func TestAllFailed(t *testing.T) {
	fail := func(context.Context, *xlog4.LogEvent) error { return errors.New("down") }
	a, _ := New("failover",
		list.New("p", list.Options{Hook: fail}),
		[]xlog4.Appender{list.New("s", list.Options{Hook: fail})},
		Options{Status: status.Nop()})
	err := a.Append(context.Background(), event("x"))
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err=%v want ErrAllFailed", err)
	}
	var ae *xlog4.AppenderError
	if !errors.As(err, &ae) {
		t.Fatalf("no AppenderError in %v", err)
	}
	if _, err := New("x", nil, nil, Options{}); !errors.Is(err, ErrNoPrimary) {
		t.Fatalf("err=%v", err)
	}
}
