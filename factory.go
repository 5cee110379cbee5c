package xlog4

import (
	"context"
	"runtime"
	"strings"

	"github.com/trickstertwo/xclock"

	"github.com/trickstertwo/xlog4/internal/recycler"
	"github.com/trickstertwo/xlog4/status"
)

// eventFactory hands out LogEvents for one LoggerContext. A nil clock reads
// xclock's process default at each call.
type eventFactory struct {
	rec   recycler.Recycler[*LogEvent]
	clock xclock.Clock
}

func newLogEvent() *LogEvent { return &LogEvent{} }

func newEventFactory(cfg recycler.Config, clock xclock.Clock, st *status.Logger) *eventFactory {
	rec, err := recycler.New[*LogEvent](cfg, newLogEvent, (*LogEvent).Reset)
	if err != nil {
		st.Debug().Err(err).Str("recycler", string(cfg.Strategy)).
			Msg("event recycler unavailable; allocating per event")
		rec = recycler.NewDummy(newLogEvent)
	}
	return &eventFactory{rec: rec, clock: clock}
}

// acquire returns an event owned by the caller. A nested logging call gets a
// fresh instance so it never shares one with the call it interrupted.
func (f *eventFactory) acquire(ctx context.Context) *LogEvent {
	if Depth(ctx) > 1 {
		return newLogEvent()
	}
	ev := f.rec.Acquire()
	ev.reusable = true
	return ev
}

// release returns a pooled event. Non-pooled events are left to the GC.
func (f *eventFactory) release(ev *LogEvent) {
	if ev == nil || !ev.reusable {
		return
	}
	f.rec.Release(ev)
}

// fill populates ev for one logging call.
func (f *eventFactory) fill(ctx context.Context, ev *LogEvent, name string, level Level, msg Message, m *Marker) {
	ev.LoggerName = name
	ev.Level = level
	ev.Message = msg
	ev.Marker = m
	if f.clock != nil {
		ev.Instant = f.clock.Now()
	} else {
		ev.Instant = xclock.Now()
	}
	ev.Thread = ThreadFrom(ctx)
	ev.ContextData = ContextDataFrom(ctx)
	ev.ContextStack = ContextStackFrom(ctx)
	if msg != nil {
		ev.Thrown = msg.Throwable()
	}
}

const packagePrefix = "github.com/trickstertwo/xlog4."

// captureLocation returns the first caller outside this package.
func captureLocation() *Location {
	var pcs [24]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !strings.HasPrefix(fr.Function, packagePrefix) {
			return &Location{Function: fr.Function, File: fr.File, Line: fr.Line}
		}
		if !more {
			return nil
		}
	}
}
