package xlog4

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Event is a fluent builder (Builder pattern) for a single log entry.
// API: logger.Info().Ctx(ctx).Str("from", ...).Dur("took", d).Msg("state changed")
//
// A nil *Event is a disabled entry; every method accepts it.
type Event struct {
	l      *Logger
	ctx    context.Context
	level  Level
	marker *Marker
	err    error
	fields []Field
	msg    FieldsMessage
}

var eventPool = sync.Pool{
	New: func() any { return &Event{fields: make([]Field, 0, 8)} },
}

func getEvent(l *Logger, level Level) *Event {
	ev := eventPool.Get().(*Event)
	ev.l = l
	ev.level = level
	ev.fields = append(ev.fields[:0], l.baseFields...)
	return ev
}

func (e *Event) putBack() {
	clear(e.fields)
	// allow GC of large backing arrays by capping
	if cap(e.fields) > 128 {
		e.fields = make([]Field, 0, 8)
	}
	e.fields = e.fields[:0]
	e.l, e.ctx, e.marker, e.err = nil, nil, nil, nil
	e.level = 0
	e.msg = FieldsMessage{}
	eventPool.Put(e)
}

// Ctx sets the context carrying thread info, context data and stack.
func (e *Event) Ctx(ctx context.Context) *Event {
	if e != nil {
		e.ctx = ctx
	}
	return e
}

func (e *Event) Marker(m *Marker) *Event {
	if e != nil {
		e.marker = m
	}
	return e
}

// Field builders (zerolog-style)

func (e *Event) Str(k, v string) *Event { return e.add(Str(k, v)) }

func (e *Event) Int(k string, v int) *Event { return e.add(Int(k, v)) }

func (e *Event) Int64(k string, v int64) *Event { return e.add(Int64(k, v)) }

func (e *Event) Uint64(k string, v uint64) *Event { return e.add(Uint64(k, v)) }

func (e *Event) Float64(k string, v float64) *Event { return e.add(Float64(k, v)) }

func (e *Event) Bool(k string, v bool) *Event { return e.add(Bool(k, v)) }

func (e *Event) Dur(k string, v time.Duration) *Event { return e.add(Dur(k, v)) }

func (e *Event) Time(k string, v time.Time) *Event { return e.add(Time(k, v)) }

func (e *Event) Bytes(k string, v []byte) *Event { return e.add(Bytes(k, v)) }

func (e *Event) Any(k string, v any) *Event { return e.add(Any(k, v)) }

func (e *Event) Fields(fs ...Field) *Event {
	if e != nil {
		e.fields = append(e.fields, fs...)
	}
	return e
}

// Err records err as the event's thrown error.
func (e *Event) Err(err error) *Event {
	if e != nil && err != nil {
		e.err = err
	}
	return e
}

func (e *Event) add(f Field) *Event {
	if e != nil {
		e.fields = append(e.fields, f)
	}
	return e
}

// Msg terminates the builder and emits the event.
func (e *Event) Msg(msg string) {
	if e == nil {
		return
	}
	e.msg.Text = msg
	e.msg.Fields = e.fields
	e.msg.Thrown = e.err
	_ = e.l.log(e.ctx, e.level, e.marker, &e.msg)
	e.putBack()
}

// Msgf formats with fmt.Sprintf.
func (e *Event) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}

// Send emits the event with an empty message.
func (e *Event) Send() { e.Msg("") }
