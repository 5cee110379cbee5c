package xlog4

import (
	"context"
)

// Logger is a named handle on a LoggerContext. It resolves its config on
// every call, so a reconfiguration takes effect without new handles.
type Logger struct {
	name       string
	lctx       *LoggerContext
	baseFields []Field
}

func (l *Logger) Name() string { return l.name }

// Context returns the owning LoggerContext.
func (l *Logger) Context() *LoggerContext { return l.lctx }

// Enabled reports whether an event at level would pass the context filter
// and the effective level of this logger's config.
func (l *Logger) Enabled(level Level) bool {
	c := l.lctx.Configuration()
	return l.enabled(c, c.Resolve(l.name), level, nil)
}

func (l *Logger) enabled(c *Configuration, lc *LoggerConfig, level Level, m *Marker) bool {
	if level == LevelOff || level == LevelAll {
		return false
	}
	if c.filter != nil {
		probe := LogEvent{LoggerName: l.name, Level: level, Marker: m}
		switch c.filter.Filter(&probe) {
		case Accept:
			return true
		case Deny:
			return false
		}
	}
	return level.Enabled(lc.effective)
}

// Level entry points returning fluent builders. They return nil when the
// level is disabled; every Event method is nil-safe.

func (l *Logger) Trace() *Event { return l.At(LevelTrace) }
func (l *Logger) Debug() *Event { return l.At(LevelDebug) }
func (l *Logger) Info() *Event  { return l.At(LevelInfo) }
func (l *Logger) Warn() *Event  { return l.At(LevelWarn) }
func (l *Logger) Error() *Event { return l.At(LevelError) }

// Fatal logs at FATAL. It does not exit the process.
func (l *Logger) Fatal() *Event { return l.At(LevelFatal) }

func (l *Logger) At(level Level) *Event {
	c := l.lctx.Configuration()
	if c.filter == nil && !level.Enabled(c.Resolve(l.name).effective) {
		return nil
	}
	return getEvent(l, level)
}

// With returns a child logger with bound fields.
func (l *Logger) With(fs ...Field) *Logger {
	return &Logger{
		name:       l.name,
		lctx:       l.lctx,
		baseFields: append(copyFields(nil, l.baseFields), fs...),
	}
}

// Log emits msg with fields. The error is non-nil only when a synchronous
// appender that does not ignore exceptions failed.
func (l *Logger) Log(ctx context.Context, level Level, msg string, fs ...Field) error {
	var m Message
	if len(fs) == 0 && len(l.baseFields) == 0 {
		m = SimpleMessage(msg)
	} else {
		m = &FieldsMessage{Text: msg, Fields: append(copyFields(nil, l.baseFields), fs...)}
	}
	return l.log(ctx, level, nil, m)
}

// Logp formats with {} placeholders. A trailing error argument not consumed
// by a placeholder becomes the event's thrown error.
func (l *Logger) Logp(ctx context.Context, level Level, format string, args ...any) error {
	return l.log(ctx, level, nil, NewParameterizedMessage(format, args...))
}

// LogMessage emits an arbitrary Message with an optional marker.
func (l *Logger) LogMessage(ctx context.Context, level Level, m *Marker, msg Message) error {
	return l.log(ctx, level, m, msg)
}

// LogEvent dispatches an event built by the caller. The event is borrowed:
// it is copied before any hand-off to another goroutine and is never
// recycled. Its LoggerName selects the config; an empty name uses this
// logger's.
func (l *Logger) LogEvent(ctx context.Context, ev *LogEvent) error {
	if ev == nil {
		return nil
	}
	name := ev.LoggerName
	if name == "" {
		name = l.name
		ev.LoggerName = name
	}
	c := l.lctx.pin()
	defer c.unpin()
	lc := c.Resolve(name)
	if !l.enabled(c, lc, ev.Level, ev.Marker) {
		return nil
	}
	return lc.log(enterLogging(ctx), &logRequest{event: ev}, predAll)
}

func (l *Logger) log(ctx context.Context, level Level, m *Marker, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := l.lctx.pin()
	defer c.unpin()
	lc := c.Resolve(l.name)
	if !l.enabled(c, lc, level, m) {
		return nil
	}
	ctx = enterLogging(ctx)
	f := l.lctx.factory
	ev := f.acquire(ctx)
	f.fill(ctx, ev, l.name, level, msg, m)
	if lc.includeLocation {
		ev.Location = captureLocation()
	}
	req := &logRequest{event: ev, factory: f}
	defer func() {
		if !req.handedOff {
			f.release(ev)
		}
	}()
	return lc.log(ctx, req, predAll)
}
