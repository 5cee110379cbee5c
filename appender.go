package xlog4

import (
	"context"
	"fmt"
	"time"
)

// Appender is the sink Strategy. Append is called synchronously, on the
// producer goroutine for synchronous configs and on the consumer goroutine
// for async ones. Implementations must be safe for concurrent use.
type Appender interface {
	Name() string
	Append(ctx context.Context, ev *LogEvent) error
}

// Lifecycle is implemented by appenders that hold resources. Start runs when
// the first configuration referencing the appender starts; Stop runs when the
// last one stops.
type Lifecycle interface {
	Start() error
	Stop(ctx context.Context) error
}

// ExceptionSuppressor lets an appender choose whether its errors reach
// synchronous callers. Appenders that do not implement it ignore errors.
type ExceptionSuppressor interface {
	IgnoreExceptions() bool
}

// Filterable exposes an appender-level filter, consulted after the logger
// config's and the appender reference's filters.
type Filterable interface {
	Filter() Filter
}

// BaseAppender carries the common appender attributes and can be embedded.
type BaseAppender struct {
	name   string
	filter Filter
	strict bool
}

// NewBaseAppender returns a base with the given name and filter. strict
// makes errors propagate to synchronous callers instead of being reported to
// the status logger.
func NewBaseAppender(name string, filter Filter, strict bool) BaseAppender {
	return BaseAppender{name: name, filter: filter, strict: strict}
}

func (b *BaseAppender) Name() string           { return b.name }
func (b *BaseAppender) Filter() Filter         { return b.filter }
func (b *BaseAppender) IgnoreExceptions() bool { return !b.strict }

// AppenderError wraps a failure raised by an appender.
type AppenderError struct {
	Appender string
	Err      error
}

func (e *AppenderError) Error() string {
	return fmt.Sprintf("xlog4: appender %q: %v", e.Appender, e.Err)
}

func (e *AppenderError) Unwrap() error { return e.Err }

// AppenderRef attaches an appender to a logger config, optionally narrowed
// by a level and a filter.
type AppenderRef struct {
	Ref    string
	Level  string
	Filter Filter
}

// appenderControl is one resolved AppenderRef.
type appenderControl struct {
	name     string
	appender Appender
	level    Level
	hasLevel bool
	filter   Filter
	own      Filter
	ignore   bool
}

func newAppenderControl(a Appender, level Level, hasLevel bool, f Filter) *appenderControl {
	ac := &appenderControl{
		name:     a.Name(),
		appender: a,
		level:    level,
		hasLevel: hasLevel,
		filter:   f,
		ignore:   true,
	}
	if fa, ok := a.(Filterable); ok {
		ac.own = fa.Filter()
	}
	if es, ok := a.(ExceptionSuppressor); ok {
		ac.ignore = es.IgnoreExceptions()
	}
	return ac
}

// call delivers ev to the appender. Errors are returned only when the
// appender does not ignore them and the call runs on the producer.
func (ac *appenderControl) call(ctx context.Context, ev *LogEvent, rt *dispatchEnv) (err error) {
	if ac.hasLevel && !ev.Level.Enabled(ac.level) {
		return nil
	}
	if isDenied(ac.filter, ev) || isDenied(ac.own, ev) {
		return nil
	}
	if appenderActive(ctx, ac) {
		rt.status.Error().Str("appender", ac.name).Str("logger", ev.LoggerName).
			Msg("recursive call to appender ignored")
		return nil
	}

	measure := rt.measure
	var start time.Time
	if measure {
		start = time.Now()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		var dur time.Duration
		if measure {
			dur = time.Since(start)
		}
		rt.metrics.Appended(ac.name, ev.Level, dur, err)
		if err == nil {
			return
		}
		err = &AppenderError{Appender: ac.name, Err: err}
		if ac.ignore || InBackground(ctx) {
			rt.status.Error().Err(err).Str("appender", ac.name).Msg("appender failed")
			err = nil
		}
	}()
	return ac.appender.Append(enterAppender(ctx, ac), ev)
}
