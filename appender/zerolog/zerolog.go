// Package zerolog provides an appender that forwards events to a
// rs/zerolog logger.
package zerolog

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/trickstertwo/xlog4"
)

// Appender bridges xlog4 events to zerolog.
//
//   - Fast pre-check using GetLevel() to avoid allocating zerolog.Event when
//     the level is disabled.
//   - Uses Logger.WithLevel(...) to avoid a level switch at call sites.
type Appender struct {
	xlog4.BaseAppender
	l zerolog.Logger
}

// Options configure the appender.
type Options struct {
	Filter xlog4.Filter
	Strict bool
}

func New(name string, l zerolog.Logger, opts Options) *Appender {
	return &Appender{BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict), l: l}
}

// NewWriter wraps NewLogger(w, level, console).
func NewWriter(name string, w io.Writer, level xlog4.Level, console bool) *Appender {
	return New(name, NewLogger(w, level, console), Options{})
}

// NewLogger builds a JSON zerolog logger on w at level, or a console writer
// when console is set.
func NewLogger(w io.Writer, level xlog4.Level, console bool) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(MapLevel(level))
}

func (a *Appender) Append(_ context.Context, ev *xlog4.LogEvent) error {
	zlvl := MapLevel(ev.Level)
	// Fast path: drop early if below logger's min level (no Event allocation).
	if zlvl < a.l.GetLevel() {
		return nil
	}
	e := a.l.WithLevel(zlvl)
	// Ensure RFC3339Nano precision regardless of zerolog.TimeFieldFormat defaults.
	e.Str("ts", ev.Instant.UTC().Format(time.RFC3339Nano))
	e.Str("logger", ev.LoggerName)
	if ev.Thread.Name != "" {
		e.Str("thread", ev.Thread.Name)
	}
	if ev.Marker != nil {
		e.Str("marker", ev.Marker.Name())
	}
	fs := ev.Fields()
	for i := range fs {
		appendEventField(e, &fs[i])
	}
	if len(ev.ContextData) > 0 {
		d := zerolog.Dict()
		for k, v := range ev.ContextData {
			d.Str(k, v)
		}
		e.Dict("ctx", d)
	}
	if ev.Thrown != nil {
		e.Err(ev.Thrown)
	}
	e.Msg(ev.FormattedMessage())
	return nil
}

// MapLevel converts a level to zerolog.Level. FATAL maps to Error so
// zerolog never exits the process.
func MapLevel(l xlog4.Level) zerolog.Level {
	switch {
	case l <= xlog4.LevelTrace:
		return zerolog.TraceLevel
	case l <= xlog4.LevelDebug:
		return zerolog.DebugLevel
	case l <= xlog4.LevelInfo:
		return zerolog.InfoLevel
	case l <= xlog4.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// appendEventField writes a Field to a zerolog.Event.
func appendEventField(e *zerolog.Event, f *xlog4.Field) {
	switch f.Kind {
	case xlog4.KindString:
		e.Str(f.K, f.Str)
	case xlog4.KindInt64:
		e.Int64(f.K, f.Int64)
	case xlog4.KindUint64:
		e.Uint64(f.K, f.Uint64)
	case xlog4.KindFloat64:
		e.Float64(f.K, f.Float64)
	case xlog4.KindBool:
		e.Bool(f.K, f.Bool)
	case xlog4.KindDuration:
		e.Dur(f.K, f.Dur)
	case xlog4.KindTime:
		e.Time(f.K, f.Time)
	case xlog4.KindError:
		if f.Err != nil {
			if f.K == "" || f.K == "error" {
				e.Err(f.Err)
			} else {
				e.AnErr(f.K, f.Err)
			}
		}
	case xlog4.KindBytes:
		e.Bytes(f.K, f.Bytes)
	case xlog4.KindAny:
		e.Interface(f.K, f.Any)
	default:
		// Keep a placeholder to preserve shape
		e.Interface(f.K, nil)
	}
}
