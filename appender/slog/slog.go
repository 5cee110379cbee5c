// Package slog bridges xlog4 and the standard log/slog API in both
// directions: Appender forwards events to a *slog.Logger, and Handler lets
// slog callers log through an xlog4 Logger.
package slog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/trickstertwo/xlog4"
)

// Appender forwards events to a slog handler. Records carry the event
// instant rather than the time of the Append call.
type Appender struct {
	xlog4.BaseAppender
	h slog.Handler
}

// Options configure the appender.
type Options struct {
	Filter xlog4.Filter
	Strict bool
}

func New(name string, l *slog.Logger, opts Options) *Appender {
	if l == nil {
		l = slog.Default()
	}
	return &Appender{BaseAppender: xlog4.NewBaseAppender(name, opts.Filter, opts.Strict), h: l.Handler()}
}

// NewJSON wires a slog JSON handler on w with the given minimum level.
func NewJSON(name string, w io.Writer, level xlog4.Level, hopts *slog.HandlerOptions) *Appender {
	return New(name, slog.New(slog.NewJSONHandler(orStdout(w), withLevel(hopts, level))), Options{})
}

// NewText wires a slog text handler on w with the given minimum level.
func NewText(name string, w io.Writer, level xlog4.Level, hopts *slog.HandlerOptions) *Appender {
	return New(name, slog.New(slog.NewTextHandler(orStdout(w), withLevel(hopts, level))), Options{})
}

func orStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

func withLevel(opts *slog.HandlerOptions, level xlog4.Level) *slog.HandlerOptions {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	o := *opts
	o.Level = toSlog(level)
	return &o
}

// The level scales coincide, so the conversion is direct.
func toSlog(l xlog4.Level) slog.Level { return slog.Level(l) }

func (a *Appender) Append(ctx context.Context, ev *xlog4.LogEvent) error {
	lvl := toSlog(ev.Level)
	if !a.h.Enabled(ctx, lvl) {
		return nil
	}
	r := slog.NewRecord(ev.Instant, lvl, ev.FormattedMessage(), 0)
	r.AddAttrs(slog.String("logger", ev.LoggerName))
	if ev.Thread.Name != "" {
		r.AddAttrs(slog.String("thread", ev.Thread.Name))
	}
	if ev.Marker != nil {
		r.AddAttrs(slog.String("marker", ev.Marker.Name()))
	}
	for _, f := range ev.Fields() {
		r.AddAttrs(toAttr(f))
	}
	if len(ev.ContextData) > 0 {
		attrs := make([]any, 0, len(ev.ContextData))
		for k, v := range ev.ContextData {
			attrs = append(attrs, slog.String(k, v))
		}
		r.AddAttrs(slog.Group("ctx", attrs...))
	}
	if ev.Thrown != nil {
		r.AddAttrs(slog.String("error", ev.Thrown.Error()))
	}
	return a.h.Handle(ctx, r)
}

func toAttr(f xlog4.Field) slog.Attr {
	switch f.Kind {
	case xlog4.KindString:
		return slog.String(f.K, f.Str)
	case xlog4.KindInt64:
		return slog.Int64(f.K, f.Int64)
	case xlog4.KindUint64:
		return slog.Uint64(f.K, f.Uint64)
	case xlog4.KindFloat64:
		return slog.Float64(f.K, f.Float64)
	case xlog4.KindBool:
		return slog.Bool(f.K, f.Bool)
	case xlog4.KindDuration:
		return slog.Duration(f.K, f.Dur)
	case xlog4.KindTime:
		return slog.Time(f.K, f.Time)
	case xlog4.KindError:
		if f.Err == nil {
			return slog.Any(f.K, nil)
		}
		return slog.String(f.K, f.Err.Error())
	case xlog4.KindBytes:
		return slog.Any(f.K, f.Bytes)
	case xlog4.KindAny:
		return slog.Any(f.K, f.Any)
	default:
		return slog.Any(f.K, nil)
	}
}

// Handler is a slog.Handler that logs through an xlog4 Logger. Groups are
// flattened into dotted keys.
type Handler struct {
	l      *xlog4.Logger
	bound  []xlog4.Field
	prefix string
}

// NewHandler returns a slog.Handler backed by l.
func NewHandler(l *xlog4.Logger) *Handler { return &Handler{l: l} }

func (h *Handler) Enabled(_ context.Context, lvl slog.Level) bool {
	return h.l.Enabled(xlog4.Level(lvl))
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	fs := make([]xlog4.Field, 0, len(h.bound)+r.NumAttrs())
	fs = append(fs, h.bound...)
	var thrown error
	r.Attrs(func(a slog.Attr) bool {
		if err, ok := a.Value.Any().(error); ok && h.prefix == "" && (a.Key == "err" || a.Key == "error") {
			thrown = err
			return true
		}
		fs = appendAttr(fs, h.prefix, a)
		return true
	})
	msg := xlog4.NewFieldsMessage(r.Message, fs...)
	msg.Thrown = thrown
	return h.l.LogMessage(ctx, xlog4.Level(r.Level), nil, msg)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := *h
	child.bound = append([]xlog4.Field(nil), h.bound...)
	for _, a := range attrs {
		child.bound = appendAttr(child.bound, h.prefix, a)
	}
	return &child
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := *h
	child.prefix = h.prefix + name + "."
	return &child
}

func appendAttr(fs []xlog4.Field, prefix string, a slog.Attr) []xlog4.Field {
	v := a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return fs
	}
	k := prefix + a.Key
	switch v.Kind() {
	case slog.KindString:
		return append(fs, xlog4.Str(k, v.String()))
	case slog.KindInt64:
		return append(fs, xlog4.Int64(k, v.Int64()))
	case slog.KindUint64:
		return append(fs, xlog4.Uint64(k, v.Uint64()))
	case slog.KindFloat64:
		return append(fs, xlog4.Float64(k, v.Float64()))
	case slog.KindBool:
		return append(fs, xlog4.Bool(k, v.Bool()))
	case slog.KindDuration:
		return append(fs, xlog4.Dur(k, v.Duration()))
	case slog.KindTime:
		return append(fs, xlog4.Time(k, v.Time()))
	case slog.KindGroup:
		gp := prefix
		if a.Key != "" {
			gp = k + "."
		}
		for _, ga := range v.Group() {
			fs = appendAttr(fs, gp, ga)
		}
		return fs
	default:
		if err, ok := v.Any().(error); ok {
			return append(fs, xlog4.Err(k, err))
		}
		return append(fs, xlog4.Any(k, v.Any()))
	}
}
