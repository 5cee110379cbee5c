package layout

import (
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/trickstertwo/xlog4"
)

// Text writes logfmt-style lines:
//
//	ts=... level=INFO logger=app.db thread=worker-1 msg="..." k=v ... error="..."
type Text struct {
	opts Options
}

func NewText(opts Options) *Text { return &Text{opts: opts.withDefaults()} }

func (t *Text) ContentType() string { return "text/plain; charset=utf-8" }

func (t *Text) Format(buf *Buffer, ev *xlog4.LogEvent) {
	buf.writeString("ts=")
	appendTime(buf, ev.Instant, t.opts.TimeFormat)
	buf.writeString(" level=")
	levelName(buf, ev.Level, t.opts.LevelNumbers)
	buf.writeString(" logger=")
	appendTextString(buf, ev.LoggerName)
	if ev.Thread.Name != "" {
		buf.writeString(" thread=")
		appendTextString(buf, ev.Thread.Name)
	}
	if ev.Marker != nil {
		buf.writeString(" marker=")
		appendTextString(buf, ev.Marker.Name())
	}
	buf.writeString(" msg=")
	appendTextString(buf, ev.FormattedMessage())

	for _, f := range ev.Fields() {
		buf.writeByte(' ')
		buf.writeString(f.K)
		buf.writeByte('=')
		t.value(buf, &f)
	}
	if !t.opts.NoContext {
		for _, k := range sortedKeys(ev.ContextData) {
			buf.writeString(" ctx.")
			buf.writeString(k)
			buf.writeByte('=')
			appendTextString(buf, ev.ContextData[k])
		}
		if len(ev.ContextStack) > 0 {
			buf.writeString(" stack=")
			appendTextString(buf, joinStack(ev.ContextStack))
		}
	}
	if loc := ev.Location; loc != nil {
		buf.writeString(" source=")
		appendTextString(buf, loc.File+":"+strconv.Itoa(loc.Line))
	}
	if ev.Thrown != nil {
		buf.writeString(" error=")
		appendQuoted(buf, ev.Thrown.Error())
		for _, c := range Causes(ev.Thrown) {
			buf.writeString(" cause=")
			appendQuoted(buf, c)
		}
	}
	buf.writeByte('\n')
}

func (t *Text) value(buf *Buffer, f *xlog4.Field) {
	switch f.Kind {
	case xlog4.KindString:
		appendTextString(buf, f.Str)
	case xlog4.KindInt64:
		appendInt64(buf, f.Int64)
	case xlog4.KindUint64:
		appendUint64(buf, f.Uint64)
	case xlog4.KindFloat64:
		appendFloat(buf, f.Float64, false)
	case xlog4.KindBool:
		appendBool(buf, f.Bool)
	case xlog4.KindDuration:
		buf.writeString(f.Dur.String())
	case xlog4.KindTime:
		appendTime(buf, f.Time, t.opts.TimeFormat)
	case xlog4.KindError:
		if f.Err == nil {
			buf.writeBytes(litNull)
			return
		}
		appendQuoted(buf, f.Err.Error())
	case xlog4.KindBytes:
		buf.writeString("len:")
		appendInt64(buf, int64(len(f.Bytes)))
	case xlog4.KindAny:
		if f.Any == nil {
			buf.writeBytes(litNull)
			return
		}
		if nf, ok := normalizeAny(f.Any); ok {
			t.value(buf, &nf)
			return
		}
		data, err := json.Marshal(f.Any)
		if err != nil {
			buf.writeString("unknown")
			return
		}
		appendTextString(buf, string(data))
	default:
		buf.writeBytes(litNull)
	}
}

func joinStack(s []string) string {
	n := len(s) - 1
	for _, e := range s {
		n += len(e)
	}
	b := make([]byte, 0, n)
	for i, e := range s {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, e...)
	}
	return string(b)
}
