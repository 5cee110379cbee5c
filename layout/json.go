package layout

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/trickstertwo/xlog4"
)

// RawJSON is spliced into JSON output verbatim. The content MUST be valid
// JSON.
type RawJSON []byte

// JSON writes one object per line. Message fields are top-level keys.
type JSON struct {
	opts Options
}

func NewJSON(opts Options) *JSON { return &JSON{opts: opts.withDefaults()} }

func (j *JSON) ContentType() string { return "application/json" }

func (j *JSON) Format(buf *Buffer, ev *xlog4.LogEvent) {
	buf.writeByte('{')
	buf.writeString(`"ts":`)
	j.time(buf, ev.Instant)
	buf.writeString(`,"level":`)
	if j.opts.LevelNumbers {
		appendInt64(buf, int64(ev.Level))
	} else {
		appendQuoted(buf, ev.Level.String())
	}
	buf.writeString(`,"logger":`)
	appendQuoted(buf, ev.LoggerName)
	if th := ev.Thread; th.Name != "" || th.ID != 0 {
		buf.writeString(`,"thread":`)
		appendQuoted(buf, th.Name)
		buf.writeString(`,"threadId":`)
		appendInt64(buf, th.ID)
	}
	if ev.Marker != nil {
		buf.writeString(`,"marker":`)
		appendQuoted(buf, ev.Marker.Name())
	}
	buf.writeString(`,"msg":`)
	appendQuoted(buf, ev.FormattedMessage())

	for _, f := range ev.Fields() {
		buf.writeByte(',')
		appendQuoted(buf, f.K)
		buf.writeByte(':')
		j.value(buf, &f)
	}
	if !j.opts.NoContext {
		if len(ev.ContextData) > 0 {
			keys := sortedKeys(ev.ContextData)
			buf.writeString(`,"context":{`)
			for i, k := range keys {
				if i > 0 {
					buf.writeByte(',')
				}
				appendQuoted(buf, k)
				buf.writeByte(':')
				appendQuoted(buf, ev.ContextData[k])
			}
			buf.writeByte('}')
		}
		if len(ev.ContextStack) > 0 {
			buf.writeString(`,"stack":`)
			appendStrings(buf, ev.ContextStack)
		}
	}
	if loc := ev.Location; loc != nil {
		buf.writeString(`,"source":{"function":`)
		appendQuoted(buf, loc.Function)
		buf.writeString(`,"file":`)
		appendQuoted(buf, loc.File)
		buf.writeString(`,"line":`)
		appendInt64(buf, int64(loc.Line))
		buf.writeByte('}')
	}
	if ev.Thrown != nil {
		buf.writeString(`,"error":`)
		appendQuoted(buf, ev.Thrown.Error())
		if causes := Causes(ev.Thrown); len(causes) > 0 {
			buf.writeString(`,"causes":`)
			appendStrings(buf, causes)
		}
	}
	if ev.EndOfBatch {
		buf.writeString(`,"endOfBatch":true`)
	}
	buf.writeString("}\n")
}

func appendStrings(buf *Buffer, ss []string) {
	buf.writeByte('[')
	for i, s := range ss {
		if i > 0 {
			buf.writeByte(',')
		}
		appendQuoted(buf, s)
	}
	buf.writeByte(']')
}

func (j *JSON) time(buf *Buffer, t time.Time) {
	switch j.opts.Time {
	case TimeUnixMillis:
		appendInt64(buf, t.UnixMilli())
	case TimeUnixNanos:
		appendInt64(buf, t.UnixNano())
	default:
		buf.writeByte('"')
		appendTime(buf, t, time.RFC3339Nano)
		buf.writeByte('"')
	}
}

func (j *JSON) value(buf *Buffer, f *xlog4.Field) {
	switch f.Kind {
	case xlog4.KindString:
		appendQuoted(buf, f.Str)
	case xlog4.KindInt64:
		appendInt64(buf, f.Int64)
	case xlog4.KindUint64:
		appendUint64(buf, f.Uint64)
	case xlog4.KindFloat64:
		appendFloat(buf, f.Float64, true)
	case xlog4.KindBool:
		appendBool(buf, f.Bool)
	case xlog4.KindDuration:
		switch j.opts.Duration {
		case DurationMillis:
			appendInt64(buf, int64(f.Dur/time.Millisecond))
		case DurationNanos:
			appendInt64(buf, f.Dur.Nanoseconds())
		default:
			appendQuoted(buf, f.Dur.String())
		}
	case xlog4.KindTime:
		j.time(buf, f.Time)
	case xlog4.KindError:
		if f.Err == nil {
			buf.writeBytes(litNull)
			return
		}
		appendQuoted(buf, f.Err.Error())
	case xlog4.KindBytes:
		appendBase64(buf, f.Bytes)
	case xlog4.KindAny:
		j.any(buf, f.Any)
	default:
		buf.writeBytes(litNull)
	}
}

func (j *JSON) any(buf *Buffer, v any) {
	switch vv := v.(type) {
	case nil:
		buf.writeBytes(litNull)
		return
	case RawJSON:
		if len(vv) == 0 {
			buf.writeString(`""`)
		} else {
			buf.writeBytes(vv)
		}
		return
	case json.Marshaler:
		if data, err := vv.MarshalJSON(); err == nil {
			buf.writeBytes(data)
		} else {
			buf.writeBytes(litNull)
		}
		return
	}
	if nf, ok := normalizeAny(v); ok {
		j.value(buf, &nf)
		return
	}
	if data, err := json.Marshal(v); err == nil {
		buf.writeBytes(data)
	} else {
		buf.writeBytes(litNull)
	}
}
