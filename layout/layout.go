// Package layout encodes LogEvents into bytes for appenders that write
// streams: console, files, message brokers.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/trickstertwo/xlog4"
)

// Layout appends one encoded event, including any line terminator, to buf.
type Layout interface {
	Format(buf *Buffer, ev *xlog4.LogEvent)
	ContentType() string
}

// TimeEncoding controls how timestamps are written by the JSON layout.
type TimeEncoding uint8

const (
	TimeRFC3339Nano TimeEncoding = iota + 1 // default
	TimeUnixMillis                          // numeric, t.UnixMilli()
	TimeUnixNanos                           // numeric, t.UnixNano()
)

// DurationEncoding controls how time.Duration fields are written by the JSON
// layout.
type DurationEncoding uint8

const (
	DurationString DurationEncoding = iota + 1 // default, e.g. "1ms"
	DurationMillis
	DurationNanos
)

// Options tune both layouts.
type Options struct {
	// TimeFormat is a time.Format layout for the text encoder; empty means
	// RFC3339Nano.
	TimeFormat string
	Time       TimeEncoding
	Duration   DurationEncoding
	// LevelNumbers writes the numeric level instead of its name.
	LevelNumbers bool
	// NoContext omits context data and stack.
	NoContext bool
}

func (o Options) withDefaults() Options {
	if o.Time == 0 {
		o.Time = TimeRFC3339Nano
	}
	if o.Duration == 0 {
		o.Duration = DurationString
	}
	return o
}

// Parse returns the layout called name: "text" (default) or "json".
func Parse(name string, opts Options) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return NewText(opts), nil
	case "json":
		return NewJSON(opts), nil
	default:
		return nil, fmt.Errorf("layout: unknown layout %q", name)
	}
}

// Encode formats ev with l into a fresh byte slice.
func Encode(l Layout, ev *xlog4.LogEvent) []byte {
	buf := GetBuffer()
	defer PutBuffer(buf)
	l.Format(buf, ev)
	return append([]byte(nil), buf.b...)
}

const maxCauses = 16

// Causes flattens the errors wrapped by err, depth first: the Unwrap chain
// and every branch of a joined error. err itself is not included.
func Causes(err error) []string {
	var out []string
	var walk func(e error)
	walk = func(e error) {
		if len(out) >= maxCauses {
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, c := range u.Unwrap() {
				if c == nil || len(out) >= maxCauses {
					continue
				}
				out = append(out, c.Error())
				walk(c)
			}
		default:
			if c := errors.Unwrap(e); c != nil {
				out = append(out, c.Error())
				walk(c)
			}
		}
	}
	if err != nil {
		walk(err)
	}
	return out
}

func levelName(buf *Buffer, l xlog4.Level, numeric bool) {
	if numeric {
		appendInt64(buf, int64(l))
		return
	}
	buf.writeString(l.String())
}

func normalizeAny(v any) (xlog4.Field, bool) {
	switch vv := v.(type) {
	case string:
		return xlog4.Str("", vv), true
	case bool:
		return xlog4.Bool("", vv), true
	case int:
		return xlog4.Int64("", int64(vv)), true
	case int8:
		return xlog4.Int64("", int64(vv)), true
	case int16:
		return xlog4.Int64("", int64(vv)), true
	case int32:
		return xlog4.Int64("", int64(vv)), true
	case int64:
		return xlog4.Int64("", vv), true
	case uint:
		return xlog4.Uint64("", uint64(vv)), true
	case uint8:
		return xlog4.Uint64("", uint64(vv)), true
	case uint16:
		return xlog4.Uint64("", uint64(vv)), true
	case uint32:
		return xlog4.Uint64("", uint64(vv)), true
	case uint64:
		return xlog4.Uint64("", vv), true
	case float32:
		return xlog4.Float64("", float64(vv)), true
	case float64:
		return xlog4.Float64("", vv), true
	case time.Time:
		return xlog4.Time("", vv), true
	case time.Duration:
		return xlog4.Dur("", vv), true
	case []byte:
		return xlog4.Bytes("", vv), true
	case error:
		return xlog4.Err("", vv), true
	}
	return xlog4.Field{}, false
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
