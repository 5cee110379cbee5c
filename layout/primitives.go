package layout

import (
	"encoding/base64"
	"math"
	"strconv"
	"time"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

var (
	litTrue  = []byte("true")
	litFalse = []byte("false")
	litNull  = []byte("null")
)

func appendInt64(buf *Buffer, v int64) { buf.b = strconv.AppendInt(buf.b, v, 10) }

func appendUint64(buf *Buffer, v uint64) { buf.b = strconv.AppendUint(buf.b, v, 10) }

func appendBool(buf *Buffer, v bool) {
	if v {
		buf.writeBytes(litTrue)
	} else {
		buf.writeBytes(litFalse)
	}
}

// appendFloat writes f; non-finite values become null when json is set.
func appendFloat(buf *Buffer, f float64, json bool) {
	switch {
	case math.IsNaN(f):
		if json {
			buf.writeBytes(litNull)
		} else {
			buf.writeString("NaN")
		}
	case math.IsInf(f, 0):
		if json {
			buf.writeBytes(litNull)
		} else if f > 0 {
			buf.writeString("+Inf")
		} else {
			buf.writeString("-Inf")
		}
	default:
		buf.b = strconv.AppendFloat(buf.b, f, 'g', -1, 64)
	}
}

func appendTime(buf *Buffer, t time.Time, format string) {
	if format == "" {
		format = time.RFC3339Nano
	}
	buf.b = t.AppendFormat(buf.b, format)
}

func appendBase64(buf *Buffer, data []byte) {
	buf.writeByte('"')
	n := base64.StdEncoding.EncodedLen(len(data))
	buf.grow(n + 1)
	start := len(buf.b)
	buf.b = buf.b[:start+n]
	base64.StdEncoding.Encode(buf.b[start:], data)
	buf.writeByte('"')
}

func appendQuoted(buf *Buffer, s string) {
	buf.writeByte('"')
	appendEscaped(buf, s)
	buf.writeByte('"')
}

// appendEscaped writes s with JSON string escaping.
func appendEscaped(buf *Buffer, s string) {
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c >= 0x20 && c != '\\' && c != '"' && c < utf8.RuneSelf {
			i++
			continue
		}
		if c < utf8.RuneSelf {
			buf.writeString(s[start:i])
			switch c {
			case '\\', '"':
				buf.writeByte('\\')
				buf.writeByte(c)
			case '\n':
				buf.writeString(`\n`)
			case '\r':
				buf.writeString(`\r`)
			case '\t':
				buf.writeString(`\t`)
			default:
				buf.writeString(`\u00`)
				buf.writeByte(hexDigits[c>>4])
				buf.writeByte(hexDigits[c&0xF])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.writeString(s[start:i])
			buf.writeString(`\ufffd`)
			i++
			start = i
			continue
		}
		if r == '\u2028' || r == '\u2029' {
			buf.writeString(s[start:i])
			buf.writeString(`\u202`)
			buf.writeByte(hexDigits[r&0xF])
			i += size
			start = i
			continue
		}
		i += size
	}
	buf.writeString(s[start:])
}

// needsQuote reports whether a text value must be quoted to stay one token.
func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c == '"' || c == '=' || c == '\\' || c >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

func appendTextString(buf *Buffer, s string) {
	if needsQuote(s) {
		appendQuoted(buf, s)
		return
	}
	buf.writeString(s)
}
