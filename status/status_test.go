package status

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogger_WritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.WarnLevel)

	l.Debug().Msg("hidden")
	l.Warn().Str("appender", "file").Msg("write failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["level"] != "warn" || m["message"] != "write failed" || m["appender"] != "file" {
		t.Fatalf("unexpected entry: %v", m)
	}
	if m["component"] != "xlog4" {
		t.Fatalf("component missing: %v", m)
	}
}

func TestLogger_WarnOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.DebugLevel)
	for i := 0; i < 3; i++ {
		l.WarnOnce("shutdown").Msg("ignoring log event after shutdown")
	}
	l.WarnOnce("other").Msg("other")
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", n, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":      zerolog.WarnLevel,
		"DEBUG": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"error": zerolog.ErrorLevel,
		"off":   zerolog.Disabled,
		"bogus": zerolog.WarnLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}
