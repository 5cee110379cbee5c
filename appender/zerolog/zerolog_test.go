package zerolog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/trickstertwo/xlog4"
)

func TestEmitsTSAndFields(t *testing.T) {
	var buf bytes.Buffer
	a := New("zerolog", zerolog.New(&buf), Options{})

	at := time.Date(2024, 12, 31, 23, 59, 59, 123456789, time.UTC)
	ev := &xlog4.LogEvent{
		LoggerName: "svc",
		Level:      xlog4.LevelInfo,
		Instant:    at,
		Message: xlog4.NewFieldsMessage("state changed",
			xlog4.Str("from", "old"),
			xlog4.Int("count", 2),
			xlog4.Dur("dur", time.Millisecond),
		),
		Thrown:      errors.New("boom"),
		ContextData: map[string]string{"req": "r-1"},
	}
	if err := a.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("json unmarshal: %v; line=%s", err, buf.String())
	}
	// "level" and "message" are zerolog defaults
	if m["level"] != "info" || m["message"] != "state changed" || m["logger"] != "svc" {
		t.Fatalf("basic fields mismatch: %v", m)
	}
	if m["ts"] != at.Format(time.RFC3339Nano) {
		t.Fatalf("ts mismatch: %v", m["ts"])
	}
	// JSON unmarshals numbers as float64
	if m["from"] != "old" || m["count"] != float64(2) || m["dur"] != float64(1) {
		t.Fatalf("fields mismatch: %v", m)
	}
	if m["error"] != "boom" {
		t.Fatalf("error mismatch: %v", m["error"])
	}
	if ctx, _ := m["ctx"].(map[string]any); ctx["req"] != "r-1" {
		t.Fatalf("ctx mismatch: %v", m["ctx"])
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	a := NewWriter("zerolog", &buf, xlog4.LevelWarn, false)
	_ = a.Append(context.Background(), &xlog4.LogEvent{Level: xlog4.LevelInfo, Message: xlog4.SimpleMessage("x")})
	if buf.Len() != 0 {
		t.Fatalf("INFO written by a WARN logger")
	}
	_ = a.Append(context.Background(), &xlog4.LogEvent{Level: xlog4.LevelFatal, Message: xlog4.SimpleMessage("x")})
	if !bytes.Contains(buf.Bytes(), []byte(`"level":"error"`)) {
		t.Fatalf("FATAL not mapped to error: %s", buf.String())
	}
}
