package zap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/trickstertwo/xlog4"
)

func TestEmitsTSAndFields(t *testing.T) {
	var buf bytes.Buffer
	a := NewJSON("zap", &buf, xlog4.LevelDebug, false)

	at := time.Date(2024, 12, 31, 23, 59, 59, 123456789, time.UTC)
	ev := &xlog4.LogEvent{
		LoggerName: "svc.api",
		Level:      xlog4.LevelInfo,
		Instant:    at,
		Message: xlog4.NewFieldsMessage("state changed",
			xlog4.Str("from", "old"),
			xlog4.Int("count", 2),
			xlog4.Bool("ok", true),
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
	if m["level"] != "info" || m["message"] != "state changed" || m["logger"] != "svc.api" {
		t.Fatalf("basic fields mismatch: %v", m)
	}
	if m["ts"] != at.Format(time.RFC3339Nano) {
		t.Fatalf("ts mismatch: %v", m["ts"])
	}
	if m["from"] != "old" || m["count"] != float64(2) || m["ok"] != true || m["dur"] != "1ms" {
		t.Fatalf("fields mismatch: %v", m)
	}
	if m["error"] != "boom" || m["ctx.req"] != "r-1" {
		t.Fatalf("error/context mismatch: %v", m)
	}
}

func TestLevelMappingAndFiltering(t *testing.T) {
	cases := map[xlog4.Level]zapcore.Level{
		xlog4.LevelTrace: zapcore.DebugLevel,
		xlog4.LevelDebug: zapcore.DebugLevel,
		xlog4.LevelInfo:  zapcore.InfoLevel,
		xlog4.LevelWarn:  zapcore.WarnLevel,
		xlog4.LevelError: zapcore.ErrorLevel,
		xlog4.LevelFatal: zapcore.ErrorLevel,
	}
	for in, want := range cases {
		if got := ToZapLevel(in); got != want {
			t.Fatalf("ToZapLevel(%v)=%v want %v", in, got, want)
		}
	}

	var buf bytes.Buffer
	a := NewJSON("zap", &buf, xlog4.LevelWarn, false)
	_ = a.Append(context.Background(), &xlog4.LogEvent{Level: xlog4.LevelInfo, Message: xlog4.SimpleMessage("x")})
	if buf.Len() != 0 {
		t.Fatalf("zap core level not applied: %s", buf.String())
	}
}
