package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/layout"
)

func event(level xlog4.Level, msg string) *xlog4.LogEvent {
	return &xlog4.LogEvent{
		LoggerName: "app",
		Level:      level,
		Message:    xlog4.SimpleMessage(msg),
		Instant:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	a := New("console", &buf, Options{})
	for _, m := range []string{"one", "two"} {
		if err := a.Append(context.Background(), event(xlog4.LevelInfo, m)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "msg=two") {
		t.Fatalf("output=%q", buf.String())
	}
	if s := a.Stats(); s.Written != 2 || s.LoggedErrors != 0 {
		t.Fatalf("stats=%+v", s)
	}
}

func TestLevelWriterFactoryRoutes(t *testing.T) {
	var out, errOut bytes.Buffer
	a := NewWithWriterFactory("console", &LevelWriterFactory{
		Default:     &out,
		LevelWriter: map[xlog4.Level]io.Writer{xlog4.LevelError: &errOut},
	}, Options{Layout: layout.NewJSON(layout.Options{})})

	_ = a.Append(context.Background(), event(xlog4.LevelInfo, "fine"))
	_ = a.Append(context.Background(), event(xlog4.LevelError, "bad"))
	if !strings.Contains(out.String(), `"msg":"fine"`) || strings.Contains(out.String(), "bad") {
		t.Fatalf("default writer=%q", out.String())
	}
	if !strings.Contains(errOut.String(), `"msg":"bad"`) {
		t.Fatalf("error writer=%q", errOut.String())
	}
}

func TestBufferedFlushesAtEndOfBatch(t *testing.T) {
	var buf bytes.Buffer
	a := New("console", &buf, Options{Buffered: true})
	bg := xlog4.WithBackground(context.Background())

	ev := event(xlog4.LevelInfo, "queued")
	_ = a.Append(bg, ev)
	if buf.Len() != 0 {
		t.Fatalf("buffered output written before end of batch")
	}
	ev = event(xlog4.LevelInfo, "last")
	ev.EndOfBatch = true
	_ = a.Append(bg, ev)
	if !strings.Contains(buf.String(), "msg=queued") || !strings.Contains(buf.String(), "msg=last") {
		t.Fatalf("output=%q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteErrorsAreCounted(t *testing.T) {
	a := New("console", failingWriter{}, Options{})
	if err := a.Append(context.Background(), event(xlog4.LevelWarn, "x")); err == nil {
		t.Fatalf("write error swallowed")
	}
	if s := a.Stats(); s.LoggedErrors != 1 || s.Written != 0 {
		t.Fatalf("stats=%+v", s)
	}
}
