package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/trickstertwo/xlog4"
	"github.com/trickstertwo/xlog4/layout"
	"github.com/trickstertwo/xlog4/status"
)

func TestNewRequiresPath(t *testing.T) {
	if _, err := New("file", Options{}); !errors.Is(err, ErrNoPath) {
		t.Fatalf("err=%v want ErrNoPath", err)
	}
}

func TestWritesThroughConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	a, err := New("file", Options{Path: path, Layout: layout.NewJSON(layout.Options{})})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cfg, err := xlog4.NewConfigurationBuilder("t").
		WithStatus(status.Nop()).
		AddAppender(a).
		Root(xlog4.LoggerSpec{Level: "INFO", Async: true, AppenderRefs: []xlog4.AppenderRef{xlog4.Ref("file")}}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lc := xlog4.NewLoggerContext(cfg, xlog4.ContextOptions{Status: status.Nop()})
	for i := 0; i < 10; i++ {
		lc.Logger("app").Info().Int("i", i).Msg("line")
	}
	if !lc.Stop(5 * time.Second) {
		t.Fatalf("drain timed out")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 10 {
		t.Fatalf("got %d lines want 10", len(lines))
	}
	if !strings.Contains(lines[9], `"i":9`) {
		t.Fatalf("last line=%s", lines[9])
	}
}

func TestRotateStartsNewFile(t *testing.T) {
	dir := t.TempDir()
	a, err := New("file", Options{Path: filepath.Join(dir, "app.log")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Stop(context.Background())

	ev := &xlog4.LogEvent{LoggerName: "app", Level: xlog4.LevelInfo, Message: xlog4.SimpleMessage("before")}
	if err := a.Append(context.Background(), ev); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := a.Rotate(); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("files after rotate=%d want 2", len(entries))
	}
}
