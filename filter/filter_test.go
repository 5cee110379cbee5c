package filter

import (
	"testing"

	"github.com/trickstertwo/xlog4"
)

func ev(name string, level xlog4.Level, msg string) *xlog4.LogEvent {
	return &xlog4.LogEvent{LoggerName: name, Level: level, Message: xlog4.NewSimpleMessage(msg)}
}

func TestThreshold(t *testing.T) {
	f := NewThreshold(xlog4.LevelWarn, DefaultOutcome)
	if got := f.Filter(ev("a", xlog4.LevelInfo, "x")); got != xlog4.Deny {
		t.Fatalf("INFO: got %v want DENY", got)
	}
	if got := f.Filter(ev("a", xlog4.LevelError, "x")); got != xlog4.Neutral {
		t.Fatalf("ERROR: got %v want NEUTRAL", got)
	}
}

func TestBurstLimitsOnlyLowLevels(t *testing.T) {
	f := NewBurst(xlog4.LevelInfo, 0.0001, 2, DefaultOutcome)
	for i := 0; i < 2; i++ {
		if got := f.Filter(ev("a", xlog4.LevelInfo, "x")); got != xlog4.Neutral {
			t.Fatalf("event %d: got %v want NEUTRAL", i, got)
		}
	}
	if got := f.Filter(ev("a", xlog4.LevelInfo, "x")); got != xlog4.Deny {
		t.Fatalf("third event: got %v want DENY", got)
	}
	if got := f.Filter(ev("a", xlog4.LevelError, "x")); got != xlog4.Neutral {
		t.Fatalf("ERROR must not be limited, got %v", got)
	}
	probe := &xlog4.LogEvent{LoggerName: "a", Level: xlog4.LevelInfo}
	if got := f.Filter(probe); got != xlog4.Neutral {
		t.Fatalf("probe: got %v", got)
	}
}

func TestMarkerMatchesDescendants(t *testing.T) {
	sql := xlog4.NewMarker("SQL")
	update := xlog4.NewMarker("SQL_UPDATE", sql)
	f := NewMarker("SQL", Outcome{OnMatch: xlog4.Accept, OnMismatch: xlog4.Neutral})

	e := ev("a", xlog4.LevelInfo, "x")
	if got := f.Filter(e); got != xlog4.Neutral {
		t.Fatalf("no marker: got %v", got)
	}
	e.Marker = update
	if got := f.Filter(e); got != xlog4.Accept {
		t.Fatalf("child marker: got %v", got)
	}
}

func TestRegex(t *testing.T) {
	f, err := NewRegex(`^user \d+ logged in$`, false, DefaultOutcome)
	if err != nil {
		t.Fatalf("NewRegex: %v", err)
	}
	m := &xlog4.LogEvent{Level: xlog4.LevelInfo, Message: xlog4.NewParameterizedMessage("user {} logged in", 42)}
	if got := f.Filter(m); got != xlog4.Neutral {
		t.Fatalf("formatted match: got %v", got)
	}
	raw, _ := NewRegex(`\{\}`, true, Outcome{OnMatch: xlog4.Deny, OnMismatch: xlog4.Neutral})
	if got := raw.Filter(m); got != xlog4.Deny {
		t.Fatalf("raw match: got %v", got)
	}
	if _, err := NewRegex("(", false, DefaultOutcome); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestLoggerNameGlob(t *testing.T) {
	f, err := NewLoggerName([]string{"app.*", "lib.**"}, Outcome{OnMatch: xlog4.Deny, OnMismatch: xlog4.Neutral})
	if err != nil {
		t.Fatalf("NewLoggerName: %v", err)
	}
	cases := map[string]xlog4.Result{
		"app.db":      xlog4.Deny,
		"app.db.pool": xlog4.Neutral,
		"lib.x.y":     xlog4.Deny,
		"other":       xlog4.Neutral,
	}
	for name, want := range cases {
		if got := f.Filter(ev(name, xlog4.LevelInfo, "")); got != want {
			t.Errorf("%s: got %v want %v", name, got, want)
		}
	}
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome("accept", "")
	if err != nil || o.OnMatch != xlog4.Accept || o.OnMismatch != xlog4.Deny {
		t.Fatalf("ParseOutcome: %+v %v", o, err)
	}
	if _, err := ParseOutcome("maybe", ""); err == nil {
		t.Fatalf("expected error")
	}
}
