package filter

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/trickstertwo/xlog4"
)

// LoggerName matches logger names against glob patterns where '.' separates
// segments: "app.*" matches "app.db" but not "app.db.pool"; "app.**" matches
// both.
type LoggerName struct {
	patterns []string
	globs    []glob.Glob
	Outcome
}

func NewLoggerName(patterns []string, o Outcome) (*LoggerName, error) {
	f := &LoggerName{patterns: append([]string(nil), patterns...), Outcome: o}
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("filter: logger pattern %q: %w", p, err)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

func (f *LoggerName) Patterns() []string { return f.patterns }

func (f *LoggerName) Filter(ev *xlog4.LogEvent) xlog4.Result {
	for _, g := range f.globs {
		if g.Match(ev.LoggerName) {
			return f.OnMatch
		}
	}
	return f.OnMismatch
}
