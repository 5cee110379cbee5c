package xlog4

import (
	"fmt"
	"strings"
)

// Result is a filter decision.
type Result uint8

const (
	// Neutral defers to the next filter or check.
	Neutral Result = iota
	Accept
	Deny
)

func (r Result) String() string {
	switch r {
	case Accept:
		return "ACCEPT"
	case Deny:
		return "DENY"
	default:
		return "NEUTRAL"
	}
}

// ParseResult reads ACCEPT, NEUTRAL or DENY. An empty string is def.
func ParseResult(s string, def Result) (Result, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "ACCEPT":
		return Accept, nil
	case "NEUTRAL":
		return Neutral, nil
	case "DENY":
		return Deny, nil
	default:
		return Neutral, fmt.Errorf("xlog4: unknown filter result %q", s)
	}
}

// Filter decides whether an event proceeds. When called for Logger.Enabled
// the event carries only logger name, level and marker; Message is nil.
type Filter interface {
	Filter(ev *LogEvent) Result
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ev *LogEvent) Result

func (f FilterFunc) Filter(ev *LogEvent) Result { return f(ev) }

// CompositeFilter runs filters in order; the first Accept or Deny wins.
type CompositeFilter []Filter

func (c CompositeFilter) Filter(ev *LogEvent) Result {
	for _, f := range c {
		if f == nil {
			continue
		}
		if r := f.Filter(ev); r != Neutral {
			return r
		}
	}
	return Neutral
}

// Filters combines filters, dropping nils. It returns nil when none remain.
func Filters(fs ...Filter) Filter {
	out := make(CompositeFilter, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			out = append(out, f)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func isDenied(f Filter, ev *LogEvent) bool {
	return f != nil && f.Filter(ev) == Deny
}
