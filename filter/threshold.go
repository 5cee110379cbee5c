package filter

import "github.com/trickstertwo/xlog4"

// Threshold matches events at or above a level.
type Threshold struct {
	Level xlog4.Level
	Outcome
}

func NewThreshold(level xlog4.Level, o Outcome) *Threshold {
	return &Threshold{Level: level, Outcome: o}
}

func (f *Threshold) Filter(ev *xlog4.LogEvent) xlog4.Result {
	return f.pick(ev.Level >= f.Level)
}
