package filter

import (
	"golang.org/x/time/rate"

	"github.com/trickstertwo/xlog4"
)

// Burst rate-limits events at or below Level. Events within the budget get
// OnMatch, the excess gets OnMismatch. More severe events are never limited
// and return Neutral.
type Burst struct {
	level   xlog4.Level
	limiter *rate.Limiter
	Outcome
}

// NewBurst allows ratePerSec events per second on average with bursts of up
// to maxBurst.
func NewBurst(level xlog4.Level, ratePerSec float64, maxBurst int, o Outcome) *Burst {
	if maxBurst <= 0 {
		maxBurst = 1
	}
	return &Burst{level: level, limiter: rate.NewLimiter(rate.Limit(ratePerSec), maxBurst), Outcome: o}
}

func (f *Burst) Filter(ev *xlog4.LogEvent) xlog4.Result {
	if ev.Level > f.level {
		return xlog4.Neutral
	}
	// Logger.Enabled probes carry no message and must not spend tokens.
	if ev.Message == nil {
		return xlog4.Neutral
	}
	return f.pick(f.limiter.Allow())
}

// Available reports the tokens left in the bucket.
func (f *Burst) Available() float64 { return f.limiter.Tokens() }
