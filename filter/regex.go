package filter

import (
	"fmt"
	"regexp"

	"github.com/trickstertwo/xlog4"
)

// Regex matches the formatted message, or the unformatted pattern when Raw
// is set. Events without a message (Enabled probes) are Neutral.
type Regex struct {
	re  *regexp.Regexp
	raw bool
	Outcome
}

func NewRegex(expr string, raw bool, o Outcome) (*Regex, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("filter: regex: %w", err)
	}
	return &Regex{re: re, raw: raw, Outcome: o}, nil
}

func (f *Regex) Filter(ev *xlog4.LogEvent) xlog4.Result {
	if ev.Message == nil {
		return xlog4.Neutral
	}
	text := ev.Message.FormattedMessage()
	if f.raw {
		text = ev.Message.Format()
	}
	return f.pick(f.re.MatchString(text))
}
