// Package filter provides the stock xlog4.Filter implementations. Each one
// returns OnMatch when its condition holds and OnMismatch otherwise.
package filter

import "github.com/trickstertwo/xlog4"

// Outcome pairs the results returned on match and mismatch.
type Outcome struct {
	OnMatch    xlog4.Result
	OnMismatch xlog4.Result
}

// DefaultOutcome lets matching events through to later checks and denies the
// rest.
var DefaultOutcome = Outcome{OnMatch: xlog4.Neutral, OnMismatch: xlog4.Deny}

// ParseOutcome reads result names; empty names keep DefaultOutcome's values.
func ParseOutcome(onMatch, onMismatch string) (Outcome, error) {
	m, err := xlog4.ParseResult(onMatch, DefaultOutcome.OnMatch)
	if err != nil {
		return Outcome{}, err
	}
	mm, err := xlog4.ParseResult(onMismatch, DefaultOutcome.OnMismatch)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{OnMatch: m, OnMismatch: mm}, nil
}

func (o Outcome) pick(match bool) xlog4.Result {
	if match {
		return o.OnMatch
	}
	return o.OnMismatch
}
