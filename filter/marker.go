package filter

import "github.com/trickstertwo/xlog4"

// Marker matches events whose marker is, or descends from, the named marker.
type Marker struct {
	marker *xlog4.Marker
	Outcome
}

func NewMarker(name string, o Outcome) *Marker {
	return &Marker{marker: xlog4.NewMarker(name), Outcome: o}
}

func (f *Marker) Filter(ev *xlog4.LogEvent) xlog4.Result {
	return f.pick(ev.Marker != nil && ev.Marker.IsInstanceOf(f.marker))
}
