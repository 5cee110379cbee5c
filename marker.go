package xlog4

// Marker tags events for filtering. Markers form a DAG through their parents.
type Marker struct {
	name    string
	parents []*Marker
}

func NewMarker(name string, parents ...*Marker) *Marker {
	ps := make([]*Marker, 0, len(parents))
	for _, p := range parents {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &Marker{name: name, parents: ps}
}

func (m *Marker) Name() string {
	if m == nil {
		return ""
	}
	return m.name
}

func (m *Marker) Parents() []*Marker { return m.parents }

// IsInstanceOf reports whether m is other or descends from it. Markers are
// compared by name.
func (m *Marker) IsInstanceOf(other *Marker) bool {
	if m == nil || other == nil {
		return false
	}
	return m.isInstanceOf(other.name, 0)
}

func (m *Marker) isInstanceOf(name string, depth int) bool {
	if m.name == name {
		return true
	}
	// Parents are fixed at construction so cycles cannot occur; the bound
	// guards against pathological fan-in.
	if depth > 64 {
		return false
	}
	for _, p := range m.parents {
		if p.isInstanceOf(name, depth+1) {
			return true
		}
	}
	return false
}
