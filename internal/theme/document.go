package theme

import "sync"

// AttributeName is the presentation attribute the resolved theme is written to.
const AttributeName = "data-theme"

// Applier publishes a resolved theme to the rendering layer.
type Applier interface {
	Apply(Resolved)
}

// Document is the rendering layer's single theme attribute. Screens read it
// on every render; only a Manager writes it.
type Document struct {
	term string

	mu      sync.RWMutex
	theme   Resolved
	applied int
}

// NewDocument creates an unapplied document for a terminal type.
func NewDocument(term string) *Document {
	return &Document{term: term}
}

func (d *Document) Apply(r Resolved) {
	d.mu.Lock()
	d.theme = r
	d.applied++
	d.mu.Unlock()
}

// Attribute returns the current attribute value and whether one was ever applied.
func (d *Document) Attribute() (Resolved, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.theme, d.applied > 0
}

// Applications counts Apply calls.
func (d *Document) Applications() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.applied
}

// Bundle returns the styles for the current attribute, light before the
// first Apply.
func (d *Document) Bundle() Bundle {
	r, ok := d.Attribute()
	if !ok {
		r = ResolvedLight
	}
	return BundleFor(r, d.term)
}
