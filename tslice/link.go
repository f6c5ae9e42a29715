package tslice

import "adrcore/identifier"

// Loader is the minimal capability tslice variants need from the store
// to resolve a Link; implemented by store.Store. Kept here (rather than
// importing the store package, which would cycle) since the Link
// abstraction caches a shared pointer and needs only a Load method.
type Loader interface {
	Load(u identifier.UUID) (*Object, error)
}

// Link is the (uuid, optional cached object pointer) pair: the sole
// reference form between objects.
type Link struct {
	UUID   identifier.UUID
	cached *Object
}

// NewLink wraps a bare UUID reference.
func NewLink(u identifier.UUID) Link { return Link{UUID: u} }

// IsNil reports an absent link.
func (l Link) IsNil() bool { return identifier.IsNil(l.UUID) }

// Load populates the cache by fetching through store, a no-op if
// already cached or the link is nil.
func (l *Link) Load(store Loader) error {
	if l.cached != nil || l.IsNil() {
		return nil
	}
	obj, err := store.Load(l.UUID)
	if err != nil {
		return err
	}
	l.cached = obj
	return nil
}

// Cached returns the cached object, if Load has been called.
func (l Link) Cached() *Object { return l.cached }

// TopoContext is what a variant's Recompute needs from the recompute
// engine: terrain elevation lookups and the evaluation "now" for
// special-date/timetable folding. Kept minimal and here (rather than in
// recompute, which would cycle back) for the same reason as Loader.
type TopoContext interface {
	ElevationFt(lat, lon float64) (int, bool)
	CancelRequested() bool
}

// Linkable is implemented by variant Bodies that hold Links needing
// resolution.
type Linkable interface {
	Link(store Loader) error
}

// Recomputable is implemented by variant Bodies that derive state from
// their linked dependencies.
type Recomputable interface {
	Recompute(ctx TopoContext) error
}
