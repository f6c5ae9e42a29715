package geo

// Rect is an axis-aligned bounding box over Points, longitude-wrap aware:
// a rect that crosses the antimeridian has SW.LonUnits > NE.LonUnits.
type Rect struct {
	SW, NE Point
}

// Add grows r to enclose p, returning the new rect. The zero Rect is
// treated as empty and is replaced outright by the first Add.
func (r Rect) Add(p Point) Rect {
	if r.SW == (Point{}) && r.NE == (Point{}) {
		return Rect{SW: p, NE: p}
	}
	sw, ne := r.SW, r.NE
	if p.LatUnits < sw.LatUnits {
		sw.LatUnits = p.LatUnits
	}
	if p.LatUnits > ne.LatUnits {
		ne.LatUnits = p.LatUnits
	}
	if r.crossesAntimeridian() {
		// Grow whichever side keeps the wrapped box smallest.
		if p.LonUnits > ne.LonUnits && p.LonUnits < sw.LonUnits {
			dToNE := p.LonUnits - ne.LonUnits
			dToSW := sw.LonUnits - p.LonUnits
			if dToNE < dToSW {
				ne.LonUnits = p.LonUnits
			} else {
				sw.LonUnits = p.LonUnits
			}
		}
	} else if p.LonUnits < sw.LonUnits || p.LonUnits > ne.LonUnits {
		// Grow toward whichever side keeps the box smallest, wrapping
		// across the antimeridian when that is shorter.
		east := uint32(p.LonUnits - ne.LonUnits)
		west := uint32(sw.LonUnits - p.LonUnits)
		if east < west {
			ne.LonUnits = p.LonUnits
		} else {
			sw.LonUnits = p.LonUnits
		}
	}
	return Rect{SW: sw, NE: ne}
}

func (r Rect) crossesAntimeridian() bool { return r.SW.LonUnits > r.NE.LonUnits }

// Inside reports whether p lies within r (inclusive of the boundary).
func (r Rect) Inside(p Point) bool {
	if p.LatUnits < r.SW.LatUnits || p.LatUnits > r.NE.LatUnits {
		return false
	}
	if r.crossesAntimeridian() {
		return p.LonUnits >= r.SW.LonUnits || p.LonUnits <= r.NE.LonUnits
	}
	return p.LonUnits >= r.SW.LonUnits && p.LonUnits <= r.NE.LonUnits
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	if r.SW.LatUnits > o.NE.LatUnits || o.SW.LatUnits > r.NE.LatUnits {
		return false
	}
	// Conservative longitude overlap test; callers refine with the exact
	// geometry, since the R-tree index is deliberately coarse.
	rw, ow := r.crossesAntimeridian(), o.crossesAntimeridian()
	if !rw && !ow {
		return r.SW.LonUnits <= o.NE.LonUnits && o.SW.LonUnits <= r.NE.LonUnits
	}
	return true
}

// IsEmpty reports whether the Rect has never had a point added to it.
func (r Rect) IsEmpty() bool {
	return r == Rect{}
}

// Invalid is the sentinel bbox stored for objects whose geometry could not
// be computed, e.g. an airspace component referencing an unresolved
// border.
var Invalid = Rect{
	SW: Point{LonUnits: -1 << 31, LatUnits: -1 << 31},
	NE: Point{LonUnits: -1 << 31, LatUnits: -1 << 31},
}

func (r Rect) IsInvalid() bool { return r == Invalid }
