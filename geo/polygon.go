package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// VertexRef is a back-reference recorded while linking a polygon ring: the
// vertex at Ring/Index should be replaced by the coordinate of the named
// point UUID once it has been resolved against the store. Kept as a side
// list rather than embedded in the vertex itself.
type VertexRef struct {
	Ring  int
	Index int
	// PointUUID is a string rather than identifier.UUID to avoid an
	// import cycle; the identifier package parses/formats it.
	PointUUID string
}

// PolygonHole is one polygon ring with its interior holes.
type PolygonHole struct {
	Exterior []Point
	Holes    [][]Point
}

// MultiPolygonHole is an ordered sequence of polygons with holes, as
// airspace components and border geometries use.
type MultiPolygonHole []PolygonHole

// ToOrb converts to paulmach/orb's MultiPolygon, closing each ring and
// leaving winding order as stored (call Normalize first if canonical
// winding is required).
func (m MultiPolygonHole) ToOrb() orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(m))
	for _, ph := range m {
		poly := make(orb.Polygon, 0, 1+len(ph.Holes))
		poly = append(poly, ringToOrb(ph.Exterior))
		for _, h := range ph.Holes {
			poly = append(poly, ringToOrb(h))
		}
		mp = append(mp, poly)
	}
	return mp
}

func ringToOrb(pts []Point) orb.Ring {
	ring := make(orb.Ring, 0, len(pts)+1)
	for _, p := range pts {
		ring = append(ring, orb.Point{p.LonDeg(), p.LatDeg()})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

// Normalize enforces canonical winding (exterior CCW, interior CW) and
// ensures every ring is closed.
func (m MultiPolygonHole) Normalize() {
	for i := range m {
		if ext := m[i].Exterior; len(ext) > 0 && ext[0] != ext[len(ext)-1] {
			m[i].Exterior = append(ext, ext[0])
		}
		normalizeRing(m[i].Exterior, false)
		for j := range m[i].Holes {
			if h := m[i].Holes[j]; len(h) > 0 && h[0] != h[len(h)-1] {
				m[i].Holes[j] = append(h, h[0])
			}
			normalizeRing(m[i].Holes[j], true)
		}
	}
}

func normalizeRing(pts []Point, wantClockwise bool) {
	if (signedArea(pts) < 0) == wantClockwise {
		return
	}
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

func signedArea(pts []Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += float64(pts[i].LonUnits)*float64(pts[j].LatUnits) - float64(pts[j].LonUnits)*float64(pts[i].LatUnits)
	}
	return sum / 2
}

// Contains reports whether p lies in the multi-polygon (inside the
// exterior of some ring and not inside any of that ring's holes),
// using a planar point-in-polygon test, accurate enough for the
// geometry scale involved.
func (m MultiPolygonHole) Contains(p Point) bool {
	pt := orb.Point{p.LonDeg(), p.LatDeg()}
	for _, ph := range m {
		ext := ringToOrb(ph.Exterior)
		if !planar.RingContains(ext, pt) {
			continue
		}
		inHole := false
		for _, h := range ph.Holes {
			if planar.RingContains(ringToOrb(h), pt) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// Bounds returns the enclosing Rect across every ring's exterior.
func (m MultiPolygonHole) Bounds() Rect {
	var r Rect
	for _, ph := range m {
		for _, p := range ph.Exterior {
			r = r.Add(p)
		}
	}
	return r
}
