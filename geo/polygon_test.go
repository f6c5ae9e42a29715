package geo

import "testing"

func square(minLon, minLat, maxLon, maxLat float64) PolygonHole {
	return PolygonHole{Exterior: []Point{
		NewPointDeg(minLon, minLat),
		NewPointDeg(maxLon, minLat),
		NewPointDeg(maxLon, maxLat),
		NewPointDeg(minLon, maxLat),
		NewPointDeg(minLon, minLat),
	}}
}

func TestMultiPolygonHoleContains(t *testing.T) {
	m := MultiPolygonHole{square(0, 0, 10, 10)}
	if !m.Contains(NewPointDeg(5, 5)) {
		t.Fatal("center of the square should be contained")
	}
	if m.Contains(NewPointDeg(50, 50)) {
		t.Fatal("far-outside point should not be contained")
	}
}

func TestMultiPolygonHoleWithHole(t *testing.T) {
	outer := square(0, 0, 10, 10)
	outer.Holes = [][]Point{square(4, 4, 6, 6).Exterior}
	m := MultiPolygonHole{outer}
	if m.Contains(NewPointDeg(5, 5)) {
		t.Fatal("point inside the hole should not be contained")
	}
	if !m.Contains(NewPointDeg(1, 1)) {
		t.Fatal("point inside the exterior but outside the hole should be contained")
	}
}

func TestMultiPolygonHoleBounds(t *testing.T) {
	m := MultiPolygonHole{square(0, 0, 10, 20)}
	b := m.Bounds()
	if !b.Inside(NewPointDeg(5, 10)) {
		t.Fatal("bounds should enclose the polygon's interior")
	}
}

func TestNormalizeClosesRings(t *testing.T) {
	m := MultiPolygonHole{{Exterior: []Point{
		NewPointDeg(0, 0), NewPointDeg(1, 0), NewPointDeg(1, 1), NewPointDeg(0, 1),
	}}}
	m.Normalize()
	ext := m[0].Exterior
	// Normalize appends the closing vertex to an open ring.
	if len(ext) != 5 || ext[0] != ext[4] {
		t.Fatalf("normalize should close the ring, got %d vertices", len(ext))
	}
}
