package geo

import "testing"

func TestRectAddAndInside(t *testing.T) {
	var r Rect
	if !r.IsEmpty() {
		t.Fatal("zero Rect should be empty")
	}
	r = r.Add(NewPointDeg(2, 48))
	r = r.Add(NewPointDeg(3, 49))
	if !r.Inside(NewPointDeg(2.5, 48.5)) {
		t.Fatal("midpoint should be inside the grown rect")
	}
	if r.Inside(NewPointDeg(10, 48.5)) {
		t.Fatal("far-away longitude should not be inside")
	}
}

func TestRectAntimeridian(t *testing.T) {
	var r Rect
	r = r.Add(NewPointDeg(179, 10))
	r = r.Add(NewPointDeg(-179, 11))
	if !r.crossesAntimeridian() {
		t.Fatal("rect spanning 179 to -179 should cross the antimeridian")
	}
	if !r.Inside(NewPointDeg(179.9, 10.5)) {
		t.Fatal("point just past 180 should be inside an antimeridian-crossing rect")
	}
	if r.Inside(NewPointDeg(0, 10.5)) {
		t.Fatal("point on the far side of the globe should not be inside")
	}
}

func TestRectIntersects(t *testing.T) {
	a := Rect{SW: NewPointDeg(0, 0), NE: NewPointDeg(2, 2)}
	b := Rect{SW: NewPointDeg(1, 1), NE: NewPointDeg(3, 3)}
	c := Rect{SW: NewPointDeg(10, 10), NE: NewPointDeg(11, 11)}
	if !a.Intersects(b) {
		t.Fatal("overlapping rects should intersect")
	}
	if a.Intersects(c) {
		t.Fatal("disjoint rects should not intersect")
	}
}

func TestRectInvalid(t *testing.T) {
	if !Invalid.IsInvalid() {
		t.Fatal("the sentinel Invalid rect should report IsInvalid")
	}
	var r Rect
	r = r.Add(NewPointDeg(1, 1))
	if r.IsInvalid() {
		t.Fatal("an ordinary rect should not report IsInvalid")
	}
}
