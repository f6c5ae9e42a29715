package geo

import "testing"

func TestPointDegRoundTrip(t *testing.T) {
	cases := []struct{ lon, lat float64 }{
		{2.349014, 48.864716}, // Paris
		{-0.127758, 51.507351}, // London
		{0, 0},
		{179.999, -89.999},
	}
	for _, c := range cases {
		p := NewPointDeg(c.lon, c.lat)
		if diff := p.LonDeg() - c.lon; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("lon round trip: got %v, want %v", p.LonDeg(), c.lon)
		}
		if diff := p.LatDeg() - c.lat; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("lat round trip: got %v, want %v", p.LatDeg(), c.lat)
		}
	}
}

func TestPointIsZero(t *testing.T) {
	if !(Point{}).IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	if NewPointDeg(1, 1).IsZero() {
		t.Fatal("non-origin point should not report IsZero")
	}
}

func TestSphericDistanceKnown(t *testing.T) {
	// Paris CDG to London Heathrow, roughly 185nm great-circle.
	cdg := NewPointDeg(2.549, 49.0097)
	lhr := NewPointDeg(-0.4543, 51.4700)
	d := cdg.SphericDistance(lhr)
	if d < 170 || d > 200 {
		t.Fatalf("CDG-LHR distance out of expected range: %.1fnm", d)
	}
	if cdg.SphericDistance(cdg) > 1e-6 {
		t.Fatalf("distance to self should be ~0, got %v", cdg.SphericDistance(cdg))
	}
}

func TestSimpleDistanceShortHaul(t *testing.T) {
	a := NewPointDeg(2.0, 48.0)
	b := NewPointDeg(2.01, 48.0)
	great := a.SphericDistance(b)
	planar := a.SimpleDistance(b)
	if diff := great - planar; diff > 0.05 || diff < -0.05 {
		t.Fatalf("planar approximation diverges too much over a short leg: great=%v planar=%v", great, planar)
	}
}

func TestBearingCardinal(t *testing.T) {
	a := NewPointDeg(0, 0)
	north := NewPointDeg(0, 1)
	brg := a.Bearing(north)
	if brg > 1 && brg < 359 {
		t.Fatalf("bearing due north: got %.2f, want ~0/360", brg)
	}
}

func TestSimpleBoxNMi(t *testing.T) {
	p := NewPointDeg(2.0, 48.0)
	box := p.SimpleBoxNMi(10)
	if !box.Inside(p) {
		t.Fatal("box should contain its own center")
	}
	far := NewPointDeg(2.0, 49.0)
	if box.Inside(far) {
		t.Fatal("box should not contain a point ~60nm away for a 10nm radius")
	}
}
