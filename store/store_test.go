package store

import (
	"testing"
	"time"

	"github.com/brunoga/deep"

	"adrcore/geo"
	"adrcore/identifier"
	"adrcore/tslice"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mkAirportObj(ident string) *tslice.Object {
	o := &tslice.Object{UUID: identifier.Random()}
	o.AddTimeSlice(tslice.TimeSlice{
		Start: -1 << 62, End: 1 << 62, Interpretation: tslice.Baseline,
		Body: &tslice.Airport{PointCommon: tslice.PointCommon{Ident: ident, Location: geo.NewPointDeg(2.5, 49.0)}},
	})
	return o
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTest(t)
	o := mkAirportObj("LFPG")
	if err := s.Save(o, false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(o.UUID)
	if err != nil || loaded == nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.UUID != o.UUID {
		t.Fatalf("uuid mismatch: got %s want %s", loaded.UUID, o.UUID)
	}
	body, ok := loaded.At(0)
	if !ok {
		t.Fatal("expected a composed body at t=0")
	}
	if body.(*tslice.Airport).Ident != "LFPG" {
		t.Fatalf("ident mismatch after round trip: %+v", body)
	}
}

func TestArchiveCodecByteEqualRoundTrip(t *testing.T) {
	o := mkAirportObj("EGLL")
	encoded := encodeBlob(o)
	decoded, err := decodeBlob(encoded)
	if err != nil {
		t.Fatalf("decodeBlob: %v", err)
	}
	reencoded := encodeBlob(decoded)
	if !deep.Equal(encoded, reencoded) {
		t.Fatal("encode(decode(encode(x))) should be byte-identical to encode(x)")
	}
}

func TestIndexIdentAndFindByIdent(t *testing.T) {
	s := openTest(t)
	u := identifier.Random()
	if err := s.IndexIdent("LFPG", tslice.TagAirport, u); err != nil {
		t.Fatal(err)
	}
	found, err := s.FindByIdent("LFPG", tslice.TagAirport)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0] != u {
		t.Fatalf("expected to find %s, got %v", u, found)
	}
	if none, _ := s.FindByIdent("LFPG", tslice.TagNavaid); len(none) != 0 {
		t.Fatal("same ident under a different tag should not match")
	}
}

func TestIndexBBoxAndFindByBBox(t *testing.T) {
	s := openTest(t)
	inside := identifier.Random()
	outside := identifier.Random()
	if err := s.IndexBBox(inside, 2.0, 3.0, 48.0, 49.0); err != nil {
		t.Fatal(err)
	}
	if err := s.IndexBBox(outside, 100.0, 101.0, 10.0, 11.0); err != nil {
		t.Fatal(err)
	}
	found, err := s.FindByBBox(1.0, 4.0, 47.0, 50.0)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[identifier.UUID]bool{}
	for _, u := range found {
		seen[u] = true
	}
	if !seen[inside] {
		t.Fatal("bbox query should find the overlapping object")
	}
	if seen[outside] {
		t.Fatal("bbox query should not find the disjoint object")
	}
}

func TestDependencyEdges(t *testing.T) {
	s := openTest(t)
	a, b := identifier.Random(), identifier.Random()
	if err := s.IndexDependency(a, b, false); err != nil {
		t.Fatal(err)
	}
	deps, err := s.FindDependencies(a)
	if err != nil || len(deps) != 1 || deps[0] != b {
		t.Fatalf("FindDependencies(a): got %v, err %v", deps, err)
	}
	rev, err := s.FindDependsOn(b)
	if err != nil || len(rev) != 1 || rev[0] != a {
		t.Fatalf("FindDependsOn(b): got %v, err %v", rev, err)
	}
}

func TestPromoteAndDiscardTemp(t *testing.T) {
	s := openTest(t)
	o := mkAirportObj("LSZH")
	if err := s.Save(o, true); err != nil {
		t.Fatal(err)
	}
	temps, err := s.AllTempUUIDs()
	if err != nil || len(temps) != 1 {
		t.Fatalf("expected one temp object, got %v err %v", temps, err)
	}
	if err := s.PromoteTemp(o.UUID); err != nil {
		t.Fatalf("PromoteTemp: %v", err)
	}
	temps, _ = s.AllTempUUIDs()
	if len(temps) != 0 {
		t.Fatal("promoted object should be gone from the temp partition")
	}
	tagged, err := s.FindByTag(tslice.TagAirport)
	if err != nil || len(tagged) != 1 {
		t.Fatalf("promoted object should now be in the main partition, got %v err %v", tagged, err)
	}

	o2 := mkAirportObj("LOWW")
	if err := s.Save(o2, true); err != nil {
		t.Fatal(err)
	}
	if err := s.DiscardTemp(o2.UUID); err != nil {
		t.Fatal(err)
	}
	temps, _ = s.AllTempUUIDs()
	if len(temps) != 0 {
		t.Fatal("discarded temp object should be gone")
	}
	tagged, _ = s.FindByTag(tslice.TagAirport)
	if len(tagged) != 1 {
		t.Fatal("discarded temp object should never have reached the main partition")
	}
}

func TestFindByTag(t *testing.T) {
	s := openTest(t)
	fr := &tslice.Object{UUID: identifier.Random()}
	fr.AddTimeSlice(tslice.TimeSlice{
		Start: -1 << 62, End: 1 << 62, Interpretation: tslice.Baseline,
		Body: &tslice.FlightRestriction{Ident: "ED0123", Kind: tslice.RestrictionForbidden, Enabled: true},
	})
	if err := s.Save(fr, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(mkAirportObj("LFPG"), false); err != nil {
		t.Fatal(err)
	}
	found, err := s.FindByTag(tslice.TagFlightRestriction)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0] != fr.UUID {
		t.Fatalf("FindByTag should return only the flight_restriction object, got %v", found)
	}
}

func TestFlushCacheEvictsOnlyUnreferencedStaleEntries(t *testing.T) {
	s := openTest(t)
	o := mkAirportObj("LFPG")
	if err := s.Save(o, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(o.UUID); err != nil {
		t.Fatal(err)
	}
	// Still referenced (refs==1 from the Load above): must not evict.
	if n := s.FlushCache(time.Now().Add(time.Hour)); n != 0 {
		t.Fatalf("a referenced entry must not be evicted, evicted=%d", n)
	}
	s.Release(o.UUID)
	if n := s.FlushCache(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("an unreferenced, stale entry should be evicted, evicted=%d", n)
	}
}

func TestDCTLegCacheIsSymmetric(t *testing.T) {
	s := openTest(t)
	a, b := identifier.Random(), identifier.Random()
	if err := s.IndexDCTLeg(a, b, 123.5); err != nil {
		t.Fatal(err)
	}
	d, ok, err := s.FindDCTLeg(a, b)
	if err != nil || !ok || d != 123.5 {
		t.Fatalf("FindDCTLeg(a,b): got %v, %v, err %v", d, ok, err)
	}
	// The same leg looked up from the other direction must hit the same row.
	d, ok, err = s.FindDCTLeg(b, a)
	if err != nil || !ok || d != 123.5 {
		t.Fatalf("FindDCTLeg(b,a): got %v, %v, err %v", d, ok, err)
	}
	if err := s.IndexDCTLeg(b, a, 200.0); err != nil {
		t.Fatal(err)
	}
	d, ok, err = s.FindDCTLeg(a, b)
	if err != nil || !ok || d != 200.0 {
		t.Fatalf("re-indexing from the other direction should update the same row, got %v, %v, err %v", d, ok, err)
	}
}

func TestFindDCTLegMiss(t *testing.T) {
	s := openTest(t)
	_, ok, err := s.FindDCTLeg(identifier.Random(), identifier.Random())
	if err != nil || ok {
		t.Fatalf("FindDCTLeg on an unindexed pair should report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestAUPActivationWindow(t *testing.T) {
	s := openTest(t)
	u := identifier.Random()
	if err := s.IndexAUP(u, 1000, 2000, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.IndexAUP(u, 2000, 3000, 0); err != nil {
		t.Fatal(err)
	}
	status, ok, err := s.FindAUP(u, 1500)
	if err != nil || !ok || status != 1 {
		t.Fatalf("FindAUP(1500): got %v, %v, err %v", status, ok, err)
	}
	status, ok, err = s.FindAUP(u, 2500)
	if err != nil || !ok || status != 0 {
		t.Fatalf("FindAUP(2500): got %v, %v, err %v", status, ok, err)
	}
	_, ok, err = s.FindAUP(u, 500)
	if err != nil || ok {
		t.Fatalf("FindAUP before any window should report ok=false, got ok=%v err=%v", ok, err)
	}
	_, ok, err = s.FindAUP(identifier.Random(), 1500)
	if err != nil || ok {
		t.Fatalf("FindAUP for an unindexed airspace should report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestLoadNilUUIDReturnsNil(t *testing.T) {
	s := openTest(t)
	obj, err := s.Load(identifier.Nil)
	if err != nil || obj != nil {
		t.Fatalf("Load(Nil) should return (nil, nil), got (%v, %v)", obj, err)
	}
}
