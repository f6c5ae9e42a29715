package border

import (
	"strings"
	"testing"

	"adrcore/aerr"
	"adrcore/identifier"
	"adrcore/store"
	"adrcore/tslice"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// swissGeoJSON is a crude single-ring square "SWITZERLAND" polygon,
// just enough to exercise Load's per-feature path without needing a
// real shapefile-derived fixture.
const swissGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"NAME": "SWITZERLAND"},
			"geometry": {
				"type": "Polygon",
				"coordinates": [[[5.9,45.8],[10.5,45.8],[10.5,47.8],[5.9,47.8],[5.9,45.8]]]
			}
		}
	]
}`

func TestLoadEmitsCountryAndCompositeAirspaces(t *testing.T) {
	st := newStore(t)
	var el aerr.ErrorLogger

	if err := Load(strings.NewReader(swissGeoJSON), st, &el); err != nil {
		t.Fatalf("Load: %v", err)
	}

	u := identifier.FromCountryBorder("SWITZERLAND")
	obj, err := st.Load(u)
	if err != nil {
		t.Fatalf("Load(switzerland uuid): %v", err)
	}
	if obj == nil {
		t.Fatal("SWITZERLAND border airspace not found")
	}
	airspace, ok := obj.Slices[0].Body.(*tslice.Airspace)
	if !ok {
		t.Fatalf("body type = %T, want *tslice.Airspace", obj.Slices[0].Body)
	}
	if airspace.Type != tslice.AirspaceBorder {
		t.Fatalf("Type = %v, want AirspaceBorder", airspace.Type)
	}
	if len(airspace.Components) != 1 || len(airspace.Components[0].FullGeometry) == 0 {
		t.Fatalf("airspace has no geometry: %+v", airspace.Components)
	}

	// Composite "EU" must exist even though this tiny feed only supplied
	// Switzerland (not an EU member) -- composites are created even if
	// empty so downstream rules can refer to them.
	euUUID := identifier.FromCountryBorder("EU")
	euObj, err := st.Load(euUUID)
	if err != nil {
		t.Fatalf("Load(EU uuid): %v", err)
	}
	if euObj == nil {
		t.Fatal("composite EU airspace not created")
	}
	eu := euObj.Slices[0].Body.(*tslice.Airspace)
	if len(eu.Components) == 0 {
		t.Fatal("composite EU airspace has no union components")
	}
	for _, c := range eu.Components {
		if c.Operator != tslice.OpUnion {
			t.Fatalf("composite component operator = %v, want OpUnion", c.Operator)
		}
	}
}

func TestLoadWarnsOnDuplicateName(t *testing.T) {
	const doc = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NAME":"FRANCE"},
		 "geometry":{"type":"Polygon","coordinates":[[[2,46],[3,46],[3,47],[2,47],[2,46]]]}},
		{"type":"Feature","properties":{"NAME":"FRANCE"},
		 "geometry":{"type":"Polygon","coordinates":[[[2,46],[3,46],[3,47],[2,47],[2,46]]]}}
	]}`
	st := newStore(t)
	var el aerr.ErrorLogger
	if err := Load(strings.NewReader(doc), st, &el); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !el.HaveWarnings() {
		t.Fatal("expected a duplicate-name warning")
	}
}

func TestCanonicalNameAppliesRemapTable(t *testing.T) {
	got := canonicalName("UNITED STATES OF AMERICA")
	if got != "UNITED STATES" {
		t.Fatalf("canonicalName = %q, want UNITED STATES", got)
	}
	// Unknown names pass through unchanged.
	if got := canonicalName("NARNIA"); got != "NARNIA" {
		t.Fatalf("canonicalName(NARNIA) = %q, want unchanged", got)
	}
}

// TestPersistAndRefreshTablesRoundTrip exercises store/diskcache end to
// end: persist the live tables (including a hand-added remap entry),
// delete that entry in-process to simulate a fresh start, then refresh
// from the cache file and confirm the persisted entry reappears.
func TestPersistAndRefreshTablesRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	const cacheFile = "border/countries_test.cache"

	remapTable["NARNIA"] = "CAIR_PARAVEL"
	if err := PersistTables(cacheFile); err != nil {
		t.Fatalf("PersistTables: %v", err)
	}
	delete(remapTable, "NARNIA")

	if got := canonicalName("NARNIA"); got != "NARNIA" {
		t.Fatalf("sanity check: remap entry should be gone, got %q", got)
	}

	found, err := RefreshTables(cacheFile)
	if err != nil {
		t.Fatalf("RefreshTables: %v", err)
	}
	if !found {
		t.Fatal("RefreshTables reported no cache file found")
	}
	if got := canonicalName("NARNIA"); got != "CAIR_PARAVEL" {
		t.Fatalf("canonicalName(NARNIA) after refresh = %q, want CAIR_PARAVEL", got)
	}
	delete(remapTable, "NARNIA")
}

func TestRefreshTablesMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	found, err := RefreshTables("border/does-not-exist.cache")
	if err != nil {
		t.Fatalf("RefreshTables: %v", err)
	}
	if found {
		t.Fatal("RefreshTables reported finding a file that was never written")
	}
}
