package tslice

import (
	"testing"

	"adrcore/identifier"
)

func TestDependenciesWalksNestedLinksAndSlices(t *testing.T) {
	border := identifier.Random()
	fix1 := identifier.Random()
	fix2 := identifier.Random()

	o := &Object{UUID: identifier.Random()}
	o.Slices = []TimeSlice{{
		Start: 0, End: 100, Interpretation: Baseline,
		Body: &Airspace{
			Ident: "LFXX",
			Components: []AirspaceComponent{
				{ContributorAirspace: NewLink(border)},
			},
		},
	}}
	deps := o.Dependencies()
	if len(deps) != 1 || deps[0] != border {
		t.Fatalf("expected a single dependency on the border, got %v", deps)
	}

	sid := &SID{
		Airport: NewLink(identifier.Random()),
		Legs: []ProcedureLeg{
			{Fix: NewLink(fix1)},
			{Fix: NewLink(fix2)},
		},
	}
	o2 := &Object{UUID: identifier.Random()}
	o2.Slices = []TimeSlice{{Start: 0, End: 100, Body: sid}}
	deps2 := o2.Dependencies()
	if len(deps2) != 3 {
		t.Fatalf("expected 3 dependencies (airport + 2 fixes), got %d: %v", len(deps2), deps2)
	}
}

func TestDependenciesSkipsNilAndDeduplicates(t *testing.T) {
	dep := identifier.Random()
	o := &Object{UUID: identifier.Random()}
	o.Slices = []TimeSlice{{
		Start: 0, End: 100,
		Body: &RouteSegment{Start: NewLink(dep), End: NewLink(dep), Route: Link{}},
	}}
	deps := o.Dependencies()
	if len(deps) != 1 {
		t.Fatalf("repeated references to the same UUID should dedupe, got %v", deps)
	}
}
