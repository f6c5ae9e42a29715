package tslice

import "testing"

func TestMergeBodyZeroFieldsFallThrough(t *testing.T) {
	base := &Navaid{PointCommon: PointCommon{Ident: "ABC", ICAOCode: "LF"}, NavaidType: "VOR"}
	delta := &Navaid{NavaidType: "VORDME"}
	merged := mergeBody(base, delta).(*Navaid)
	if merged.Ident != "ABC" || merged.ICAOCode != "LF" {
		t.Fatalf("fields left zero in delta should fall back to base, got %+v", merged)
	}
	if merged.NavaidType != "VORDME" {
		t.Fatalf("delta's explicit field should win, got %q", merged.NavaidType)
	}
}

func TestMergeBodyMismatchedTypesReturnsDelta(t *testing.T) {
	base := &Navaid{}
	delta := &Airport{}
	if got := mergeBody(base, delta); got != Body(delta) {
		t.Fatal("mismatched underlying types should just return delta unchanged")
	}
}

func TestPermDeltaBeforeTempDeltaOnTie(t *testing.T) {
	o := &Object{}
	o.Slices = []TimeSlice{
		{Start: 0, End: 1000, Modified: 5, Interpretation: PermDelta, Body: &Airport{PointCommon: PointCommon{ElevationFt: 100}}},
		{Start: 0, End: 1000, Modified: 5, Interpretation: TempDelta, Body: &Airport{PointCommon: PointCommon{ElevationFt: 200}}},
	}
	body, ok := o.At(500)
	if !ok {
		t.Fatal("expected a composed result")
	}
	// Same Modified: perm_delta is applied first, so the later-applied
	// temp_delta (the more provisional edit) wins the tie.
	if got := body.(*Airport).ElevationFt; got != 200 {
		t.Fatalf("temp_delta should win a Modified tie over perm_delta, got %d", got)
	}
}
