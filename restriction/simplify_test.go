package restriction

import (
	"testing"

	"adrcore/geo"
	"adrcore/identifier"
	"adrcore/tslice"
)

func TestSimplifyConditionAircraftMismatchFoldsFalse(t *testing.T) {
	ctx := SimplifyContext{AircraftType: "A320"}
	n := &tslice.CondAircraftNode{ICAOType: "B73*"}
	got := SimplifyCondition(n, ctx)
	cc, ok := got.(*tslice.CondConstantNode)
	if !ok || cc.Value {
		t.Fatalf("mismatched ICAO type should fold to constant false, got %#v", got)
	}
}

func TestSimplifyConditionAircraftUnknownStaysOpen(t *testing.T) {
	// No context to decide against: must not be folded away.
	ctx := SimplifyContext{}
	n := &tslice.CondAircraftNode{ICAOType: "B73*"}
	got := SimplifyCondition(n, ctx)
	if _, ok := got.(*tslice.CondConstantNode); ok {
		t.Fatal("a leaf that can't be statically decided must not be folded")
	}
}

func TestSimplifyConditionAndPartialFoldKeepsNode(t *testing.T) {
	ctx := SimplifyContext{AircraftType: "A320", CivOrMil: "civ"}
	n := &tslice.CondAndNode{
		Children: []tslice.Condition{
			&tslice.CondAircraftNode{ICAOType: "B73*"}, // folds false
			&tslice.CondFlightNode{CivOrMil: "civ"},     // not statically decidable to a constant (matches, not decided true)
		},
	}
	got := SimplifyCondition(n, ctx)
	// Since CondFlightNode can't fold to a constant here (decideFlightStatic
	// only returns foldable results for a *mismatch*), the AND as a whole
	// should remain a CondAndNode with its first child already folded.
	and, ok := got.(*tslice.CondAndNode)
	if !ok {
		t.Fatalf("expected the AND to survive as a partially-folded node, got %#v", got)
	}
	if cc, ok := and.Children[0].(*tslice.CondConstantNode); !ok || cc.Value {
		t.Fatalf("first child should have folded to constant false, got %#v", and.Children[0])
	}
}

func TestSimplifyConditionAndFullyConstantCollapses(t *testing.T) {
	ctx := SimplifyContext{AircraftType: "A320"}
	n := &tslice.CondAndNode{
		Children: []tslice.Condition{
			&tslice.CondConstantNode{Value: true},
			&tslice.CondAircraftNode{ICAOType: "B73*"}, // folds false
		},
	}
	got := SimplifyCondition(n, ctx)
	cc, ok := got.(*tslice.CondConstantNode)
	if !ok || cc.Value {
		t.Fatalf("AND of true and a folded-false child should collapse to constant false, got %#v", got)
	}
}

func TestSimplifyConditionSequenceShortCircuitsOnFalse(t *testing.T) {
	ctx := SimplifyContext{AircraftType: "A320"}
	n := &tslice.CondSequenceNode{Children: []tslice.Condition{
		&tslice.CondAircraftNode{ICAOType: "B73*"}, // folds false
		&tslice.CondConstantNode{Value: true},
	}}
	got := SimplifyCondition(n, ctx)
	cc, ok := got.(*tslice.CondConstantNode)
	if !ok || cc.Value {
		t.Fatalf("a sequence containing a folded-false leaf should collapse to constant false, got %#v", got)
	}
}

func fl2(alt int32) geo.AltEndpoint { return geo.AltEndpoint{Mode: geo.AltSTD, Alt: alt} }

func TestAltDisjointFromQueryPrunesNonOverlapping(t *testing.T) {
	alt := tslice.RouteAlternative{Elements: []tslice.RestrictionElement{
		{Object: tslice.NewLink(identifier.Random()), AltRange: geo.AltRange{Lo: fl2(30000), Hi: fl2(40000)}},
	}}
	query := geo.AltRange{Lo: fl2(0), Hi: fl2(10000)}
	if !altDisjointFromQuery(alt, query) {
		t.Fatal("an alternative wholly above the query's altitude range should be pruned")
	}
}

func TestAltDisjointFromQueryKeepsOverlapping(t *testing.T) {
	alt := tslice.RouteAlternative{Elements: []tslice.RestrictionElement{
		{Object: tslice.NewLink(identifier.Random()), AltRange: geo.AltRange{Lo: fl2(5000), Hi: fl2(15000)}},
	}}
	query := geo.AltRange{Lo: fl2(0), Hi: fl2(10000)}
	if altDisjointFromQuery(alt, query) {
		t.Fatal("an overlapping alternative should not be pruned")
	}
}

func TestSimplifyRestrictionPrunesDisjointAlternatives(t *testing.T) {
	fr := &tslice.FlightRestriction{
		Ident:     "ED0099",
		Condition: &tslice.CondConstantNode{Value: true},
		Alternatives: []tslice.RouteAlternative{
			{Elements: []tslice.RestrictionElement{{AltRange: geo.AltRange{Lo: fl2(30000), Hi: fl2(40000)}}}},
			{Elements: []tslice.RestrictionElement{{AltRange: geo.AltRange{Lo: fl2(0), Hi: fl2(5000)}}}},
		},
	}
	ctx := SimplifyContext{AltRange: geo.AltRange{Lo: fl2(0), Hi: fl2(10000)}}
	out := SimplifyRestriction(fr, ctx)
	if len(out.Alternatives) != 1 {
		t.Fatalf("expected exactly one surviving alternative, got %d", len(out.Alternatives))
	}
	if out.Ident != fr.Ident {
		t.Fatal("simplification should not alter the rule's identity")
	}
}
