package ingest

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

// TestDispatcherEmitsDesignatedPoint drives a minimal two-element AIXM
// fragment through the dispatcher and checks the resulting object lands
// in the store's temp partition with the right tag and ident index:
// completed nodes synthesise time-slices and insert/merge objects into
// the store's temp partition.
func TestDispatcherEmitsDesignatedPoint(t *testing.T) {
	const doc = `<MessageMembers>
		<DesignatedPoint>
			<Ident>ABCDE</Ident>
			<Name>TEST POINT</Name>
		</DesignatedPoint>
	</MessageMembers>`

	st := newStore(t)
	var el aerr.ErrorLogger
	d, err := NewDispatcher(st, nil, &el)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d.Run(strings.NewReader(doc)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	uuids, err := st.FindByIdent("ABCDE", tslice.TagDesignatedPoint)
	if err != nil {
		t.Fatalf("FindByIdent: %v", err)
	}
	if len(uuids) != 1 {
		t.Fatalf("FindByIdent(ABCDE) = %d results, want 1", len(uuids))
	}

	obj, err := st.Load(uuids[0])
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if obj == nil {
		t.Fatal("Load returned nil for newly ingested object")
	}
	dp, ok := obj.Slices[0].Body.(*tslice.DesignatedPoint)
	if !ok {
		t.Fatalf("body type = %T, want *tslice.DesignatedPoint", obj.Slices[0].Body)
	}
	if dp.Ident != "ABCDE" || dp.Name != "TEST POINT" {
		t.Fatalf("dp = %+v, want Ident=ABCDE Name=TEST POINT", dp)
	}
}

// TestDispatcherSynthesisesStableUUID checks that re-ingesting the same
// fragment twice in independent Dispatcher instances over the same
// store yields the same UUID both times, since DesignatedPoint carries
// its own Ident and is keyed deterministically from it.
func TestDispatcherSynthesisesStableUUID(t *testing.T) {
	const doc = `<MessageMembers><DesignatedPoint><Ident>WXYZ1</Ident></DesignatedPoint></MessageMembers>`

	st := newStore(t)
	var el aerr.ErrorLogger

	d1, err := NewDispatcher(st, nil, &el)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d1.Run(strings.NewReader(doc)); err != nil {
		t.Fatalf("Run (1st): %v", err)
	}
	first, err := st.FindByIdent("WXYZ1", tslice.TagDesignatedPoint)
	if err != nil || len(first) != 1 {
		t.Fatalf("FindByIdent after 1st run: %v, %d results", err, len(first))
	}

	d2, err := NewDispatcher(st, nil, &el)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d2.Run(strings.NewReader(doc)); err != nil {
		t.Fatalf("Run (2nd): %v", err)
	}
	second, err := st.FindByIdent("WXYZ1", tslice.TagDesignatedPoint)
	if err != nil {
		t.Fatalf("FindByIdent after 2nd run: %v", err)
	}
	if len(second) != 1 || second[0] != first[0] {
		t.Fatalf("UUID not stable across runs: %v vs %v", first, second)
	}
}

// TestDispatcherConsumesGMLIdentifier checks that a gml:identifier
// child, when present, is parsed and used as the object's UUID
// verbatim rather than a synthesised one.
func TestDispatcherConsumesGMLIdentifier(t *testing.T) {
	want := identifier.Random()
	doc := `<MessageMembers>
		<DesignatedPoint>
			<gml:identifier>` + want.String() + `</gml:identifier>
			<Ident>FIXID</Ident>
		</DesignatedPoint>
	</MessageMembers>`

	st := newStore(t)
	var el aerr.ErrorLogger
	d, err := NewDispatcher(st, nil, &el)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d.Run(strings.NewReader(doc)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	uuids, err := st.FindByIdent("FIXID", tslice.TagDesignatedPoint)
	if err != nil || len(uuids) != 1 {
		t.Fatalf("FindByIdent: %v, %d results", err, len(uuids))
	}
	if uuids[0] != want {
		t.Fatalf("UUID = %s, want gml:identifier value %s", uuids[0], want)
	}
}

// TestSynthesisedUUIDIsKeyedPerParent checks the fix for the
// cross-parent collision: two different parents' first anonymous child
// of the same element kind must not collide on the same synthesised
// UUID just because both are "the first one".
func TestSynthesisedUUIDIsKeyedPerParent(t *testing.T) {
	hostA := identifier.FromNamespace(identifier.NamespaceRecord, "AIRPORTHELIPORT/AAAAA")
	hostB := identifier.FromNamespace(identifier.NamespaceRecord, "AIRPORTHELIPORT/BBBBB")

	doc := `<MessageMembers>
		<AirportHeliport><Ident>AAAAA</Ident></AirportHeliport>
		<AirportHeliport><Ident>BBBBB</Ident></AirportHeliport>
		<AirportCollocation><HostAirport xlink:href="` + hostA.String() + `"/><Kind>NAVAID</Kind></AirportCollocation>
		<AirportCollocation><HostAirport xlink:href="` + hostB.String() + `"/><Kind>NAVAID</Kind></AirportCollocation>
	</MessageMembers>`

	st := newStore(t)
	var el aerr.ErrorLogger
	d, err := NewDispatcher(st, nil, &el)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d.Run(strings.NewReader(doc)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	temps, err := st.AllTempUUIDs()
	if err != nil {
		t.Fatalf("AllTempUUIDs: %v", err)
	}
	var collocations []identifier.UUID
	for _, u := range temps {
		obj, err := st.Load(u)
		if err != nil || obj == nil {
			t.Fatalf("Load %s: %v", u, err)
		}
		if _, ok := obj.Slices[0].Body.(*tslice.AirportCollocation); ok {
			collocations = append(collocations, u)
		}
	}
	if len(collocations) != 2 {
		t.Fatalf("expected 2 AirportCollocation objects, got %d", len(collocations))
	}
	if collocations[0] == collocations[1] {
		t.Fatalf("anonymous children of two different parents must not collide on the same synthesised UUID: both got %s", collocations[0])
	}
}

// TestNameTableSelfTest exercises the startup invariant check directly:
// a name table with an out-of-order entry must be rejected at
// construction, not silently accepted.
func TestNameTableSelfTest(t *testing.T) {
	t.Run("well-formed", func(t *testing.T) {
		table := newNameTable(structuredFactories())
		if err := table.selfTest(); err != nil {
			t.Fatalf("selfTest on production table: %v", err)
		}
	})
	t.Run("detects duplicate", func(t *testing.T) {
		table := &nameTable{
			names:     []string{"A", "A", "B"},
			factories: []Factory{nil, nil, nil},
		}
		if err := table.selfTest(); err == nil {
			t.Fatal("selfTest accepted a duplicate-key table")
		}
	})
}
