// Package tslice implements the polymorphic time-slice model: every
// persistent record is an Object, an ordered list of TimeSlices sharing
// one UUID and a single variant Tag.
//
// Each polymorphic per-entity record (Waypoint, AirspaceVolume, STAR,
// ...) is modelled as a plain struct with optional fields left at their
// zero value rather than C++-style runtime polymorphism, to avoid a
// heap allocation per record. Interpretation-delta composition (the one
// place genuine polymorphic dispatch is unavoidable) is done generically
// over the zero value via reflection rather than by hand-writing a
// merge method per variant.
package tslice

import (
	"fmt"
	"sort"

	"adrcore/identifier"
)

// Tag selects the variant carried by a TimeSlice.
type Tag uint8

const (
	TagAirport Tag = iota
	TagAirportCollocation
	TagDesignatedPoint
	TagNavaid
	TagAngleIndication
	TagDistanceIndication
	TagAirspace
	TagStandardLevelTable
	TagStandardLevelColumn
	TagRoute
	TagRouteSegment
	TagSID
	TagSTAR
	TagDepartureLeg
	TagArrivalLeg
	TagOrganisationAuthority
	TagSpecialDate
	TagUnit
	TagATMService
	TagFlightRestriction
	tagCount
)

func (t Tag) String() string {
	names := [...]string{
		"airport", "airport_collocation", "designated_point", "navaid",
		"angle_indication", "distance_indication", "airspace",
		"standard_level_table", "standard_level_column", "route",
		"route_segment", "sid", "star", "departure_leg", "arrival_leg",
		"organisation_authority", "special_date", "unit",
		"air_traffic_management_service", "flight_restriction",
	}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}

// Interpretation is the composition kind of a TimeSlice.
type Interpretation uint8

const (
	Baseline Interpretation = iota
	PermDelta
	TempDelta
)

func (i Interpretation) String() string {
	switch i {
	case Baseline:
		return "baseline"
	case PermDelta:
		return "perm_delta"
	case TempDelta:
		return "temp_delta"
	default:
		return "?"
	}
}

// Body is implemented by every variant-specific struct (Airport,
// Navaid, Airspace, FlightRestriction, ...).
type Body interface {
	Tag() Tag
}

// TimeSlice is one temporally-bounded version of an object's state,
// half-open [Start, End) in UTC seconds.
type TimeSlice struct {
	Start, End     int64
	Modified       int64
	Interpretation Interpretation
	Body           Body
}

func (ts TimeSlice) Covers(t int64) bool { return t >= ts.Start && t < ts.End }

func (ts TimeSlice) Overlaps(o TimeSlice) bool {
	return ts.Start < o.End && o.Start < ts.End
}

// Object is an ordered list of TimeSlices sharing one UUID. The core is
// single-threaded, so no internal locking is needed; reference counting
// for cache eviction purposes is tracked externally by the store
// package.
type Object struct {
	UUID      identifier.UUID
	Slices    []TimeSlice
	Dirty     bool
	Modified  int64
	fromTemp  bool // set by the store when this copy came from the temp partition
}

// Tag returns the object's single semantic type, or tagCount if the
// object has no slices yet.
func (o *Object) Tag() Tag {
	if len(o.Slices) == 0 {
		return tagCount
	}
	return o.Slices[0].Body.Tag()
}

// FromTemp reports whether this in-memory copy originated from the temp
// partition.
func (o *Object) FromTemp() bool { return o.fromTemp }

func (o *Object) MarkFromTemp(v bool) { o.fromTemp = v }

// AddTimeSlice inserts ts in start_time order and marks the object
// dirty. It enforces the invariant that time-slices of the same Object
// share one Tag.
func (o *Object) AddTimeSlice(ts TimeSlice) error {
	if len(o.Slices) > 0 && o.Slices[0].Body.Tag() != ts.Body.Tag() {
		return fmt.Errorf("object %s: cannot add %s slice to %s object", o.UUID, ts.Body.Tag(), o.Slices[0].Body.Tag())
	}
	idx := sort.Search(len(o.Slices), func(i int) bool { return o.Slices[i].Start > ts.Start })
	o.Slices = append(o.Slices, TimeSlice{})
	copy(o.Slices[idx+1:], o.Slices[idx:])
	o.Slices[idx] = ts
	o.Dirty = true
	if ts.Modified > o.Modified {
		o.Modified = ts.Modified
	}
	return nil
}

// OverlapConflict reports the first pair of same-interpretation slices
// that overlap, if any -- used by the ingestion/recompute self-checks.
// A baseline slice may be legally overlapped by perm_delta/temp_delta
// slices, so only pairs sharing one Interpretation are considered.
func (o *Object) OverlapConflict() (a, b TimeSlice, found bool) {
	for i := range o.Slices {
		for j := i + 1; j < len(o.Slices); j++ {
			if o.Slices[i].Interpretation != o.Slices[j].Interpretation {
				continue
			}
			if o.Slices[i].Overlaps(o.Slices[j]) {
				return o.Slices[i], o.Slices[j], true
			}
		}
	}
	return TimeSlice{}, TimeSlice{}, false
}

// At returns the composed Body applicable at time t: perm_delta/
// temp_delta slices covering t override the baseline's fields, with
// ties among same-interpretation overlapping deltas broken by the most
// recently Modified slice.
func (o *Object) At(t int64) (Body, bool) {
	var base *TimeSlice
	var deltas []*TimeSlice
	for i := range o.Slices {
		ts := &o.Slices[i]
		if !ts.Covers(t) {
			continue
		}
		switch ts.Interpretation {
		case Baseline:
			base = ts
		default:
			deltas = append(deltas, ts)
		}
	}
	if base == nil && len(deltas) == 0 {
		return nil, false
	}
	sort.Slice(deltas, func(i, j int) bool {
		// perm_delta applies before temp_delta when Modified ties, since
		// temp_delta represents the more provisional in-flight edit.
		if deltas[i].Modified != deltas[j].Modified {
			return deltas[i].Modified < deltas[j].Modified
		}
		return deltas[i].Interpretation < deltas[j].Interpretation
	})

	var result Body
	if base != nil {
		result = base.Body
	}
	for _, d := range deltas {
		if result == nil {
			result = d.Body
			continue
		}
		result = mergeBody(result, d.Body)
	}
	return result, result != nil
}
