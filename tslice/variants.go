package tslice

import (
	"adrcore/geo"
	"adrcore/identifier"
)

// Common enums shared across variants.

type AirspaceType int

const (
	AirspaceFIR AirspaceType = iota
	AirspaceUIR
	AirspaceCTA
	AirspaceTMA
	AirspaceCTR
	AirspaceBorder // type_border, emitted for a national/composite border polygon
	AirspaceOther
)

type ComponentOperator uint8

const (
	OpBase ComponentOperator = iota
	OpUnion
)

type AvailabilityStatus uint8

const (
	StatusOpen AvailabilityStatus = iota
	StatusClosed
	StatusConditional
)

type CDRClass uint8

const (
	CDRClassNone CDRClass = iota
	CDRClass1
	CDRClass2
	CDRClass3
)

type RestrictionKind uint8

const (
	RestrictionMandatory RestrictionKind = iota
	RestrictionForbidden
	RestrictionClosed
	RestrictionAllowed
)

type ProcessingIndicator uint8

const (
	ProcTFR ProcessingIndicator = iota
	ProcRADDCT
	ProcFRADCT
	ProcFPR
	ProcADCP
	ProcADFlightRule
	ProcFlightProperty
)

///////////////////////////////////////////////////////////////////////////
// Point-like variants: Airport, Navaid, DesignatedPoint

type PointCommon struct {
	Ident          string
	Name           string
	Location       geo.Point
	ElevationFt    int32
	ICAOCode       string
	IATACode       string
	Classification uint32 // bitfield of classification flags
}

type Airport struct {
	PointCommon
}

func (*Airport) Tag() Tag { return TagAirport }

type Navaid struct {
	PointCommon
	NavaidType string // VOR, NDB, DME, VORDME, TACAN, ...
}

func (*Navaid) Tag() Tag { return TagNavaid }

type DesignatedPoint struct {
	PointCommon
}

func (*DesignatedPoint) Tag() Tag { return TagDesignatedPoint }

// AirportCollocation records a facility collocated with a host airport
// (e.g. a co-sited navaid); its UUID is synthesised from the host
// airport UUID plus a discriminator rather than carried in the AIXM
// feed.
type AirportCollocation struct {
	HostAirport Link
	Discriminator string
	Kind        string
}

func (*AirportCollocation) Tag() Tag { return TagAirportCollocation }

func (c *AirportCollocation) Link(store Loader) error {
	return c.HostAirport.Load(store)
}

///////////////////////////////////////////////////////////////////////////
// Angle / distance indications (navaid-associated checkpoints)

type AngleIndication struct {
	Navaid    Link
	AngleDeg  float32
}

func (*AngleIndication) Tag() Tag { return TagAngleIndication }
func (a *AngleIndication) Link(store Loader) error { return a.Navaid.Load(store) }

type DistanceIndication struct {
	Navaid    Link
	DistanceNM float32
}

func (*DistanceIndication) Tag() Tag { return TagDistanceIndication }
func (d *DistanceIndication) Link(store Loader) error { return d.Navaid.Load(store) }

///////////////////////////////////////////////////////////////////////////
// Airspace

// AirspaceComponent is one contributor to an airspace's geometry.
type AirspaceComponent struct {
	Operator            ComponentOperator
	ContributorAirspace Link // set if this component derives from another airspace (e.g. a border)
	FullGeometry        geo.MultiPolygonHole
	AltRange            geo.AltRange
	// VertexRefs records named-point back-references within FullGeometry,
	// resolved during Link.
	VertexRefs []geo.VertexRef
}

type Airspace struct {
	Ident        string
	Name         string
	Type         AirspaceType
	LocalType    string
	ICAOFlag     bool
	FlexibleUse  bool
	Components   []AirspaceComponent
	// Computed by Recompute:
	Bounds       geo.Rect
	Envelope     geo.AltRange
}

func (*Airspace) Tag() Tag { return TagAirspace }

func (a *Airspace) Link(store Loader) error {
	for i := range a.Components {
		c := &a.Components[i]
		if err := c.ContributorAirspace.Load(store); err != nil {
			return err
		}
		for _, vr := range c.VertexRefs {
			pointObj, err := store.Load(identifier.Parse(vr.PointUUID))
			if err != nil || pointObj == nil || len(pointObj.Slices) == 0 {
				continue // data-integrity warning, handled by caller via ErrorLogger
			}
			if pc, ok := pointObj.Slices[0].Body.(interface{ Point() geo.Point }); ok {
				substituteVertex(c, vr, pc.Point())
			}
		}
	}
	return nil
}

func substituteVertex(c *AirspaceComponent, vr geo.VertexRef, p geo.Point) {
	if vr.Ring < 0 || vr.Ring >= len(c.FullGeometry) {
		return
	}
	ph := &c.FullGeometry[vr.Ring]
	if vr.Index < 0 || vr.Index >= len(ph.Exterior) {
		return
	}
	ph.Exterior[vr.Index] = p
}

func (a *Airspace) Recompute(ctx TopoContext) error {
	var bounds geo.Rect
	invalid := false
	env := geo.AltRange{Lo: geo.AltEndpoint{Mode: geo.AltSTD, Alt: geo.Unl}, Hi: geo.AltEndpoint{Mode: geo.AltHeight, Alt: geo.Gnd}}
	for _, c := range a.Components {
		if !identifier.IsNil(c.ContributorAirspace.UUID) && c.ContributorAirspace.Cached() == nil {
			invalid = true
			continue
		}
		if cached := c.ContributorAirspace.Cached(); cached != nil && len(cached.Slices) > 0 {
			if asp, ok := cached.Slices[0].Body.(*Airspace); ok {
				bounds = unionRect(bounds, asp.Bounds)
			}
		} else {
			bounds = unionRect(bounds, c.FullGeometry.Bounds())
		}
		if c.AltRange.Lo.Alt < env.Lo.Alt || env.Lo.Mode != geo.AltHeight {
			env.Lo = c.AltRange.Lo
		}
		if c.AltRange.Hi.Alt > env.Hi.Alt {
			env.Hi = c.AltRange.Hi
		}
	}
	if invalid {
		a.Bounds = geo.Invalid
	} else {
		a.Bounds = bounds
	}
	a.Envelope = env
	return nil
}

func unionRect(a, b geo.Rect) geo.Rect {
	if a.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return a
	}
	out := a
	out = out.Add(b.SW)
	out = out.Add(b.NE)
	return out
}

///////////////////////////////////////////////////////////////////////////
// Standard level table / column (CDR/conditional-route level structures)

type StandardLevelColumn struct {
	Ident string
	Level int32 // feet, or FL*100
	Odd   bool  // semicircular direction this level serves
}

func (*StandardLevelColumn) Tag() Tag { return TagStandardLevelColumn }

type StandardLevelTable struct {
	Ident   string
	Columns []Link // Links to StandardLevelColumn objects
}

func (*StandardLevelTable) Tag() Tag { return TagStandardLevelTable }

func (t *StandardLevelTable) Link(store Loader) error {
	for i := range t.Columns {
		if err := t.Columns[i].Load(store); err != nil {
			return err
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Route / route segment

type Route struct {
	Ident string
}

func (*Route) Tag() Tag { return TagRoute }

type Availability struct {
	Status         AvailabilityStatus
	Direction      [2]bool // bit-pair: usable forward / usable reverse
	AltRange       geo.AltRange
	DiscreteLevels Link // StandardLevelTable
	CDR            CDRClass
	Timetable      Timetable
}

type RouteSegment struct {
	Start, End   Link // point-like objects
	Route        Link
	AltRange     geo.AltRange
	Availability []Availability
	// LengthNM is computed by Recompute once Start/End are linked.
	LengthNM float64
}

func (*RouteSegment) Tag() Tag { return TagRouteSegment }

func (s *RouteSegment) Link(store Loader) error {
	if err := s.Start.Load(store); err != nil {
		return err
	}
	if err := s.End.Load(store); err != nil {
		return err
	}
	if err := s.Route.Load(store); err != nil {
		return err
	}
	for i := range s.Availability {
		if err := s.Availability[i].DiscreteLevels.Load(store); err != nil {
			return err
		}
	}
	return nil
}

func (s *RouteSegment) Recompute(ctx TopoContext) error {
	sp, ok1 := pointOf(s.Start)
	ep, ok2 := pointOf(s.End)
	if ok1 && ok2 {
		s.LengthNM = sp.SphericDistance(ep)
	}
	return nil
}

func pointOf(l Link) (geo.Point, bool) {
	obj := l.Cached()
	if obj == nil {
		return geo.Point{}, false
	}
	body, ok := obj.At(obj.Modified)
	if !ok {
		return geo.Point{}, false
	}
	pc, ok := body.(interface{ Point() geo.Point })
	if !ok {
		return geo.Point{}, false
	}
	return pc.Point(), true
}

func (p *PointCommon) Point() geo.Point { return p.Location }

///////////////////////////////////////////////////////////////////////////
// SID / STAR

type ProcedureLeg struct {
	Fix      Link
	AltRange geo.AltRange
	SpeedKt  int32
}

type SID struct {
	Ident     string
	Airport   Link
	Legs      []ProcedureLeg
}

func (*SID) Tag() Tag { return TagSID }

func (s *SID) Link(store Loader) error {
	if err := s.Airport.Load(store); err != nil {
		return err
	}
	for i := range s.Legs {
		if err := s.Legs[i].Fix.Load(store); err != nil {
			return err
		}
	}
	return nil
}

type STAR struct {
	Ident   string
	Airport Link
	Legs    []ProcedureLeg
}

func (*STAR) Tag() Tag { return TagSTAR }

func (s *STAR) Link(store Loader) error {
	if err := s.Airport.Load(store); err != nil {
		return err
	}
	for i := range s.Legs {
		if err := s.Legs[i].Fix.Load(store); err != nil {
			return err
		}
	}
	return nil
}

type DepartureLeg struct {
	SID      Link
	Sequence int
}

func (*DepartureLeg) Tag() Tag { return TagDepartureLeg }
func (d *DepartureLeg) Link(store Loader) error { return d.SID.Load(store) }

type ArrivalLeg struct {
	STAR     Link
	Sequence int
}

func (*ArrivalLeg) Tag() Tag { return TagArrivalLeg }
func (a *ArrivalLeg) Link(store Loader) error { return a.STAR.Load(store) }

///////////////////////////////////////////////////////////////////////////
// Organisation / unit / service / special date

type OrganisationAuthority struct {
	Ident string
	Name  string
}

func (*OrganisationAuthority) Tag() Tag { return TagOrganisationAuthority }

type Unit struct {
	Ident        string
	Name         string
	Organisation Link
}

func (*Unit) Tag() Tag { return TagUnit }
func (u *Unit) Link(store Loader) error { return u.Organisation.Load(store) }

type AirTrafficManagementService struct {
	Ident string
	Unit  Link
	Kind  string
}

func (*AirTrafficManagementService) Tag() Tag { return TagATMService }
func (s *AirTrafficManagementService) Link(store Loader) error { return s.Unit.Load(store) }

// SpecialDate is a named calendar exception (e.g. a public holiday) the
// Timetable's HOL/AFT_HOL/BUSY_FRI special-day patterns resolve
// against.
type SpecialDate struct {
	Name string
	Date string // YYYY-MM-DD
	Kind string // HOL, AFT_HOL, BEF_HOL, BUSY_FRI
}

func (*SpecialDate) Tag() Tag { return TagSpecialDate }
