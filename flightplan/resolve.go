// Package flightplan resolves an ICAO field-15 route string into an
// ordered list of waypoints against the store.
package flightplan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"adrcore/geo"
	"adrcore/identifier"
	"adrcore/recompute"
	"adrcore/store"
	"adrcore/tslice"
)

// PathCode classifies how a waypoint was reached.
type PathCode int

const (
	PathSID PathCode = iota
	PathSTAR
	PathAirway
	PathDirect
	PathTerminal
)

func (p PathCode) String() string {
	switch p {
	case PathSID:
		return "sid"
	case PathSTAR:
		return "star"
	case PathAirway:
		return "airway"
	case PathDirect:
		return "direct"
	case PathTerminal:
		return "terminal"
	default:
		return "?"
	}
}

// Waypoint is one resolved vertex of the plan route.
type Waypoint struct {
	Ident       string
	Coord       geo.Point
	AltitudeFt  int32
	PathCode    PathCode
	PathName    string
	PathObject  tslice.Link
	PointObject tslice.Link
	IsExpanded  bool
}

// Request is the flight-plan resolver's input: ICAO field-15 route
// string plus the aircraft/flight descriptor the Aircraft/Flight
// condition leaves need (ICAO field 9/18 equivalents).
type Request struct {
	Departure, Destination string
	Route                  string // ICAO field 15, without SID/STAR's own airport tokens
	AircraftType           string
	EngineCount            int
	AircraftKind           tslice.AircraftKind
	EngineKind             tslice.EngineKind
	Equipment              string
	PBN                    []string
	VerticalSepRVSM        bool
	FlightRules            string
	CivOrMil               string // "civ", "mil", "" = unspecified
	Purpose                tslice.FlightPurpose
	RequestedLevel         int32 // feet
	EOBT                   time.Time
	NoExpand               bool
}

// Plan is the resolver's output.
type Plan struct {
	Request      Request
	Waypoints    []Waypoint
	TotalNM      float64
	TotalMinutes float64
}

// Resolver resolves route strings against a Store.
type Resolver struct {
	store *store.Store
}

func NewResolver(st *store.Store) *Resolver { return &Resolver{store: st} }

// Resolve implements the route resolution rules over req.Route.
func (r *Resolver) Resolve(req Request) (*Plan, error) {
	tokens := strings.Fields(req.Route)
	plan := &Plan{Request: req}

	curAlt := req.RequestedLevel
	var prevCoord geo.Point
	havePrev := false

	depObj, err := r.resolveAirport(req.Departure)
	if err == nil && depObj != nil {
		if pc, ok := depObj.(interface{ Point() geo.Point }); ok {
			prevCoord = pc.Point()
			havePrev = true
		}
	}

	pendingDCT := false
	var pendingAirway string

	for i := 0; i < len(tokens); i++ {
		// The CFMU B2B ingress permits lower/mixed-case tokens; idents and
		// keywords are canonically upper-case in the store.
		tok := strings.ToUpper(tokens[i])
		switch {
		case tok == "DCT":
			pendingDCT = true
			continue
		case isAltitudeSpeedToken(tok):
			if alt, ok := parseAltitudeToken(tok); ok {
				curAlt = alt
			}
			continue
		case looksLikeAirway(tok):
			pendingAirway = tok
			continue
		}

		wp, err := r.resolveToken(tok, req.Departure, req.EOBT, prevCoord, havePrev)
		if err != nil {
			return nil, fmt.Errorf("flightplan: token %q: %w", tok, err)
		}
		wp.AltitudeFt = curAlt

		switch {
		case pendingDCT:
			wp.PathCode = PathDirect
		case pendingAirway != "":
			wp.PathCode = PathAirway
			wp.PathName = pendingAirway
			if !req.NoExpand {
				expanded, err := r.expandAirway(pendingAirway, plan.lastWaypoint(), wp)
				if err == nil && len(expanded) > 0 {
					plan.Waypoints = append(plan.Waypoints, expanded...)
					wp.IsExpanded = true
				}
			}
		default:
			wp.PathCode = PathDirect
		}

		plan.Waypoints = append(plan.Waypoints, wp)
		prevCoord = wp.Coord
		havePrev = true
		pendingDCT = false
		pendingAirway = ""
	}

	r.attachProcedures(req, plan)
	r.computeTotals(plan)
	return plan, nil
}

func (p *Plan) lastWaypoint() *Waypoint {
	if len(p.Waypoints) == 0 {
		return nil
	}
	return &p.Waypoints[len(p.Waypoints)-1]
}

// resolveToken matches a route token against the store's ident index,
// considering each candidate's time-slice valid at the EOBT instant,
// and disambiguates multiple matches by proximity to the previously
// resolved coordinate. No ±24h window around departure is applied, and
// the departure argument is not used.
func (r *Resolver) resolveToken(ident, departure string, eobt time.Time, prev geo.Point, havePrev bool) (Waypoint, error) {
	candidates := []tslice.Tag{tslice.TagDesignatedPoint, tslice.TagNavaid, tslice.TagAirport}
	var best Waypoint
	bestDist := -1.0
	found := false

	for _, tag := range candidates {
		uuids, err := r.store.FindByIdent(ident, tag)
		if err != nil {
			return Waypoint{}, err
		}
		for _, u := range uuids {
			obj, err := r.store.Load(u)
			if err != nil || obj == nil {
				continue
			}
			var t int64 = -1 << 62
			if !eobt.IsZero() {
				t = eobt.Unix()
			}
			body, ok := obj.At(t)
			if !ok {
				continue
			}
			pc, ok := body.(interface{ Point() geo.Point })
			if !ok {
				continue
			}
			p := pc.Point()
			d := 0.0
			if havePrev {
				d = prev.SphericDistance(p)
			}
			if !found || d < bestDist {
				best = Waypoint{
					Ident:       ident,
					Coord:       p,
					PointObject: tslice.NewLink(u),
				}
				bestDist = d
				found = true
			}
		}
	}
	if !found {
		return Waypoint{}, fmt.Errorf("unresolved ident %q", ident)
	}
	return best, nil
}

func (r *Resolver) resolveAirport(icao string) (tslice.Body, error) {
	uuids, err := r.store.FindByIdent(icao, tslice.TagAirport)
	if err != nil || len(uuids) == 0 {
		return nil, err
	}
	obj, err := r.store.Load(uuids[0])
	if err != nil || obj == nil {
		return nil, err
	}
	body, _ := obj.At(-1 << 62)
	return body, nil
}

// expandAirway looks up the named airway's RouteSegments between from
// and to and returns their intermediate points: an airway designator
// triggers an airway lookup and expansion.
func (r *Resolver) expandAirway(name string, from, to *Waypoint) ([]Waypoint, error) {
	uuids, err := r.store.FindByIdent(name, tslice.TagRoute)
	if err != nil || len(uuids) == 0 {
		return nil, err
	}
	segUUIDs, err := r.store.FindDependsOn(uuids[0])
	if err != nil {
		return nil, err
	}
	var out []Waypoint
	for _, su := range segUUIDs {
		obj, err := r.store.Load(su)
		if err != nil || obj == nil {
			continue
		}
		body, ok := obj.At(-1 << 62)
		if !ok {
			continue
		}
		seg, ok := body.(*tslice.RouteSegment)
		if !ok {
			continue
		}
		if err := seg.Start.Load(r.store); err != nil {
			continue
		}
		if pt, ok := pointOfLink(seg.Start); ok {
			out = append(out, Waypoint{Coord: pt, PathCode: PathAirway, PathName: name})
		}
	}
	return out, nil
}

func pointOfLink(l tslice.Link) (geo.Point, bool) {
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

// attachProcedures selects the SID/STAR procedure belonging to the
// departure/destination airport whose terminal fix matches the first/
// last en-route waypoint.
func (r *Resolver) attachProcedures(req Request, plan *Plan) {
	if len(plan.Waypoints) == 0 {
		return
	}
	if depAirport, err := r.store.FindByIdent(req.Departure, tslice.TagAirport); err == nil && len(depAirport) > 0 {
		if u, ok := r.findProcedureTerminating(depAirport[0], true, plan.Waypoints[0].Ident); ok {
			plan.Waypoints[0].PathCode = PathSID
			plan.Waypoints[0].PathObject = tslice.NewLink(u)
		}
	}
	last := len(plan.Waypoints) - 1
	if destAirport, err := r.store.FindByIdent(req.Destination, tslice.TagAirport); err == nil && len(destAirport) > 0 {
		if u, ok := r.findProcedureTerminating(destAirport[0], false, plan.Waypoints[last].Ident); ok {
			plan.Waypoints[last].PathCode = PathSTAR
			plan.Waypoints[last].PathObject = tslice.NewLink(u)
		}
	}
}

// findProcedureTerminating scans the SIDs (or STARs) attached to
// airport among its dependents for one whose terminating fix (the last
// leg's fix for a SID, the first leg's fix for a STAR) has the given
// ident.
func (r *Resolver) findProcedureTerminating(airport identifier.UUID, isSID bool, ident string) (identifier.UUID, bool) {
	deps, err := r.store.FindDependsOn(airport)
	if err != nil {
		return identifier.Nil, false
	}
	for _, u := range deps {
		obj, err := r.store.Load(u)
		if err != nil || obj == nil {
			continue
		}
		body, ok := obj.At(-1 << 62)
		if !ok {
			continue
		}
		var legs []tslice.ProcedureLeg
		switch s := body.(type) {
		case *tslice.SID:
			if !isSID {
				continue
			}
			legs = s.Legs
		case *tslice.STAR:
			if isSID {
				continue
			}
			legs = s.Legs
		default:
			continue
		}
		if len(legs) == 0 {
			continue
		}
		var terminal tslice.Link
		if isSID {
			terminal = legs[len(legs)-1].Fix
		} else {
			terminal = legs[0].Fix
		}
		if terminal.IsNil() {
			continue
		}
		if err := terminal.Load(r.store); err != nil {
			continue
		}
		fixObj := terminal.Cached()
		if fixObj == nil {
			continue
		}
		fixBody, ok := fixObj.At(-1 << 62)
		if !ok {
			continue
		}
		if identOf(fixBody) == ident {
			return u, true
		}
	}
	return identifier.Nil, false
}

func identOf(b tslice.Body) string {
	switch v := b.(type) {
	case *tslice.Airport:
		return v.Ident
	case *tslice.Navaid:
		return v.Ident
	case *tslice.DesignatedPoint:
		return v.Ident
	default:
		return ""
	}
}

// computeTotals sums the leg distances into the plan total, consulting
// (and populating) the store's dct_legs cache for direct legs between
// two resolved point objects, so repeated resolutions over the same
// city pair skip the great-circle recomputation.
func (r *Resolver) computeTotals(plan *Plan) {
	for i := 1; i < len(plan.Waypoints); i++ {
		prev, cur := &plan.Waypoints[i-1], &plan.Waypoints[i]
		d, ok := r.cachedDCTDistance(prev, cur)
		if !ok {
			d = prev.Coord.SphericDistance(cur.Coord)
			r.cacheDCTDistance(prev, cur, d)
		}
		plan.TotalNM += d
	}
	const cruiseKt = 450.0
	plan.TotalMinutes = plan.TotalNM / cruiseKt * 60
}

// cachedDCTDistance returns the store's cached direct-leg distance
// between two resolved point objects, if the leg is a direct leg and
// both endpoints carry a UUID worth keying on.
func (r *Resolver) cachedDCTDistance(prev, cur *Waypoint) (float64, bool) {
	if cur.PathCode != PathDirect || prev.PointObject.IsNil() || cur.PointObject.IsNil() {
		return 0, false
	}
	d, ok, err := r.store.FindDCTLeg(prev.PointObject.UUID, cur.PointObject.UUID)
	if err != nil || !ok {
		return 0, false
	}
	return d, true
}

func (r *Resolver) cacheDCTDistance(prev, cur *Waypoint, d float64) {
	if cur.PathCode != PathDirect || prev.PointObject.IsNil() || cur.PointObject.IsNil() {
		return
	}
	_ = r.store.IndexDCTLeg(prev.PointObject.UUID, cur.PointObject.UUID, d)
}

// isAltitudeSpeedToken recognises ICAO field-15 speed/level change
// tokens such as "N0450F350" or "M082F370".
func isAltitudeSpeedToken(tok string) bool {
	return len(tok) >= 8 && (tok[0] == 'N' || tok[0] == 'M' || tok[0] == 'K') &&
		(strings.ContainsRune(tok, 'F') || strings.ContainsRune(tok, 'A') || strings.ContainsRune(tok, 'S') || strings.ContainsRune(tok, 'M'))
}

func parseAltitudeToken(tok string) (int32, bool) {
	idx := strings.IndexAny(tok, "FAS")
	if idx < 0 || idx+1 >= len(tok) {
		return 0, false
	}
	level := tok[idx:]
	switch level[0] {
	case 'F':
		fl, err := strconv.Atoi(level[1:])
		if err != nil {
			return 0, false
		}
		return int32(fl) * 100, true
	case 'A':
		ft, err := strconv.Atoi(level[1:])
		if err != nil {
			return 0, false
		}
		return int32(ft) * 100, true
	case 'S':
		m, err := strconv.Atoi(level[1:])
		if err != nil {
			return 0, false
		}
		return int32(float64(m) * 10 * 3.28084), true
	}
	return 0, false
}

func looksLikeAirway(tok string) bool {
	if len(tok) < 2 || len(tok) > 6 {
		return false
	}
	hasLetter, hasDigit := false, false
	for _, c := range tok {
		switch {
		case c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		default:
			return false
		}
	}
	return hasLetter && hasDigit
}

// FixInvalidAltitudes adjusts legs whose cruising altitude lies below
// terrain + mandatory clearance, choosing the lowest valid semicircular
// level above terrain.
func FixInvalidAltitudes(plan *Plan, terrain recompute.Terrain, clearanceFt int32) {
	if terrain == nil {
		return
	}
	for i := range plan.Waypoints {
		wp := &plan.Waypoints[i]
		elev, ok := terrain.ElevationFt(wp.Coord.LatDeg(), wp.Coord.LonDeg())
		if !ok {
			continue
		}
		minAlt := int32(elev) + clearanceFt
		if wp.AltitudeFt >= minAlt {
			continue
		}
		wp.AltitudeFt = semicircularLevelAbove(minAlt, wp.Coord.Bearing(nextOrSelf(plan.Waypoints, i)))
	}
}

func nextOrSelf(wps []Waypoint, i int) geo.Point {
	if i+1 < len(wps) {
		return wps[i+1].Coord
	}
	return wps[i].Coord
}

// semicircularLevelAbove returns the lowest flight level at or above
// minAlt that is valid for the given track under the semicircular
// rule: odd thousands of feet (FL050, 070, ...) for tracks 000-179°,
// even thousands for 180-359°.
func semicircularLevelAbove(minAlt int32, trackDeg float64) int32 {
	wantOdd := trackDeg < 180
	level := ((minAlt + 999) / 1000) * 1000 // round up to the next thousand
	stepIsOdd := (level/1000)%2 != 0
	if stepIsOdd != wantOdd {
		level += 1000
	}
	return level
}
