package restriction

import (
	"fmt"

	"adrcore/flightplan"
	"adrcore/geo"
	"adrcore/identifier"
	"adrcore/tslice"
)

// Match is the result of evaluating a Condition against a Graph: besides
// the boolean verdict it carries the vertex/edge sets that justified it.
// RefVertex is the anchor vertex for a leaf whose RefLocation bit is
// set, -1 if none applies.
type Match struct {
	Matched   bool
	Vertices  map[int]bool
	Edges     map[int]bool
	RefVertex int
}

func noMatch() Match { return Match{RefVertex: -1} }

func leafMatch(refVertex int, vertices, edges []int) Match {
	m := Match{Matched: true, RefVertex: refVertex, Vertices: map[int]bool{}, Edges: map[int]bool{}}
	for _, v := range vertices {
		m.Vertices[v] = true
	}
	for _, e := range edges {
		m.Edges[e] = true
	}
	return m
}

func mergeInto(dst *Match, src Match) {
	if dst.Vertices == nil {
		dst.Vertices = map[int]bool{}
	}
	if dst.Edges == nil {
		dst.Edges = map[int]bool{}
	}
	for k := range src.Vertices {
		dst.Vertices[k] = true
	}
	for k := range src.Edges {
		dst.Edges[k] = true
	}
	if dst.RefVertex < 0 {
		dst.RefVertex = src.RefVertex
	}
}

// EvalEnv is what MatchCondition needs: the routing graph, the resolved
// plan it was built from (for plan-global predicates like Aircraft and
// Flight), and the store to resolve Link-held geometry lazily.
type EvalEnv struct {
	Graph *Graph
	Plan  *flightplan.Plan
	Store tslice.Loader
	// AUP resolves an airspace's activation status, consulted by
	// crossing_airspace_active; nil falls back to a geometric-only match
	// (no activation schedule available), e.g. in tests that stub Store
	// without also providing one.
	AUP AUPLookup
	// AtTime is the instant TimeSlice composition (Object.At) uses when
	// resolving a condition's linked objects (typically the plan's EOBT).
	AtTime int64
	Trace  []string // appended to when the owning rule has Trace set
}

func (env *EvalEnv) trace(format string, args ...any) {
	if env.Trace == nil {
		return
	}
	env.Trace = append(env.Trace, fmt.Sprintf(format, args...))
}

// MatchCondition evaluates a single condition-tree node against env,
// dispatching on its concrete type.
func MatchCondition(c tslice.Condition, env *EvalEnv) Match {
	switch n := c.(type) {
	case nil:
		return noMatch()
	case *tslice.CondConstantNode:
		if n.Value {
			return leafMatch(-1, nil, nil)
		}
		return noMatch()
	case *tslice.CondCrossingAirspace1Node:
		return matchCrossingAirspace1(n, env)
	case *tslice.CondCrossingAirspace2Node:
		return matchCrossingAirspace2(n, env)
	case *tslice.CondCrossingPointNode:
		return matchCrossingPoint(n, env)
	case *tslice.CondCrossingSIDOrSTARNode:
		return matchCrossingSIDOrSTAR(n, env)
	case *tslice.CondCrossingDCTNode:
		return matchCrossingDCT(n, env)
	case *tslice.CondCrossingAirwayNode:
		return matchCrossingAirway(n.Start, n.End, n.Route, n.RefLocation, env)
	case *tslice.CondCrossingAirwayAvailableNode:
		// Availability-status filtering (open/closed/conditional, CDR
		// class) needs the RouteSegment's own Availability list, which a
		// condition leaf doesn't carry a reference to directly -- the
		// leaf only names start/end/route. "Available" is approximated
		// as "the airway segment is used at all" (same test as
		// crossing_airway). Neither status nor CDR class is checked
		// anywhere else: the evaluator's alternative matching also
		// compares UUIDs only.
		return matchCrossingAirway(n.Start, n.End, n.Route, n.RefLocation, env)
	case *tslice.CondDctLimitNode:
		return matchDctLimit(n, env)
	case *tslice.CondAircraftNode:
		return matchAircraft(n, env)
	case *tslice.CondFlightNode:
		return matchFlight(n, env)
	case *tslice.CondDepArrPointNode:
		return matchDepArrPoint(n, env)
	case *tslice.CondDepArrAirspaceNode:
		return matchDepArrAirspace(n, env)
	case *tslice.CondCrossingAirspaceActiveNode:
		return matchCrossingAirspaceActive(n, env)
	case *tslice.CondAndNode:
		return matchAnd(n, env)
	case *tslice.CondSequenceNode:
		return matchSequence(n, env)
	default:
		return noMatch()
	}
}

func matchCrossingAirspace1(n *tslice.CondCrossingAirspace1Node, env *EvalEnv) Match {
	asp, err := loadAirspace(env, n.Airspace)
	if err != nil || asp == nil {
		return noMatch()
	}
	poly := airspacePolygon(asp)
	var hit []int
	for i, v := range env.Graph.Vertices {
		if v.IsDeparture || v.IsArrival {
			continue
		}
		if poly.Contains(v.Coord) {
			hit = append(hit, i)
		}
	}
	if len(hit) == 0 {
		return noMatch()
	}
	ref := -1
	if n.IsReference {
		ref = hit[0]
	}
	return leafMatch(ref, hit, nil)
}

// matchCrossingAirspaceActive is crossing_airspace_1 gated by the
// airspace's aup activation status at the plan's evaluation time: a
// geometric crossing of an airspace that the AUP marks inactive over
// AtTime does not match. With no AUP row for the airspace, or no
// AUPLookup wired into env at all, it falls back to the plain
// geometric crossing test.
func matchCrossingAirspaceActive(n *tslice.CondCrossingAirspaceActiveNode, env *EvalEnv) Match {
	m := matchCrossingAirspace1(&tslice.CondCrossingAirspace1Node{RefLocation: n.RefLocation, Airspace: n.Airspace}, env)
	if !m.Matched || env.AUP == nil || n.Airspace.IsNil() {
		return m
	}
	status, ok, err := env.AUP.FindAUP(n.Airspace.UUID, env.AtTime)
	if err != nil || !ok {
		return m
	}
	if status != AUPActive {
		return noMatch()
	}
	return m
}

func matchCrossingAirspace2(n *tslice.CondCrossingAirspace2Node, env *EvalEnv) Match {
	from, err1 := loadAirspace(env, n.From)
	to, err2 := loadAirspace(env, n.To)
	if err1 != nil || err2 != nil || from == nil || to == nil {
		return noMatch()
	}
	fromPoly, toPoly := airspacePolygon(from), airspacePolygon(to)
	for i := 0; i+1 < len(env.Graph.Vertices); i++ {
		a, b := env.Graph.Vertices[i], env.Graph.Vertices[i+1]
		if fromPoly.Contains(a.Coord) && toPoly.Contains(b.Coord) {
			ref := -1
			if n.IsReference {
				ref = i + 1
			}
			return leafMatch(ref, []int{i, i + 1}, []int{i})
		}
	}
	return noMatch()
}

func matchCrossingPoint(n *tslice.CondCrossingPointNode, env *EvalEnv) Match {
	if n.Point.IsNil() {
		return noMatch()
	}
	var hit []int
	for i, v := range env.Graph.Vertices {
		if v.IsDeparture || v.IsArrival || v.PointUUID != n.Point.UUID {
			continue
		}
		if !n.AltRange.Contains(v.AltitudeFt, geo.AltSTD) {
			continue
		}
		hit = append(hit, i)
	}
	if len(hit) == 0 {
		return noMatch()
	}
	ref := -1
	if n.IsReference {
		ref = hit[0]
	}
	return leafMatch(ref, hit, nil)
}

func matchCrossingSIDOrSTAR(n *tslice.CondCrossingSIDOrSTARNode, env *EvalEnv) Match {
	if n.Procedure.IsNil() {
		return noMatch()
	}
	wantCode := flightplan.PathSID
	if n.IsArrival {
		wantCode = flightplan.PathSTAR
	}
	for i, v := range env.Graph.Vertices {
		if v.PathCode == wantCode && v.PathObjectUUID == n.Procedure.UUID {
			ref := -1
			if n.IsReference {
				ref = i
			}
			return leafMatch(ref, []int{i}, nil)
		}
	}
	return noMatch()
}

func matchCrossingDCT(n *tslice.CondCrossingDCTNode, env *EvalEnv) Match {
	if n.Start.UUID == n.End.UUID {
		// a zero-length leg never matches.
		return noMatch()
	}
	for ei, e := range env.Graph.Edges {
		if !identifier.IsNil(e.AirwayUUID) {
			continue // DCT only
		}
		a, b := env.Graph.Vertices[e.From], env.Graph.Vertices[e.To]
		if (a.PointUUID == n.Start.UUID && b.PointUUID == n.End.UUID) ||
			(a.PointUUID == n.End.UUID && b.PointUUID == n.Start.UUID) {
			ref := -1
			if n.IsReference {
				ref = e.To
			}
			return leafMatch(ref, []int{e.From, e.To}, []int{ei})
		}
	}
	return noMatch()
}

func matchCrossingAirway(start, end, route tslice.Link, refLoc tslice.RefLocation, env *EvalEnv) Match {
	if start.UUID == end.UUID {
		return noMatch()
	}
	startIdx, endIdx := -1, -1
	for i, v := range env.Graph.Vertices {
		if v.PointUUID == start.UUID {
			startIdx = i
		}
		if v.PointUUID == end.UUID {
			endIdx = i
		}
	}
	if startIdx < 0 || endIdx < 0 {
		return noMatch()
	}
	lo, hi := startIdx, endIdx
	if lo > hi {
		lo, hi = hi, lo
	}
	var edges []int
	for ei := lo; ei < hi; ei++ {
		e := env.Graph.Edges[ei]
		if route.IsNil() || e.AirwayUUID != route.UUID {
			return noMatch() // not a contiguous run of this airway
		}
		edges = append(edges, ei)
	}
	var vertices []int
	for i := lo; i <= hi; i++ {
		vertices = append(vertices, i)
	}
	ref := -1
	if refLoc.IsReference {
		ref = endIdx
	}
	return leafMatch(ref, vertices, edges)
}

func matchDctLimit(n *tslice.CondDctLimitNode, env *EvalEnv) Match {
	for ei, e := range env.Graph.Edges {
		if !identifier.IsNil(e.AirwayUUID) {
			continue
		}
		if e.CostNM > float64(n.LimitNM) {
			return leafMatch(-1, []int{e.From, e.To}, []int{ei})
		}
	}
	return noMatch()
}

func matchAircraft(n *tslice.CondAircraftNode, env *EvalEnv) Match {
	req := env.Plan.Request
	if n.ICAOType != "" && !wildcardMatch(n.ICAOType, req.AircraftType) {
		return noMatch()
	}
	if n.EngineCount != 0 && n.EngineCount != req.EngineCount {
		return noMatch()
	}
	if n.Kind != tslice.AircraftAny && n.Kind != req.AircraftKind {
		return noMatch()
	}
	if n.EngineKind != tslice.EngineAny && n.EngineKind != req.EngineKind {
		return noMatch()
	}
	if n.NavSpec != "" && !hasEquipment(req, n.NavSpec) {
		return noMatch()
	}
	if n.VerticalSep != "" {
		wantRVSM := n.VerticalSep == "RVSM"
		if wantRVSM != req.VerticalSepRVSM {
			return noMatch()
		}
	}
	return leafMatch(-1, nil, nil)
}

func matchFlight(n *tslice.CondFlightNode, env *EvalEnv) Match {
	req := env.Plan.Request
	if n.CivOrMil != "" && req.CivOrMil != "" && n.CivOrMil != req.CivOrMil {
		return noMatch()
	}
	if n.Purpose != tslice.FlightAny && n.Purpose != req.Purpose {
		return noMatch()
	}
	return leafMatch(-1, nil, nil)
}

func matchDepArrPoint(n *tslice.CondDepArrPointNode, env *EvalEnv) Match {
	idx, ok := anchorIndex(env.Graph, n.IsArrival)
	if !ok || env.Graph.Vertices[idx].PointUUID != n.Point.UUID {
		return noMatch()
	}
	ref := -1
	if n.IsReference {
		ref = idx
	}
	return leafMatch(ref, []int{idx}, nil)
}

func matchDepArrAirspace(n *tslice.CondDepArrAirspaceNode, env *EvalEnv) Match {
	idx, ok := anchorIndex(env.Graph, n.IsArrival)
	if !ok {
		return noMatch()
	}
	asp, err := loadAirspace(env, n.Airspace)
	if err != nil || asp == nil {
		return noMatch()
	}
	if !airspacePolygon(asp).Contains(env.Graph.Vertices[idx].Coord) {
		return noMatch()
	}
	ref := -1
	if n.IsReference {
		ref = idx
	}
	return leafMatch(ref, []int{idx}, nil)
}

func anchorIndex(g *Graph, arrival bool) (int, bool) {
	if arrival {
		return g.ArrivalPoint()
	}
	return g.DeparturePoint()
}

func matchAnd(n *tslice.CondAndNode, env *EvalEnv) Match {
	result := true
	all := Match{RefVertex: -1, Vertices: map[int]bool{}, Edges: map[int]bool{}}
	for i, ch := range n.Children {
		m := MatchCondition(ch, env)
		v := m.Matched
		if i < len(n.InvertChild) && n.InvertChild[i] {
			v = !v
		}
		if v {
			mergeInto(&all, m)
		}
		result = result && v
	}
	if n.FinalInvert {
		result = !result
	}
	if !result {
		return noMatch()
	}
	all.Matched = true
	return all
}

func matchSequence(n *tslice.CondSequenceNode, env *EvalEnv) Match {
	all := Match{Matched: true, RefVertex: -1, Vertices: map[int]bool{}, Edges: map[int]bool{}}
	lastMax := -1
	for _, ch := range n.Children {
		m := MatchCondition(ch, env)
		if !m.Matched {
			return noMatch()
		}
		if len(m.Vertices) > 0 {
			minV, maxV := minMaxKeys(m.Vertices)
			if minV <= lastMax {
				return noMatch() // overlapping/out-of-order match
			}
			lastMax = maxV
		}
		mergeInto(&all, m)
	}
	return all
}

func minMaxKeys(m map[int]bool) (min, max int) {
	first := true
	for k := range m {
		if first {
			min, max = k, k
			first = false
			continue
		}
		if k < min {
			min = k
		}
		if k > max {
			max = k
		}
	}
	return min, max
}

func loadAirspace(env *EvalEnv, l tslice.Link) (*tslice.Airspace, error) {
	if l.IsNil() {
		return nil, nil
	}
	ll := l
	if err := ll.Load(env.Store); err != nil {
		return nil, err
	}
	obj := ll.Cached()
	if obj == nil {
		return nil, nil
	}
	body, ok := obj.At(env.AtTime)
	if !ok {
		return nil, nil
	}
	asp, ok := body.(*tslice.Airspace)
	if !ok {
		return nil, nil
	}
	return asp, nil
}

// airspacePolygon assembles an Airspace's components into one
// MultiPolygonHole: base and union components are simply concatenated,
// since MultiPolygonHole.Contains already tests "in any ring", which is
// exactly union semantics.
func airspacePolygon(asp *tslice.Airspace) geo.MultiPolygonHole {
	var out geo.MultiPolygonHole
	for _, c := range asp.Components {
		out = append(out, c.FullGeometry...)
	}
	return out
}

func wildcardMatch(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if value == "" {
		return false
	}
	pi, vi := 0, 0
	var starIdx, matchIdx int = -1, 0
	for vi < len(value) {
		if pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == value[vi]) {
			pi++
			vi++
		} else if pi < len(pattern) && pattern[pi] == '*' {
			starIdx = pi
			matchIdx = vi
			pi++
		} else if starIdx != -1 {
			pi = starIdx + 1
			matchIdx++
			vi = matchIdx
		} else {
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

func hasEquipment(req flightplan.Request, spec string) bool {
	if req.Equipment != "" && contains(req.Equipment, spec) {
		return true
	}
	for _, p := range req.PBN {
		if p == spec {
			return true
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
