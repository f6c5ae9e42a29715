// Package restriction implements the condition-tree evaluator and the
// per-plan restriction evaluator.
package restriction

import (
	"adrcore/flightplan"
	"adrcore/geo"
	"adrcore/identifier"
)

// Vertex is one node of the routing graph: a resolved plan waypoint, or
// one of the two synthetic dep/arr sinks.
type Vertex struct {
	Ident       string
	PointUUID   identifier.UUID
	Coord       geo.Point
	AltitudeFt  int32
	IsDeparture bool
	IsArrival   bool
	// PathCode/PathObjectUUID mirror the resolved Waypoint this vertex
	// came from, so SID/STAR leaves can match on the
	// attached procedure rather than just the point.
	PathCode      flightplan.PathCode
	PathObjectUUID identifier.UUID
}

// Edge is one leg of the routing graph: either a plan leg or, for
// allowed restrictions, a candidate alternative path.
type Edge struct {
	From, To   int
	AirwayUUID identifier.UUID // Nil for DCT
	AltRange   geo.AltRange
	CostNM     float64
}

// Graph is the routing graph a plan is evaluated against.
type Graph struct {
	Vertices []Vertex
	Edges    []Edge
}

const (
	depSinkIdent = "__DEP__"
	arrSinkIdent = "__ARR__"
)

// BuildGraph constructs the routing graph from a
// resolved flight plan: a departure sink, one vertex per waypoint, and
// an arrival sink, connected by plan-leg edges.
func BuildGraph(plan *flightplan.Plan) *Graph {
	g := &Graph{}
	g.Vertices = append(g.Vertices, Vertex{Ident: depSinkIdent, IsDeparture: true})
	for _, wp := range plan.Waypoints {
		g.Vertices = append(g.Vertices, Vertex{
			Ident:          wp.Ident,
			PointUUID:      wp.PointObject.UUID,
			Coord:          wp.Coord,
			AltitudeFt:     wp.AltitudeFt,
			PathCode:       wp.PathCode,
			PathObjectUUID: wp.PathObject.UUID,
		})
	}
	g.Vertices = append(g.Vertices, Vertex{Ident: arrSinkIdent, IsArrival: true})

	for i := 0; i+1 < len(g.Vertices); i++ {
		var airway identifier.UUID
		if i > 0 && i < len(plan.Waypoints) && plan.Waypoints[i-1].PathCode == flightplan.PathAirway {
			airway = plan.Waypoints[i-1].PathObject.UUID
		}
		cost := 0.0
		if i > 0 && i+1 < len(g.Vertices)-1 {
			cost = g.Vertices[i].Coord.SphericDistance(g.Vertices[i+1].Coord)
		}
		g.Edges = append(g.Edges, Edge{
			From:       i,
			To:         i + 1,
			AirwayUUID: airway,
			AltRange: geo.AltRange{
				Lo: geo.AltEndpoint{Mode: geo.AltSTD, Alt: minAlt(g.Vertices[i].AltitudeFt, g.Vertices[i+1].AltitudeFt)},
				Hi: geo.AltEndpoint{Mode: geo.AltSTD, Alt: maxAlt(g.Vertices[i].AltitudeFt, g.Vertices[i+1].AltitudeFt)},
			},
			CostNM: cost,
		})
	}
	return g
}

func minAlt(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxAlt(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// DeparturePoint returns the first real waypoint (index 1, past the dep
// sink), the vertex an airport-anchored leaf condition matches against.
func (g *Graph) DeparturePoint() (int, bool) {
	if len(g.Vertices) < 2 {
		return 0, false
	}
	return 1, true
}

// ArrivalPoint returns the last real waypoint (just before the arr sink).
func (g *Graph) ArrivalPoint() (int, bool) {
	if len(g.Vertices) < 2 {
		return 0, false
	}
	return len(g.Vertices) - 2, true
}
