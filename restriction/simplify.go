package restriction

import (
	"adrcore/flightplan"
	"adrcore/geo"
	"adrcore/tslice"
)

// SimplifyContext is everything known about the plan/query before the
// full per-vertex routing graph is built, used to fold constant leaves
// and prune alternatives up front so validating many plans against
// thousands of rules stays fast.
type SimplifyContext struct {
	Bbox         geo.Rect
	AltRange     geo.AltRange
	AircraftType string
	Equipment    string
	PBN          []string
	FlightType   tslice.FlightPurpose
	CivOrMil     string
	Dep, Dest    string
	TimeRange    [2]int64
}

// SimplifyRestriction statically reduces fr's condition against ctx
// (constant-folding decided leaves, propagating through And/Sequence)
// and prunes alternatives whose altitude range is disjoint from the
// query, returning an equivalent, typically smaller, rule.
func SimplifyRestriction(fr *tslice.FlightRestriction, ctx SimplifyContext) *tslice.FlightRestriction {
	out := *fr
	out.Condition = SimplifyCondition(fr.Condition, ctx)
	var kept []tslice.RouteAlternative
	for _, alt := range fr.Alternatives {
		if altDisjointFromQuery(alt, ctx.AltRange) {
			continue
		}
		kept = append(kept, alt)
	}
	out.Alternatives = kept
	return &out
}

// SimplifyCondition constant-folds any leaf ctx can decide statically
// and propagates the fold through And/Sequence nodes.
func SimplifyCondition(c tslice.Condition, ctx SimplifyContext) tslice.Condition {
	switch n := c.(type) {
	case nil:
		return nil
	case *tslice.CondAircraftNode:
		if v, ok := decideAircraftStatic(n, ctx); ok {
			return &tslice.CondConstantNode{Value: v}
		}
		return n
	case *tslice.CondFlightNode:
		if v, ok := decideFlightStatic(n, ctx); ok {
			return &tslice.CondConstantNode{Value: v}
		}
		return n
	case *tslice.CondAndNode:
		children := make([]tslice.Condition, len(n.Children))
		for i, ch := range n.Children {
			children[i] = SimplifyCondition(ch, ctx)
		}
		allConst := true
		result := true
		for i, ch := range children {
			cc, ok := ch.(*tslice.CondConstantNode)
			if !ok {
				allConst = false
				break
			}
			v := cc.Value
			if i < len(n.InvertChild) && n.InvertChild[i] {
				v = !v
			}
			result = result && v
		}
		if allConst {
			if n.FinalInvert {
				result = !result
			}
			return &tslice.CondConstantNode{Value: result}
		}
		return &tslice.CondAndNode{Children: children, InvertChild: n.InvertChild, FinalInvert: n.FinalInvert}
	case *tslice.CondSequenceNode:
		children := make([]tslice.Condition, 0, len(n.Children))
		for _, ch := range n.Children {
			s := SimplifyCondition(ch, ctx)
			if cc, ok := s.(*tslice.CondConstantNode); ok && !cc.Value {
				return &tslice.CondConstantNode{Value: false}
			}
			children = append(children, s)
		}
		if len(children) == 0 {
			return &tslice.CondConstantNode{Value: true}
		}
		return &tslice.CondSequenceNode{Children: children}
	default:
		return c
	}
}

func decideAircraftStatic(n *tslice.CondAircraftNode, ctx SimplifyContext) (bool, bool) {
	if n.ICAOType != "" && ctx.AircraftType != "" {
		if !wildcardMatch(n.ICAOType, ctx.AircraftType) {
			return false, true
		}
	}
	if n.NavSpec != "" && (ctx.Equipment != "" || len(ctx.PBN) > 0) {
		req := flightplan.Request{Equipment: ctx.Equipment, PBN: ctx.PBN}
		if !hasEquipment(req, n.NavSpec) {
			return false, true
		}
	}
	// Cannot positively decide "true" from partial context; only
	// certain negatives are foldable without the full plan.
	return false, false
}

func decideFlightStatic(n *tslice.CondFlightNode, ctx SimplifyContext) (bool, bool) {
	if n.CivOrMil != "" && ctx.CivOrMil != "" && n.CivOrMil != ctx.CivOrMil {
		return false, true
	}
	if n.Purpose != tslice.FlightAny && ctx.FlightType != tslice.FlightAny && n.Purpose != ctx.FlightType {
		return false, true
	}
	return false, false
}

// altDisjointFromQuery reports whether alt's elements all have an
// altitude range disjoint from q, meaning this alternative cannot apply
// to the query and can be pruned.
func altDisjointFromQuery(alt tslice.RouteAlternative, q geo.AltRange) bool {
	if len(alt.Elements) == 0 {
		return false
	}
	for _, el := range alt.Elements {
		if !rangeEmpty(el.AltRange.Merge(q)) {
			return false
		}
	}
	return true
}

func rangeEmpty(r geo.AltRange) bool {
	if r.Lo.Mode == geo.AltFloor || r.Hi.Mode == geo.AltCeiling {
		return false
	}
	return r.Lo.Alt > r.Hi.Alt
}
