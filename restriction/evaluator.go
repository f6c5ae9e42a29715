package restriction

import (
	"fmt"

	"adrcore/alog"
	"adrcore/flightplan"
	"adrcore/identifier"
	"adrcore/store"
	"adrcore/tslice"
)

// AUP activation statuses, mirroring the values ingestion writes into
// the store's aup table.
const (
	AUPInactive int32 = 0
	AUPActive   int32 = 1
)

// AUPLookup resolves an airspace's activation status at a point in
// time; *store.Store satisfies it via FindAUP.
type AUPLookup interface {
	FindAUP(u identifier.UUID, atTime int64) (status int32, ok bool, err error)
}

// MessageLevel tags a Message's severity.
type MessageLevel uint8

const (
	LevelInfo MessageLevel = iota
	LevelWarning
	LevelError
)

func (l MessageLevel) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	default:
		return "error"
	}
}

// Message is one evaluator-emitted note, keyed by rule id and the
// vertex/edge sets that produced it.
type Message struct {
	Level     MessageLevel
	RuleIdent string
	Text      string
	Vertices  []int
	Edges     []int
}

// RestrictionResult is emitted per fired-and-failed rule; "allowed" rules
// are informational and never produce one.
type RestrictionResult struct {
	RuleIdent   string
	Kind        tslice.RestrictionKind
	Reason      string
	Alternative *tslice.RouteAlternative // cited for a failed mandatory rule
	Vertices    []int
	Edges       []int
}

// EvaluationResult is the outcome of validating one plan against every
// active restriction.
type EvaluationResult struct {
	OK       bool
	Results  []RestrictionResult
	Messages []Message
}

// Counts returns the error/warning/info message tallies the original
// CFMUValidator reports alongside its pass/fail verdict.
func (r *EvaluationResult) Counts() (errors, warnings, infos int) {
	for _, m := range r.Messages {
		switch m.Level {
		case LevelError:
			errors++
		case LevelWarning:
			warnings++
		default:
			infos++
		}
	}
	return
}

// Evaluator runs the per-plan restriction evaluation procedure against
// a Store.
type Evaluator struct {
	store *store.Store
	log   *alog.Logger
}

func NewEvaluator(st *store.Store, lg *alog.Logger) *Evaluator {
	return &Evaluator{store: st, log: lg}
}

// Evaluate loads every flight_restriction object active at atTime,
// filters out disabled and obviously-irrelevant rules, evaluates each
// survivor's condition over the plan's routing graph, and accumulates a
// RestrictionResult for each fired-and-failed rule.
func (ev *Evaluator) Evaluate(plan *flightplan.Plan, atTime int64) (*EvaluationResult, error) {
	graph := BuildGraph(plan)
	res := &EvaluationResult{OK: true}

	uuids, err := ev.store.FindByTag(tslice.TagFlightRestriction)
	if err != nil {
		return nil, fmt.Errorf("restriction: enumerate rules: %w", err)
	}

	for _, u := range uuids {
		obj, err := ev.store.Load(u)
		if err != nil {
			ev.log.Warnf("restriction: load %s: %v", u, err)
			res.Messages = append(res.Messages, Message{Level: LevelWarning, Text: fmt.Sprintf("failed to load rule %s: %v", u, err)})
			continue
		}
		if obj == nil {
			continue
		}
		body, ok := obj.At(atTime)
		if !ok {
			continue // not active at the plan's time
		}
		fr, ok := body.(*tslice.FlightRestriction)
		if !ok || !fr.Enabled {
			continue
		}
		if err := fr.Link(ev.store); err != nil {
			ev.log.Warnf("restriction: link rule %s: %v", fr.Ident, err)
			continue
		}

		env := &EvalEnv{Graph: graph, Plan: plan, Store: ev.store, AUP: ev.store, AtTime: atTime}
		if fr.Trace {
			env.Trace = []string{}
		}

		if isObviouslyIrrelevant(fr, plan) {
			if fr.Trace {
				res.Messages = append(res.Messages, Message{Level: LevelInfo, RuleIdent: fr.Ident, Text: "skipped: structurally irrelevant to this plan"})
			}
			continue
		}

		m := MatchCondition(fr.Condition, env)

		if fr.Trace {
			res.Messages = append(res.Messages, Message{
				Level: LevelInfo, RuleIdent: fr.Ident,
				Text:     fmt.Sprintf("condition evaluated: matched=%v", m.Matched),
				Vertices: setKeys(m.Vertices), Edges: setKeys(m.Edges),
			})
			for _, t := range env.Trace {
				res.Messages = append(res.Messages, Message{Level: LevelInfo, RuleIdent: fr.Ident, Text: t})
			}
		}

		ev.applyRule(fr, m, env, res)
	}
	return res, nil
}

func (ev *Evaluator) applyRule(fr *tslice.FlightRestriction, m Match, env *EvalEnv, res *EvaluationResult) {
	if !m.Matched {
		return
	}
	switch fr.Kind {
	case tslice.RestrictionForbidden, tslice.RestrictionClosed:
		rr := RestrictionResult{
			RuleIdent: fr.Ident, Kind: fr.Kind,
			Reason:   ruleKindNoun(fr.Kind) + ": condition matched",
			Vertices: setKeys(m.Vertices), Edges: setKeys(m.Edges),
		}
		res.Results = append(res.Results, rr)
		res.OK = false
		res.Messages = append(res.Messages, Message{Level: LevelError, RuleIdent: fr.Ident, Text: rr.Reason, Vertices: rr.Vertices, Edges: rr.Edges})

	case tslice.RestrictionMandatory:
		var bestAlt *tslice.RouteAlternative
		bestLen := -1
		satisfied := false
		for i := range fr.Alternatives {
			am := matchAlternative(fr.Alternatives[i], env)
			if am.Matched {
				satisfied = true
				break
			}
			if n := len(am.Vertices); n > bestLen {
				bestLen = n
				bestAlt = &fr.Alternatives[i]
			}
		}
		if !satisfied {
			rr := RestrictionResult{
				RuleIdent: fr.Ident, Kind: fr.Kind,
				Reason:      "mandatory condition matched but no alternative route was taken",
				Alternative: bestAlt,
				Vertices:    setKeys(m.Vertices), Edges: setKeys(m.Edges),
			}
			res.Results = append(res.Results, rr)
			res.OK = false
			res.Messages = append(res.Messages, Message{Level: LevelError, RuleIdent: fr.Ident, Text: rr.Reason, Vertices: rr.Vertices, Edges: rr.Edges})
		}

	case tslice.RestrictionAllowed:
		// Informational only: never fails the plan.
		res.Messages = append(res.Messages, Message{
			Level: LevelInfo, RuleIdent: fr.Ident,
			Text: fmt.Sprintf("%d alternative route(s) available", len(fr.Alternatives)),
		})
	}
}

func ruleKindNoun(k tslice.RestrictionKind) string {
	switch k {
	case tslice.RestrictionForbidden:
		return "forbidden"
	case tslice.RestrictionClosed:
		return "closed for cruising"
	default:
		return "restriction"
	}
}

// matchAlternative treats a RouteAlternative's elements as an ordered,
// non-overlapping sequence, exactly like CondSequenceNode. On failure
// the result is unmatched but keeps the vertices of the elements matched
// before the failing one, so applyRule can rank partial matches.
func matchAlternative(alt tslice.RouteAlternative, env *EvalEnv) Match {
	all := Match{Matched: true, RefVertex: -1, Vertices: map[int]bool{}, Edges: map[int]bool{}}
	lastMax := -1
	for _, el := range alt.Elements {
		m := matchElement(el, env)
		if !m.Matched {
			all.Matched = false
			return all
		}
		if len(m.Vertices) > 0 {
			minV, maxV := minMaxKeys(m.Vertices)
			if minV <= lastMax {
				all.Matched = false
				return all
			}
			lastMax = maxV
		}
		mergeInto(&all, m)
	}
	return all
}

func matchElement(el tslice.RestrictionElement, env *EvalEnv) Match {
	switch el.Kind {
	case tslice.ElemPoint:
		return matchCrossingPoint(&tslice.CondCrossingPointNode{Point: el.Object, AltRange: el.AltRange}, env)
	case tslice.ElemAirspace:
		return matchCrossingAirspace1(&tslice.CondCrossingAirspace1Node{Airspace: el.Object}, env)
	case tslice.ElemSIDOrSTAR:
		return matchCrossingSIDOrSTAR(&tslice.CondCrossingSIDOrSTARNode{Procedure: el.Object, IsArrival: el.IsArrival}, env)
	case tslice.ElemRouteSegment:
		return matchCrossingAirway(el.Start, el.End, el.Route, tslice.RefLocation{}, env)
	default:
		return noMatch()
	}
}

// isObviouslyIrrelevant applies a cheap pre-filter: a rule keyed (via a
// top-level dep/arr leaf reachable through
// And without traversing an Or/inverted branch) to a point that appears
// nowhere among this plan's waypoints is skipped before the full
// condition walk runs.
func isObviouslyIrrelevant(fr *tslice.FlightRestriction, plan *flightplan.Plan) bool {
	return conditionExcludesPlan(fr.Condition, plan)
}

func conditionExcludesPlan(c tslice.Condition, plan *flightplan.Plan) bool {
	switch n := c.(type) {
	case *tslice.CondDepArrPointNode:
		if n.Point.IsNil() {
			return false
		}
		for _, wp := range plan.Waypoints {
			if wp.PointObject.UUID == n.Point.UUID {
				return false
			}
		}
		return true
	case *tslice.CondAndNode:
		if n.FinalInvert {
			return false // inversion can turn "excludes" into "requires"; don't prune
		}
		for i, ch := range n.Children {
			if i < len(n.InvertChild) && n.InvertChild[i] {
				continue
			}
			if conditionExcludesPlan(ch, plan) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func setKeys(m map[int]bool) []int {
	if len(m) == 0 {
		return nil
	}
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
