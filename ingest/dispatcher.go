package ingest

import (
	"encoding/xml"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"adrcore/aerr"
	"adrcore/alog"
	"adrcore/identifier"
	"adrcore/store"
	"adrcore/tslice"
)

// frame is one entry of the open-element stack.
type frame struct {
	name string
	node Node
}

// Dispatcher drives a stream of XML tokens through the node-stack
// model, emitting completed objects into the store's temp partition.
type Dispatcher struct {
	structured *nameTable
	store      *store.Store
	lg         *alog.Logger
	el         *aerr.ErrorLogger

	stack []frame
	// discriminatorSeq disambiguates repeated synthesised children of
	// the same parent (e.g. several unnamed AirspaceComponents).
	discriminatorSeq map[identifier.UUID]int
}

// NewDispatcher builds a Dispatcher with the full variant factory table,
// running the name table's startup self-test.
func NewDispatcher(st *store.Store, lg *alog.Logger, el *aerr.ErrorLogger) (*Dispatcher, error) {
	table := newNameTable(structuredFactories())
	if err := table.selfTest(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		structured:       table,
		store:            st,
		lg:               lg,
		el:               el,
		discriminatorSeq: make(map[identifier.UUID]int),
	}, nil
}

// structuredFactories maps element local names to the Body (or nested
// value type) they construct. Real AIXM/ADR feature names are long and
// namespaced; this table uses the simplified local names the ADR
// extension schema documents for the feature types this store models.
func structuredFactories() map[string]Factory {
	return map[string]Factory{
		"AirportHeliport":      func() Node { return newStructuredNode(func() tslice.Body { return &tslice.Airport{} }) },
		"Navaid":               func() Node { return newStructuredNode(func() tslice.Body { return &tslice.Navaid{} }) },
		"DesignatedPoint":      func() Node { return newStructuredNode(func() tslice.Body { return &tslice.DesignatedPoint{} }) },
		"AirportCollocation":   func() Node { return newStructuredNode(func() tslice.Body { return &tslice.AirportCollocation{} }) },
		"AngleIndication":      func() Node { return newStructuredNode(func() tslice.Body { return &tslice.AngleIndication{} }) },
		"DistanceIndication":   func() Node { return newStructuredNode(func() tslice.Body { return &tslice.DistanceIndication{} }) },
		"Airspace":             func() Node { return newStructuredNode(func() tslice.Body { return &tslice.Airspace{} }) },
		"AirspaceComponent":    func() Node { return newNestedNode(&tslice.AirspaceComponent{}) },
		"StandardLevelTable":   func() Node { return newStructuredNode(func() tslice.Body { return &tslice.StandardLevelTable{} }) },
		"StandardLevelColumn":  func() Node { return newStructuredNode(func() tslice.Body { return &tslice.StandardLevelColumn{} }) },
		"Route":                func() Node { return newStructuredNode(func() tslice.Body { return &tslice.Route{} }) },
		"RouteSegment":         func() Node { return newStructuredNode(func() tslice.Body { return &tslice.RouteSegment{} }) },
		"RouteAvailability":    func() Node { return newNestedNode(&tslice.Availability{}) },
		"Sid":                  func() Node { return newStructuredNode(func() tslice.Body { return &tslice.SID{} }) },
		"Star":                 func() Node { return newStructuredNode(func() tslice.Body { return &tslice.STAR{} }) },
		"ProcedureLeg":         func() Node { return newNestedNode(&tslice.ProcedureLeg{}) },
		"DepartureLeg":         func() Node { return newStructuredNode(func() tslice.Body { return &tslice.DepartureLeg{} }) },
		"ArrivalLeg":           func() Node { return newStructuredNode(func() tslice.Body { return &tslice.ArrivalLeg{} }) },
		"OrganisationAuthority": func() Node { return newStructuredNode(func() tslice.Body { return &tslice.OrganisationAuthority{} }) },
		"Unit":                 func() Node { return newStructuredNode(func() tslice.Body { return &tslice.Unit{} }) },
		"AirTrafficManagementService": func() Node {
			return newStructuredNode(func() tslice.Body { return &tslice.AirTrafficManagementService{} })
		},
		"SpecialDate":       func() Node { return newStructuredNode(func() tslice.Body { return &tslice.SpecialDate{} }) },
		"FlightRestriction": func() Node { return newStructuredNode(func() tslice.Body { return &tslice.FlightRestriction{} }) },

		// AirspaceActivation is an ADR-extension element (no AIXM Body
		// variant carries AUP status): it feeds the aup satellite table
		// rather than a time-sliced object, so it's handled by its own
		// nested-node/endElement branch instead of the emit() path.
		"AirspaceActivation": func() Node { return newNestedNode(&aupRecord{}) },

		// Condition tree: each leaf/inner kind is its own element, dispatched
		// into a tslice.Condition-typed field via the generic
		// interface-assignment path in structured.go.
		"And":                     func() Node { return newNestedNode(&tslice.CondAndNode{}) },
		"Sequence":                func() Node { return newNestedNode(&tslice.CondSequenceNode{}) },
		"CrossingAirspace1":       func() Node { return newNestedNode(&tslice.CondCrossingAirspace1Node{}) },
		"CrossingAirspace2":       func() Node { return newNestedNode(&tslice.CondCrossingAirspace2Node{}) },
		"CrossingPoint":           func() Node { return newNestedNode(&tslice.CondCrossingPointNode{}) },
		"CrossingSidOrStar":       func() Node { return newNestedNode(&tslice.CondCrossingSIDOrSTARNode{}) },
		"CrossingDct":             func() Node { return newNestedNode(&tslice.CondCrossingDCTNode{}) },
		"CrossingAirway":          func() Node { return newNestedNode(&tslice.CondCrossingAirwayNode{}) },
		"CrossingAirwayAvailable": func() Node { return newNestedNode(&tslice.CondCrossingAirwayAvailableNode{}) },
		"DctLimit":                func() Node { return newNestedNode(&tslice.CondDctLimitNode{}) },
		"Aircraft":                func() Node { return newNestedNode(&tslice.CondAircraftNode{}) },
		"Flight":                  func() Node { return newNestedNode(&tslice.CondFlightNode{}) },
		"DepArrPoint":             func() Node { return newNestedNode(&tslice.CondDepArrPointNode{}) },
		"DepArrAirspace":          func() Node { return newNestedNode(&tslice.CondDepArrAirspaceNode{}) },
		"CrossingAirspaceActive":  func() Node { return newNestedNode(&tslice.CondCrossingAirspaceActiveNode{}) },
		"Constant":                func() Node { return newNestedNode(&tslice.CondConstantNode{}) },

		// Restriction elements/alternatives.
		"RestrictionElement": func() Node { return newNestedNode(&tslice.RestrictionElement{}) },
		"RouteAlternative":   func() Node { return newNestedNode(&tslice.RouteAlternative{}) },

		// Timetable.
		"Timetable":        func() Node { return newNestedNode(&tslice.Timetable{}) },
		"TimeTableElement": func() Node { return newNestedNode(&tslice.TimeTableElement{}) },
		"TimePattern":      func() Node { return newNestedNode(&tslice.TimePattern{}) },
	}
}

// Run consumes the full token stream from r, emitting completed
// top-level objects into the temp partition. It is strictly
// single-threaded and makes no assumption about element order beyond
// what the name table enforces.
func (d *Dispatcher) Run(r io.Reader) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("ingest: xml token: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			d.startElement(t)
		case xml.CharData:
			d.characters(string(t))
		case xml.EndElement:
			if err := d.endElement(t.Name.Local); err != nil {
				return err
			}
		}
	}
	if len(d.stack) != 0 {
		return fmt.Errorf("ingest: unclosed element %q at end of document", d.stack[len(d.stack)-1].name)
	}
	return nil
}

func (d *Dispatcher) startElement(t xml.StartElement) {
	name := t.Name.Local
	if name == "identifier" && (t.Name.Space == "gml" || strings.HasPrefix(t.Name.Space, "http://www.opengis.net/gml")) {
		name = "gml:identifier"
	}
	attrs := make(map[string]string, len(t.Attr))
	for _, a := range t.Attr {
		key := a.Name.Local
		if a.Name.Space == "xlink" {
			key = "xlink:" + key
		}
		attrs[key] = a.Value
	}

	var node Node
	if factory, ok := d.structured.lookup(name); ok {
		node = factory()
	} else if _, ok := attrs["xlink:href"]; ok {
		node = &LinkNode{}
	} else if name == "gml:identifier" || looksLikeTextElement(name) {
		node = &TextNode{}
	} else {
		node = &IgnoreNode{}
	}
	node.OnAttributes(attrs, d.el)
	d.stack = append(d.stack, frame{name: name, node: node})
}

// looksLikeTextElement is a conservative default: any element with no
// registered structured factory and no xlink:href is treated as a text
// leaf unless it's the synthetic document root, matching the "unknown
// names become ignore nodes" fallback only for container elements
// (detected by them never accumulating characters -- approximated here
// by name, since the token stream doesn't look ahead).
func looksLikeTextElement(name string) bool {
	switch name {
	case "MessageMembers", "Message", "timeSlice":
		return false
	default:
		return true
	}
}

func (d *Dispatcher) characters(text string) {
	if len(d.stack) == 0 {
		return
	}
	d.stack[len(d.stack)-1].node.OnCharacters(text)
}

func (d *Dispatcher) endElement(name string) error {
	if len(d.stack) == 0 {
		return fmt.Errorf("ingest: unmatched end element %q", name)
	}
	top := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]

	if sn, ok := top.node.(*StructuredNode); ok && sn.Body() != nil {
		// A top-level variant element completed: emit its object.
		if err := d.emit(top.name, sn); err != nil {
			return err
		}
	} else if sn, ok := top.node.(*StructuredNode); ok && top.name == "AirspaceActivation" {
		// Feeds the aup satellite table directly; carries no Body/UUID
		// of its own.
		if err := d.emitAUP(sn); err != nil {
			return err
		}
	}

	if len(d.stack) > 0 {
		d.stack[len(d.stack)-1].node.OnSubelement(top.name, top.node, d.el)
	}
	return nil
}

func (d *Dispatcher) emit(elementName string, sn *StructuredNode) error {
	body := sn.Body()
	tag := body.Tag()

	u := d.synthesiseUUID(elementName, body, sn)

	start, end := int64(minTime), int64(maxTime)
	modified := time.Now().Unix()
	interp := tslice.Baseline

	obj, err := d.store.Load(u)
	if err != nil {
		return fmt.Errorf("ingest: load %s for merge: %w", u, err)
	}
	if obj == nil {
		obj = &tslice.Object{UUID: u}
	}
	if err := obj.AddTimeSlice(tslice.TimeSlice{
		Start: start, End: end, Modified: modified,
		Interpretation: interp, Body: body,
	}); err != nil {
		d.el.Warnf("ingest: %v", err)
		return nil // structural error on this object only; continue the stream
	}
	store.WarnOverlaps(d.el, obj)
	if err := d.store.Save(obj, true); err != nil {
		return fmt.Errorf("ingest: save %s: %w", u, err)
	}
	if ident := identOf(body); ident != "" {
		if err := d.store.IndexIdent(ident, tag, u); err != nil {
			return err
		}
	}
	for _, dep := range obj.Dependencies() {
		if err := d.store.IndexDependency(u, dep, true); err != nil {
			return err
		}
	}
	return nil
}

const (
	minTime = -1 << 62
	maxTime = 1<<62 - 1
)

// identOf extracts the variant's natural identifier string, for
// find_by_ident indexing, via the common "Ident" field name.
func identOf(b tslice.Body) string {
	switch v := b.(type) {
	case *tslice.Airport:
		return v.Ident
	case *tslice.Navaid:
		return v.Ident
	case *tslice.DesignatedPoint:
		return v.Ident
	case *tslice.Airspace:
		return v.Ident
	case *tslice.Route:
		return v.Ident
	case *tslice.SID:
		return v.Ident
	case *tslice.STAR:
		return v.Ident
	case *tslice.OrganisationAuthority:
		return v.Ident
	case *tslice.Unit:
		return v.Ident
	case *tslice.FlightRestriction:
		return v.Ident
	default:
		return ""
	}
}

// synthesiseUUID derives the object's UUID. A gml:identifier child, if
// present, is authoritative: real AIXM feeds carry the object UUID
// there, and xlink:href cross-references point at exactly that value,
// so it must be parsed rather than overridden. Failing that, a record
// with its own natural Ident is keyed deterministically from it. Only
// records with neither are synthesised: SHA1(parent-uuid, discriminator),
// discriminator being the element name plus a per-parent sequence
// number so repeated anonymous siblings of the same parent stay
// distinct, and distinct parents' anonymous children never collide.
func (d *Dispatcher) synthesiseUUID(elementName string, body tslice.Body, sn *StructuredNode) identifier.UUID {
	if raw := sn.GMLIdentifier(); raw != "" {
		if u := identifier.Parse(raw); !identifier.IsNil(u) {
			return u
		}
		d.el.Warnf("ingest: %s: gml:identifier %q is not a valid UUID; synthesising instead", elementName, raw)
	}
	if ident := identOf(body); ident != "" {
		return identifier.FromNamespace(identifier.NamespaceRecord, strings.ToUpper(elementName)+"/"+ident)
	}
	parent := parentUUID(body)
	seq := d.discriminatorSeq[parent]
	d.discriminatorSeq[parent] = seq + 1
	disc := discriminatorOf(body)
	if disc == "" {
		disc = elementName + "/" + strconv.Itoa(seq)
	} else {
		disc = elementName + "/" + disc + "/" + strconv.Itoa(seq)
	}
	return identifier.FromNamespace(parent, disc)
}

// linkType is the reflected shape of tslice.Link, used to find the
// enclosing object's host-link field generically rather than per
// variant type.
var linkType = reflect.TypeOf(tslice.Link{})

// parentUUID finds the first tslice.Link-typed field on body (e.g.
// AirportCollocation.HostAirport) and returns the UUID it carries, the
// namespace a synthesised child UUID must be keyed under. Bodies with
// no such field (i.e. not conceptually a child of another object) fall
// back to the fixed record namespace.
func parentUUID(body tslice.Body) identifier.UUID {
	v := reflect.ValueOf(body)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return identifier.NamespaceRecord
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return identifier.NamespaceRecord
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Type == linkType {
			link := v.Field(i).Interface().(tslice.Link)
			if !identifier.IsNil(link.UUID) {
				return link.UUID
			}
		}
	}
	return identifier.NamespaceRecord
}

// discriminatorOf returns body's "Discriminator"-named string field, if
// it has one, to fold into the synthesised UUID alongside the
// per-parent sequence number.
func discriminatorOf(body tslice.Body) string {
	v := reflect.ValueOf(body)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ""
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return ""
	}
	f := v.FieldByName("Discriminator")
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

// aupRecord is the nested-element shape of an AirspaceActivation: the
// activation status of one airspace over one time window, fed straight
// into the store's aup table rather than the object/time-slice model.
type aupRecord struct {
	Airspace  tslice.Link
	StartTime int64
	EndTime   int64
	Status    int32
}

// emitAUP indexes one parsed AirspaceActivation into the store's aup
// table; it has no UUID or time-slice of its own.
func (d *Dispatcher) emitAUP(sn *StructuredNode) error {
	rec, ok := sn.value.Addr().Interface().(*aupRecord)
	if !ok {
		return fmt.Errorf("ingest: AirspaceActivation: unexpected node value type %s", sn.value.Type())
	}
	if identifier.IsNil(rec.Airspace.UUID) {
		d.el.Warnf("ingest: AirspaceActivation: missing Airspace reference; skipped")
		return nil
	}
	return d.store.IndexAUP(rec.Airspace.UUID, rec.StartTime, rec.EndTime, rec.Status)
}
