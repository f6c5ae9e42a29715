package ingest

import (
	"reflect"
	"strconv"
	"strings"

	"adrcore/aerr"
	"adrcore/tslice"
)

// StructuredNode wraps a single variant Body (or nested value type, e.g.
// AirspaceComponent, ProcedureLeg) and integrates children by matching
// the child element's local name against the Body's exported field
// names -- the Go analogue of the original's per-subtype "integrate"
// overrides, done once generically instead of once per element type.
type StructuredNode struct {
	baseNode
	value         reflect.Value // addressable struct value
	body          tslice.Body   // non-nil only for the top-level variant node
	gmlIdentifier string        // raw gml:identifier text, if the element carried one
}

// newStructuredNode builds a node around a freshly constructed zero
// value of the type factory produces.
func newStructuredNode(factory func() tslice.Body) *StructuredNode {
	b := factory()
	return &StructuredNode{value: reflect.ValueOf(b).Elem(), body: b}
}

// newNestedNode builds a node around an arbitrary struct pointer, used
// for nested value types that are not themselves tagged Bodies (e.g.
// tslice.AirspaceComponent, tslice.ProcedureLeg).
func newNestedNode(ptr interface{}) *StructuredNode {
	return &StructuredNode{value: reflect.ValueOf(ptr).Elem()}
}

func (*StructuredNode) Kind() NodeKind { return KindStructured }

// Body returns the completed variant Body, valid only on a node built
// via newStructuredNode.
func (s *StructuredNode) Body() tslice.Body { return s.body }

// GMLIdentifier returns the element's gml:identifier text, or "" if the
// element carried none.
func (s *StructuredNode) GMLIdentifier() string { return s.gmlIdentifier }

func (s *StructuredNode) OnAttributes(attrs map[string]string, el *aerr.ErrorLogger) {
	for k, v := range attrs {
		if k == "uom" || k == "xlink:href" {
			continue // handled by unit normalisation / LinkNode respectively
		}
		f := findField(s.value, xmlNameToField(k))
		if f.IsValid() {
			assignScalar(f, v, attrs["uom"], el)
		}
	}
}

func (s *StructuredNode) OnCharacters(text string) {
	// Mixed-content structured elements (rare in AIXM) append their
	// character text, untrimmed, to a "Text"-named field if present.
	if f := findField(s.value, "Text"); f.IsValid() && f.Kind() == reflect.String {
		f.SetString(f.String() + text)
	}
}

func (s *StructuredNode) OnSubelement(name string, child Node, el *aerr.ErrorLogger) {
	if name == "gml:identifier" {
		if tn, ok := child.(*TextNode); ok {
			s.gmlIdentifier = strings.TrimSpace(tn.Text)
		}
		return
	}
	fieldName := xmlNameToField(name)
	f := findField(s.value, fieldName)
	if !f.IsValid() {
		return // unmapped element: schema evolves faster than the mapping; tolerated
	}
	switch c := child.(type) {
	case *TextNode:
		assignScalar(f, strings.TrimSpace(c.Text), "", el)
	case *LinkNode:
		assignLink(f, c.UUID, el)
	case *StructuredNode:
		assignStruct(f, c.value, el)
	case *IgnoreNode:
		// discarded
	}
}

// xmlNameToField converts a namespaced/lowerCamel element local name
// ("codeType", "aixm:name") to the exported Go field name convention
// ("CodeType", "Name").
func xmlNameToField(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// findField resolves fieldName against v, including promoted fields of
// embedded structs (e.g. Airport's embedded PointCommon).
func findField(v reflect.Value, fieldName string) reflect.Value {
	if fieldName == "" || v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	f := v.FieldByName(fieldName)
	if f.IsValid() {
		return f
	}
	// Case-insensitive fallback for acronym fields (ICAOCode, IATACode).
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if strings.EqualFold(t.Field(i).Name, fieldName) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

func assignScalar(f reflect.Value, text, uom string, el *aerr.ErrorLogger) {
	if !f.CanSet() {
		return
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(text)
	case reflect.Bool:
		f.SetBool(text == "true" || text == "1" || text == "YES")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			el.Warnf("field %s: not numeric: %q", f.Type(), text)
			return
		}
		f.SetInt(int64(NormalizeUOM(v, uom)))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			el.Warnf("field %s: not numeric: %q", f.Type(), text)
			return
		}
		f.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			el.Warnf("field %s: not numeric: %q", f.Type(), text)
			return
		}
		f.SetFloat(NormalizeUOM(v, uom))
	}
}

// assignLink sets a tslice.Link-typed field's UUID component via
// reflection, rather than asserting tslice.Link directly, so the same
// helper works for any future Link-shaped type.
func assignLink(f reflect.Value, u interface{ String() string }, el *aerr.ErrorLogger) {
	if !f.CanSet() {
		return
	}
	uv := reflect.ValueOf(u)
	newLink := reflect.New(f.Type()).Elem()
	uuidField := newLink.FieldByName("UUID")
	if uuidField.IsValid() && uuidField.CanSet() && uv.Type().AssignableTo(uuidField.Type()) {
		uuidField.Set(uv)
		f.Set(newLink)
	}
}

func assignStruct(f reflect.Value, child reflect.Value, el *aerr.ErrorLogger) {
	if !f.CanSet() {
		return
	}
	switch f.Kind() {
	case reflect.Slice:
		elemType := f.Type().Elem()
		switch {
		case child.Type() == elemType:
			f.Set(reflect.Append(f, child))
		case elemType.Kind() == reflect.Ptr && child.Addr().Type() == elemType:
			f.Set(reflect.Append(f, child.Addr()))
		case elemType.Kind() == reflect.Interface && child.CanAddr() && child.Addr().Type().Implements(elemType):
			// e.g. CondAndNode.Children []tslice.Condition: each child is
			// one concrete leaf/inner condition-tree node.
			f.Set(reflect.Append(f, child.Addr()))
		default:
			el.Warnf("cannot append %s into %s", child.Type(), f.Type())
		}
	case reflect.Struct:
		if child.Type() == f.Type() {
			f.Set(child)
		} else {
			el.Warnf("type mismatch assigning %s into %s", child.Type(), f.Type())
		}
	case reflect.Ptr:
		if child.Addr().Type() == f.Type() {
			f.Set(child.Addr())
		}
	case reflect.Interface:
		// Tagged-union fields (tslice.Condition, tslice.Body) hold one of
		// several concrete *Node struct pointers; any child whose address
		// satisfies the interface is accepted directly -- a generic
		// dispatch for condition-tree elements (and/sequence/crossing_*
		// leaves) in place of one overload per concrete type.
		if child.CanAddr() && child.Addr().Type().Implements(f.Type()) {
			f.Set(child.Addr())
		} else {
			el.Warnf("child %s does not implement %s", child.Type(), f.Type())
		}
	default:
		el.Warnf("cannot assign structured child into field kind %s", f.Kind())
	}
}

// NormalizeUOM converts a raw attribute value to its base unit: nautical
// miles for distance/length UOMs, feet for altitude (with "FL" scaled
// by 100), degrees/seconds/etc. pass through unchanged.
func NormalizeUOM(v float64, uom string) float64 {
	switch strings.ToUpper(uom) {
	case "NM":
		return v
	case "KM":
		return v / 1.852
	case "M":
		return v / 1852.0
	case "FT":
		return v
	case "FL":
		return v * 100
	case "":
		return v
	default:
		return v
	}
}
