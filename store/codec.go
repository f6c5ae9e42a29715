package store

import (
	"fmt"
	"reflect"

	"adrcore/geo"
	"adrcore/identifier"
	"adrcore/store/archive"
	"adrcore/tslice"
)

// bodyFactory constructs a zero-valued Body for a given Tag so decoding
// has something to populate by reflection.
var bodyFactory = map[tslice.Tag]func() tslice.Body{
	tslice.TagAirport:                 func() tslice.Body { return &tslice.Airport{} },
	tslice.TagAirportCollocation:      func() tslice.Body { return &tslice.AirportCollocation{} },
	tslice.TagDesignatedPoint:         func() tslice.Body { return &tslice.DesignatedPoint{} },
	tslice.TagNavaid:                  func() tslice.Body { return &tslice.Navaid{} },
	tslice.TagAngleIndication:         func() tslice.Body { return &tslice.AngleIndication{} },
	tslice.TagDistanceIndication:      func() tslice.Body { return &tslice.DistanceIndication{} },
	tslice.TagAirspace:                func() tslice.Body { return &tslice.Airspace{} },
	tslice.TagStandardLevelTable:      func() tslice.Body { return &tslice.StandardLevelTable{} },
	tslice.TagStandardLevelColumn:     func() tslice.Body { return &tslice.StandardLevelColumn{} },
	tslice.TagRoute:                   func() tslice.Body { return &tslice.Route{} },
	tslice.TagRouteSegment:            func() tslice.Body { return &tslice.RouteSegment{} },
	tslice.TagSID:                     func() tslice.Body { return &tslice.SID{} },
	tslice.TagSTAR:                    func() tslice.Body { return &tslice.STAR{} },
	tslice.TagDepartureLeg:            func() tslice.Body { return &tslice.DepartureLeg{} },
	tslice.TagArrivalLeg:              func() tslice.Body { return &tslice.ArrivalLeg{} },
	tslice.TagOrganisationAuthority:   func() tslice.Body { return &tslice.OrganisationAuthority{} },
	tslice.TagSpecialDate:             func() tslice.Body { return &tslice.SpecialDate{} },
	tslice.TagUnit:                    func() tslice.Body { return &tslice.Unit{} },
	tslice.TagATMService:              func() tslice.Body { return &tslice.AirTrafficManagementService{} },
	tslice.TagFlightRestriction:       func() tslice.Body { return &tslice.FlightRestriction{} },
}

var conditionFactory = map[tslice.ConditionKind]func() tslice.Condition{
	tslice.CondCrossingAirspace1:      func() tslice.Condition { return &tslice.CondCrossingAirspace1Node{} },
	tslice.CondCrossingAirspace2:      func() tslice.Condition { return &tslice.CondCrossingAirspace2Node{} },
	tslice.CondCrossingPoint:          func() tslice.Condition { return &tslice.CondCrossingPointNode{} },
	tslice.CondCrossingSIDOrSTAR:      func() tslice.Condition { return &tslice.CondCrossingSIDOrSTARNode{} },
	tslice.CondCrossingDCT:            func() tslice.Condition { return &tslice.CondCrossingDCTNode{} },
	tslice.CondCrossingAirway:         func() tslice.Condition { return &tslice.CondCrossingAirwayNode{} },
	tslice.CondCrossingAirwayAvailable: func() tslice.Condition { return &tslice.CondCrossingAirwayAvailableNode{} },
	tslice.CondDctLimit:               func() tslice.Condition { return &tslice.CondDctLimitNode{} },
	tslice.CondAircraft:               func() tslice.Condition { return &tslice.CondAircraftNode{} },
	tslice.CondFlight:                 func() tslice.Condition { return &tslice.CondFlightNode{} },
	tslice.CondDepArrPoint:            func() tslice.Condition { return &tslice.CondDepArrPointNode{} },
	tslice.CondDepArrAirspace:         func() tslice.Condition { return &tslice.CondDepArrAirspaceNode{} },
	tslice.CondCrossingAirspaceActive: func() tslice.Condition { return &tslice.CondCrossingAirspaceActiveNode{} },
	tslice.CondConstant:               func() tslice.Condition { return &tslice.CondConstantNode{} },
	tslice.CondAnd:                    func() tslice.Condition { return &tslice.CondAndNode{} },
	tslice.CondSequence:               func() tslice.Condition { return &tslice.CondSequenceNode{} },
}

// EncodeObject writes o in the archive format: uuid, slice count, then
// per slice interpretation/start/end/modified/tag/body.
func EncodeObject(w *archive.Writer, o *tslice.Object) {
	ub, _ := o.UUID.MarshalBinary()
	w.PutBytes(ub)
	w.PutUvarint(uint64(len(o.Slices)))
	for _, ts := range o.Slices {
		w.PutU8(uint8(ts.Interpretation))
		w.PutVarint(ts.Start)
		w.PutVarint(ts.End)
		w.PutVarint(ts.Modified)
		w.PutU8(uint8(ts.Body.Tag()))
		encodeValue(w, reflect.ValueOf(ts.Body))
	}
}

// DecodeObject is the inverse of EncodeObject.
func DecodeObject(r *archive.Reader) (*tslice.Object, error) {
	raw := r.Bytes(16)
	var u identifier.UUID
	if err := u.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	n := r.Uvarint()
	o := &tslice.Object{UUID: u}
	for i := uint64(0); i < n; i++ {
		interp := tslice.Interpretation(r.U8())
		start := r.Varint()
		end := r.Varint()
		modified := r.Varint()
		tag := tslice.Tag(r.U8())
		factory, ok := bodyFactory[tag]
		if !ok {
			return nil, fmt.Errorf("archive: unknown tag %d", tag)
		}
		body := factory()
		decodeValue(r, reflect.ValueOf(body))
		if err := o.AddTimeSlice(tslice.TimeSlice{
			Start: start, End: end, Modified: modified,
			Interpretation: interp, Body: body,
		}); err != nil {
			return nil, err
		}
	}
	if r.Err() != nil {
		return nil, r.Err()
	}
	return o, nil
}

// encodeValue walks v's exported fields in declaration order, recursing
// through structs/pointers/slices and special-casing the handful of
// leaf types the variant model uses (geo points, UUIDs, Links,
// Condition trees).
func encodeValue(w *archive.Writer, v reflect.Value) {
	if v.Kind() == reflect.Interface {
		encodeCondition(w, v.Interface())
		return
	}
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			w.PutBool(false)
			return
		}
		w.PutBool(true)
		encodeValue(w, v.Elem())
		return
	}
	switch iv := v.Interface().(type) {
	case tslice.Link:
		ub, _ := iv.UUID.MarshalBinary()
		if len(ub) != 16 {
			ub = make([]byte, 16)
		}
		w.PutBytes(ub)
		return
	case geo.Point:
		w.PutI32BE(iv.LonUnits)
		w.PutI32BE(iv.LatUnits)
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).PkgPath != "" {
				continue // unexported
			}
			encodeValue(w, v.Field(i))
		}
	case reflect.Slice:
		w.PutUvarint(uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			encodeValue(w, v.Index(i))
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			encodeValue(w, v.Index(i))
		}
	case reflect.String:
		w.PutString(v.String())
	case reflect.Bool:
		w.PutBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.PutVarint(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		w.PutUvarint(v.Uint())
	case reflect.Float32, reflect.Float64:
		bits := uint64(0)
		f := v.Float()
		bits = uint64(int64(f * 1e6)) // fixed-point millionths; altitude/speed fields never need more
		w.PutVarint(int64(bits))
	default:
		panic(fmt.Sprintf("archive: unsupported field kind %s", v.Kind()))
	}
}

func decodeValue(r *archive.Reader, v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		if !v.Elem().IsValid() {
			return
		}
	}
	if v.Kind() == reflect.Interface {
		v.Set(reflect.ValueOf(decodeCondition(r)))
		return
	}
	if v.Kind() == reflect.Ptr {
		present := r.Bool()
		if !present {
			return
		}
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		decodeValue(r, v.Elem())
		return
	}
	switch v.Addr().Interface().(type) {
	case *tslice.Link:
		raw := r.Bytes(16)
		var u identifier.UUID
		u.UnmarshalBinary(raw)
		v.Set(reflect.ValueOf(tslice.NewLink(u)))
		return
	case *geo.Point:
		lon := r.I32BE()
		lat := r.I32BE()
		v.Set(reflect.ValueOf(geo.Point{LonUnits: lon, LatUnits: lat}))
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).PkgPath != "" {
				continue
			}
			decodeValue(r, v.Field(i))
		}
	case reflect.Slice:
		n := int(r.Uvarint())
		if n == 0 {
			return
		}
		out := reflect.MakeSlice(v.Type(), n, n)
		for i := 0; i < n; i++ {
			decodeValue(r, out.Index(i))
		}
		v.Set(out)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			decodeValue(r, v.Index(i))
		}
	case reflect.String:
		v.SetString(r.String())
	case reflect.Bool:
		v.SetBool(r.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(r.Varint())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v.SetUint(r.Uvarint())
	case reflect.Float32, reflect.Float64:
		v.SetFloat(float64(r.Varint()) / 1e6)
	default:
		panic(fmt.Sprintf("archive: unsupported field kind %s", v.Kind()))
	}
}

// encodeCondition tags and recurses into a Condition tree (FlightRestriction.Condition
// and CondAndNode/CondSequenceNode children), nil encoded as the
// reserved 0xFF kind byte.
func encodeCondition(w *archive.Writer, c interface{}) {
	cond, ok := c.(tslice.Condition)
	if !ok || cond == nil || reflect.ValueOf(cond).IsNil() {
		w.PutU8(0xFF)
		return
	}
	w.PutU8(uint8(cond.Kind()))
	encodeValue(w, reflect.ValueOf(cond).Elem())
}

func decodeCondition(r *archive.Reader) tslice.Condition {
	kindByte := r.U8()
	if kindByte == 0xFF {
		return nil
	}
	factory, ok := conditionFactory[tslice.ConditionKind(kindByte)]
	if !ok {
		r.Err()
		return nil
	}
	node := factory()
	decodeValue(r, reflect.ValueOf(node).Elem())
	return node
}
