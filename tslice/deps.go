package tslice

import (
	"reflect"

	"adrcore/identifier"
)

// Dependencies walks every slice's Body via reflection and collects the
// UUIDs of every non-nil Link reachable from it (directly, through
// nested structs, or through slices of either) -- the edge set the
// recompute graph draws on. Walking generically here, rather than
// hand-writing a Dependencies method per variant, mirrors how
// interpretation-delta composition is done once generically over the
// zero value elsewhere in this package.
func (o *Object) Dependencies() []identifier.UUID {
	seen := make(map[identifier.UUID]bool)
	var out []identifier.UUID
	add := func(u identifier.UUID) {
		if identifier.IsNil(u) || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, ts := range o.Slices {
		if ts.Body == nil {
			continue
		}
		walkLinks(reflect.ValueOf(ts.Body), add)
	}
	return out
}

var linkType = reflect.TypeOf(Link{})

func walkLinks(v reflect.Value, add func(identifier.UUID)) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		walkLinks(v.Elem(), add)
		return
	}
	if v.Type() == linkType {
		add(v.FieldByName("UUID").Interface().(identifier.UUID))
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Field(i).CanInterface() {
				continue
			}
			walkLinks(v.Field(i), add)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkLinks(v.Index(i), add)
		}
	}
}
