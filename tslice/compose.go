package tslice

import "reflect"

// mergeBody composes a delta Body over a base Body of the same
// underlying struct type: any field left at its Go zero value in delta
// is taken from base, otherwise delta's value wins. This generically
// implements the per-field composition rule without hand-writing a
// merge method for each of the twenty variants, applying the "nil
// pointer / zero-length slice means absent" convention structurally
// instead of field-by-field.
//
// Composing into a result of the same dynamic type as base keeps the
// Tag() dispatch correct; delta and base are always same-Tag since
// AddTimeSlice enforces a single Tag per Object.
func mergeBody(base, delta Body) Body {
	bv := reflect.ValueOf(base)
	dv := reflect.ValueOf(delta)
	wasPtr := bv.Kind() == reflect.Ptr
	if bv.Kind() == reflect.Ptr {
		bv = bv.Elem()
	}
	if dv.Kind() == reflect.Ptr {
		dv = dv.Elem()
	}
	if bv.Kind() != reflect.Struct || dv.Kind() != reflect.Struct || bv.Type() != dv.Type() {
		return delta
	}

	out := reflect.New(bv.Type())
	elem := out.Elem()
	for i := 0; i < bv.NumField(); i++ {
		df := dv.Field(i)
		if df.CanInterface() && !df.IsZero() {
			elem.Field(i).Set(df)
		} else if bv.Field(i).CanInterface() {
			elem.Field(i).Set(bv.Field(i))
		}
	}
	if wasPtr {
		return out.Interface().(Body)
	}
	return elem.Interface().(Body)
}
