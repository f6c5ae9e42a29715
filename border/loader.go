// Package border implements the country-border loader: ingest polygon
// features naming countries, remap to canonical country identifiers,
// derive stable UUIDs, and assemble both per-country and composite
// (union) border airspaces.
//
// The retrieval pack carries no GDAL/OGR binding, so feature ingestion
// is done over GeoJSON FeatureCollections via paulmach/orb/geojson (the
// same geometry library already wired for MultiPolygonHole conversion)
// rather than fabricating an OGR dependency -- see DESIGN.md.
package border

import (
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"adrcore/aerr"
	"adrcore/geo"
	"adrcore/identifier"
	"adrcore/store"
	"adrcore/store/diskcache"
	"adrcore/tslice"
)

// remapTable canonicalises common name variants to the identifier the
// rest of the system keys border airspaces by, e.g. shapefile exports
// that spell out "Russian Federation" while rule authors write "RUSSIA".
// Data-driven so new variants are a one-line addition.
var remapTable = map[string]string{
	"RUSSIAN FEDERATION":               "RUSSIA",
	"UNITED KINGDOM OF GREAT BRITAIN AND NORTHERN IRELAND": "UNITED KINGDOM",
	"REPUBLIC OF MOLDOVA":              "MOLDOVA",
	"CZECHIA":                          "CZECH REPUBLIC",
	"UNITED STATES OF AMERICA":         "UNITED STATES",
	"SYRIAN ARAB REPUBLIC":             "SYRIA",
	"IRAN (ISLAMIC REPUBLIC OF)":       "IRAN",
}

// compositeTable names the composite (union) border airspaces produced
// after per-feature ingestion, and the canonical country names each
// unions.
var compositeTable = map[string][]string{
	"EU": {
		"AUSTRIA", "BELGIUM", "BULGARIA", "CROATIA", "CYPRUS", "CZECH REPUBLIC",
		"DENMARK", "ESTONIA", "FINLAND", "FRANCE", "GERMANY", "GREECE", "HUNGARY",
		"IRELAND", "ITALY", "LATVIA", "LITHUANIA", "LUXEMBOURG", "MALTA",
		"NETHERLANDS", "POLAND", "PORTUGAL", "ROMANIA", "SLOVAKIA", "SLOVENIA",
		"SPAIN", "SWEDEN",
	},
	"UK": {"UNITED KINGDOM"},
	"USA": {"UNITED STATES"},
}

func canonicalName(raw string) string {
	if mapped, ok := remapTable[raw]; ok {
		return mapped
	}
	return raw
}

// countryTables is the msgpack-serialisable shape of remapTable and
// compositeTable, used to mirror them to a local disk cache so a
// deployment can hand-edit the tables without a recompile.
type countryTables struct {
	Remap     map[string]string
	Composite map[string][]string
}

// RefreshTables loads a previously persisted country-table override
// from the OS cache directory (via store/diskcache) and merges it over
// the built-in literal defaults. It reports whether a cache file was found;
// a missing cache file is not an error -- the literal defaults remain
// in effect, matching the embedded-table behaviour the rest of this
// package relies on when no override has ever been persisted.
func RefreshTables(cacheFile string) (bool, error) {
	var t countryTables
	if _, err := diskcache.Retrieve(cacheFile, &t); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	for k, v := range t.Remap {
		remapTable[k] = v
	}
	for k, v := range t.Composite {
		compositeTable[k] = v
	}
	return true, nil
}

// PersistTables writes the current in-memory remap/composite tables to
// the OS cache directory so a future process start can pick up any
// runtime edits (e.g. a CLI command that adds a remap entry) without a
// recompile.
func PersistTables(cacheFile string) error {
	return diskcache.Store(cacheFile, countryTables{
		Remap:     remapTable,
		Composite: compositeTable,
	})
}

// Load reads a GeoJSON FeatureCollection from r, emitting one
// type_border Airspace object per distinct country name (after
// remapping) plus the composite unions of compositeTable, into st's
// temp partition.
func Load(r io.Reader, st *store.Store, el *aerr.ErrorLogger) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("border: read: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("border: parse geojson: %w", err)
	}

	seen := make(map[string]bool)

	for _, f := range fc.Features {
		raw, _ := f.Properties["NAME"].(string)
		if raw == "" {
			el.Warnf("border: feature missing NAME property")
			continue
		}
		name := canonicalName(raw)
		if seen[name] {
			el.Warnf("border: duplicate country name %q", name)
		}
		seen[name] = true

		mph, err := convertGeometry(f.Geometry)
		if err != nil {
			el.Warnf("border: %s: %v", name, err)
			continue
		}
		mph.Normalize()

		airspace := &tslice.Airspace{
			Ident: name,
			Name:  name,
			Type:  tslice.AirspaceBorder,
			Components: []tslice.AirspaceComponent{{
				Operator:     tslice.OpBase,
				FullGeometry: mph,
				AltRange:     geo.AltRange{Lo: geo.AltEndpoint{Mode: geo.AltHeight, Alt: geo.Gnd}, Hi: geo.AltEndpoint{Mode: geo.AltSTD, Alt: geo.Unl}},
			}},
		}

		if err := emitBorder(st, name, airspace); err != nil {
			return err
		}
	}

	for compositeName, members := range compositeTable {
		comp := &tslice.Airspace{Ident: compositeName, Name: compositeName, Type: tslice.AirspaceBorder}
		for _, m := range members {
			u := identifier.FromCountryBorder(m)
			comp.Components = append(comp.Components, tslice.AirspaceComponent{
				Operator:            tslice.OpUnion,
				ContributorAirspace: tslice.NewLink(u),
			})
		}
		// Created even if no member country was present in this feed, so
		// downstream rules can still refer to it.
		if err := emitBorder(st, compositeName, comp); err != nil {
			return err
		}
	}
	return nil
}

func emitBorder(st *store.Store, name string, airspace *tslice.Airspace) error {
	u := identifier.FromCountryBorder(name)
	obj := &tslice.Object{UUID: u}
	if err := obj.AddTimeSlice(tslice.TimeSlice{
		Start: -1 << 62, End: 1<<62 - 1, Modified: 0,
		Interpretation: tslice.Baseline, Body: airspace,
	}); err != nil {
		return fmt.Errorf("border: %s: %w", name, err)
	}
	if err := st.Save(obj, true); err != nil {
		return err
	}
	for _, dep := range obj.Dependencies() {
		if err := st.IndexDependency(u, dep, true); err != nil {
			return err
		}
	}
	return st.IndexIdent(name, tslice.TagAirspace, u)
}

// convertGeometry converts an orb.Geometry into a MultiPolygonHole,
// handling Polygon, MultiPolygon, and GeometryCollection (flattening
// any nested polygons), with a polygonisation fallback for bare
// LineStrings closed into a ring.
func convertGeometry(g orb.Geometry) (geo.MultiPolygonHole, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return geo.MultiPolygonHole{polygonHoleFromOrb(v)}, nil
	case orb.MultiPolygon:
		out := make(geo.MultiPolygonHole, 0, len(v))
		for _, p := range v {
			out = append(out, polygonHoleFromOrb(p))
		}
		return out, nil
	case orb.Collection:
		var out geo.MultiPolygonHole
		for _, sub := range v {
			mph, err := convertGeometry(sub)
			if err != nil {
				continue
			}
			out = append(out, mph...)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("geometry collection had no polygonal members")
		}
		return out, nil
	case orb.LineString:
		ring := ringFromLineString(v)
		if len(ring) < 3 {
			return nil, fmt.Errorf("line string too short to polygonise")
		}
		return geo.MultiPolygonHole{{Exterior: ring}}, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func polygonHoleFromOrb(p orb.Polygon) geo.PolygonHole {
	ph := geo.PolygonHole{}
	if len(p) > 0 {
		ph.Exterior = pointsFromRing(p[0])
	}
	for _, hole := range p[1:] {
		ph.Holes = append(ph.Holes, pointsFromRing(hole))
	}
	return ph
}

func pointsFromRing(r orb.Ring) []geo.Point {
	out := make([]geo.Point, len(r))
	for i, pt := range r {
		out[i] = geo.NewPointDeg(pt[0], pt[1]) // orb.Point is [lon, lat]
	}
	return out
}

func ringFromLineString(ls orb.LineString) []geo.Point {
	out := make([]geo.Point, len(ls))
	for i, pt := range ls {
		out[i] = geo.NewPointDeg(pt[0], pt[1])
	}
	return out
}
