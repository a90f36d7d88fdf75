package geometry

import (
	geojson "github.com/paulmach/go.geojson"
)

// MinRingPoints is the minimum number of coordinate pairs for a closed ring.
const MinRingPoints = 4

// outerRing returns the outer ring of a Polygon or the first outer ring of a
// MultiPolygon, nil for any other geometry.
func outerRing(g *geojson.Geometry) [][]float64 {
	if g == nil {
		return nil
	}
	switch {
	case g.IsPolygon() && len(g.Polygon) > 0:
		return g.Polygon[0]
	case g.IsMultiPolygon() && len(g.MultiPolygon) > 0 && len(g.MultiPolygon[0]) > 0:
		return g.MultiPolygon[0][0]
	}
	return nil
}

// FirstOuterRing returns the outer ring of the first polygonal feature in fc,
// or nil when fc holds no polygonal feature.
func FirstOuterRing(fc *geojson.FeatureCollection) [][]float64 {
	if fc == nil {
		return nil
	}
	for _, f := range fc.Features {
		if ring := outerRing(f.Geometry); ring != nil {
			return ring
		}
	}
	return nil
}

// ValidRing reports whether ring holds enough coordinate pairs to close.
func ValidRing(ring [][]float64) bool {
	return len(ring) >= MinRingPoints
}

// FilterPolygonal returns a collection holding only the Polygon and
// MultiPolygon features of fc. Marker features are tracked separately and
// must not leak into the stored polygon.
func FilterPolygonal(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if f.Geometry.IsPolygon() || f.Geometry.IsMultiPolygon() {
			out.AddFeature(f)
		}
	}
	return out
}
