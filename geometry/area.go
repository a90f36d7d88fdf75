package geometry

import (
	"github.com/golang/geo/s2"
)

const (
	earthRadiusMeters = 6371000.0

	// One rai is 1600 square meters.
	sqMetersPerRai = 1600.0
)

// RingAreaRai computes the geodesic area of a closed ring in rai. The ring is
// GeoJSON-ordered ([lng, lat] pairs, last point repeating the first). The
// result is informational display data, not a stored invariant.
func RingAreaRai(ring [][]float64) float64 {
	if len(ring) < MinRingPoints {
		return 0
	}

	pts := ring
	// Drop the closing duplicate before building the loop.
	first, last := pts[0], pts[len(pts)-1]
	if first[0] == last[0] && first[1] == last[1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return 0
	}

	loopPts := make([]s2.Point, 0, len(pts))
	for _, p := range pts {
		loopPts = append(loopPts, s2.PointFromLatLng(s2.LatLngFromDegrees(p[1], p[0])))
	}

	loop := s2.LoopFromPoints(loopPts)
	// Drawn rings may wind either way; take the smaller enclosed area.
	loop.Normalize()

	steradians := loop.Area()
	return steradians * earthRadiusMeters * earthRadiusMeters / sqMetersPerRai
}
