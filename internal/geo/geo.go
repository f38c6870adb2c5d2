// Package geo provides the geodesy and planar-geometry helpers used to
// classify storm tracks against regions: haversine distance, longitude
// normalisation and unwrapping, and line/polygon intersection tests on
// paulmach/orb geometries.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/leosaffin/storm-assess/internal/storm"
)

// EarthRadiusMetres is the IUGG mean Earth radius.
const EarthRadiusMetres = 6371008.8

// LonLatToDistance returns the haversine distance in metres between two
// points given in (lon, lat) degree order.
func LonLatToDistance(a, b orb.Point) float64 {
	lon1 := a[0] * math.Pi / 180
	lat1 := a[1] * math.Pi / 180
	lon2 := b[0] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * EarthRadiusMetres * math.Asin(math.Sqrt(h))
}

// NormalizeLon maps a longitude into [0, 360). In-range values pass
// through exactly.
func NormalizeLon(lon float64) float64 {
	m := math.Mod(lon, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// NormalizeLons returns a copy of lons with every value mapped into [0, 360).
func NormalizeLons(lons []float64) []float64 {
	out := make([]float64, len(lons))
	for i, l := range lons {
		out[i] = NormalizeLon(l)
	}
	return out
}

// WrapLon maps a longitude into [-180, 180). In-range values pass
// through exactly.
func WrapLon(lon float64) float64 {
	m := math.Mod(lon, 360)
	if m < -180 {
		m += 360
	} else if m >= 180 {
		m -= 360
	}
	return m
}

// UnwrapLons makes a track's longitude sequence continuous across the wrap
// point. When any step exceeds 180 degrees the values are re-wrapped at the
// antipode of the track's maximum longitude, so a polyline drawn from the
// result has no spurious jump.
func UnwrapLons(lons []float64) []float64 {
	wraps := false
	for i := 1; i < len(lons); i++ {
		if math.Abs(lons[i]-lons[i-1]) > 180 {
			wraps = true
			break
		}
	}
	out := make([]float64, len(lons))
	if !wraps {
		copy(out, lons)
		return out
	}
	wrapPoint := lons[0]
	for _, l := range lons[1:] {
		if l > wrapPoint {
			wrapPoint = l
		}
	}
	shift := wrapPoint - 180
	for i, l := range lons {
		out[i] = math.Mod(math.Mod(l+shift, 360)+360, 360) - shift
	}
	return out
}

// TrackLine returns the storm's track as a (lon, lat) line string.
func TrackLine(s *storm.Storm) orb.LineString {
	line := make(orb.LineString, 0, s.Len())
	for _, ob := range s.Obs {
		line = append(line, orb.Point{ob.Lon, ob.Lat})
	}
	return line
}

// SegmentsIntersect reports whether the closed segments a1-a2 and b1-b2
// intersect, including touching and collinear overlap.
func SegmentsIntersect(a1, a2, b1, b2 orb.Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(b1, b2, a1)) ||
		(d2 == 0 && onSegment(b1, b2, a2)) ||
		(d3 == 0 && onSegment(a1, a2, b1)) ||
		(d4 == 0 && onSegment(a1, a2, b2))
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func onSegment(p, q, r orb.Point) bool {
	return math.Min(p[0], q[0]) <= r[0] && r[0] <= math.Max(p[0], q[0]) &&
		math.Min(p[1], q[1]) <= r[1] && r[1] <= math.Max(p[1], q[1])
}

// LineIntersectsRing reports whether the line string touches or crosses the
// ring's edges.
func LineIntersectsRing(line orb.LineString, ring orb.Ring) bool {
	for i := 1; i < len(line); i++ {
		for j := 1; j < len(ring); j++ {
			if SegmentsIntersect(line[i-1], line[i], ring[j-1], ring[j]) {
				return true
			}
		}
	}
	return false
}

// LineIntersectsPolygon reports whether the line string has a vertex inside
// the polygon or crosses any of its rings. A track passing through a region
// between vertices still intersects it.
func LineIntersectsPolygon(line orb.LineString, poly orb.Polygon) bool {
	for _, p := range line {
		if planar.PolygonContains(poly, p) {
			return true
		}
	}
	for _, ring := range poly {
		if LineIntersectsRing(line, ring) {
			return true
		}
	}
	return false
}

// LineIntersectsMultiPolygon reports whether the line intersects any member
// polygon.
func LineIntersectsMultiPolygon(line orb.LineString, mp orb.MultiPolygon) bool {
	for _, poly := range mp {
		if LineIntersectsPolygon(line, poly) {
			return true
		}
	}
	return false
}

// LineIntersectsBound reports whether the line intersects an axis-aligned
// lon/lat box.
func LineIntersectsBound(line orb.LineString, b orb.Bound) bool {
	return LineIntersectsPolygon(line, b.ToPolygon())
}
