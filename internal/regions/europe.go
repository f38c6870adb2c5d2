package regions

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/leosaffin/storm-assess/internal/geo"
	"github.com/leosaffin/storm-assess/internal/storm"
)

// A dissolved, simplified Natural Earth 110m admin-0 outline of the
// European landmass, in [-180, 180) longitudes.
//
//go:embed europe.geojson
var europeGeoJSON []byte

var (
	europeOnce sync.Once
	europeMP   orb.MultiPolygon
	europeErr  error
)

// Europe returns the embedded Europe outline, decoded once.
func Europe() (orb.MultiPolygon, error) {
	europeOnce.Do(func() {
		europeMP, europeErr = decodeOutline(europeGeoJSON)
	})
	return europeMP, europeErr
}

// LoadOutlineFile reads a user-supplied GeoJSON outline, for running with a
// higher-resolution coastline than the embedded one.
func LoadOutlineFile(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	mp, err := decodeOutline(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mp, nil
}

// decodeOutline collects every polygon of a FeatureCollection into one
// MultiPolygon.
func decodeOutline(data []byte) (orb.MultiPolygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode outline: %w", err)
	}
	var mp orb.MultiPolygon
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, g)
		case orb.MultiPolygon:
			mp = append(mp, g...)
		default:
			return nil, fmt.Errorf("outline feature is %T, want Polygon or MultiPolygon", f.Geometry)
		}
	}
	if len(mp) == 0 {
		return nil, fmt.Errorf("outline has no polygons")
	}
	return mp, nil
}

// trackLineWrapped builds the storm's track line with longitudes wrapped
// into [-180, 180) to match the outline's convention.
func trackLineWrapped(s *storm.Storm) orb.LineString {
	line := make(orb.LineString, 0, s.Len())
	for _, ob := range s.Obs {
		line = append(line, orb.Point{geo.WrapLon(ob.Lon), ob.Lat})
	}
	return line
}

// HitsEurope reports whether the storm's track intersects the outline.
func HitsEurope(s *storm.Storm, outline orb.MultiPolygon) bool {
	if s.Len() == 0 {
		return false
	}
	return geo.LineIntersectsMultiPolygon(trackLineWrapped(s), outline)
}

// PointsOverEurope reports, per observation, whether the storm centre is
// over the outline.
func PointsOverEurope(s *storm.Storm, outline orb.MultiPolygon) []bool {
	out := make([]bool, s.Len())
	for i, ob := range s.Obs {
		out[i] = planar.MultiPolygonContains(outline, orb.Point{geo.WrapLon(ob.Lon), ob.Lat})
	}
	return out
}
