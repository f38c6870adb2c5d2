// Package regions classifies storm tracks against ocean basins and a
// Europe landmass outline.
package regions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"

	"github.com/leosaffin/storm-assess/internal/geo"
	"github.com/leosaffin/storm-assess/internal/storm"
)

// Basin boxes in degrees east, [lon min, lat min, lon max, lat max]. The
// main development region (mdr) is the Atlantic strip where most Cape
// Verde storms form.
var basins = map[string]orb.Bound{
	"na":  {Min: orb.Point{260, 0}, Max: orb.Point{360, 60}},   // North Atlantic
	"ep":  {Min: orb.Point{180, 0}, Max: orb.Point{260, 60}},   // Eastern Pacific
	"wp":  {Min: orb.Point{100, 0}, Max: orb.Point{180, 60}},   // Western Pacific
	"ni":  {Min: orb.Point{40, 0}, Max: orb.Point{100, 30}},    // North Indian
	"si":  {Min: orb.Point{20, -40}, Max: orb.Point{105, 0}},   // South Indian
	"au":  {Min: orb.Point{105, -40}, Max: orb.Point{165, 0}},  // Australian
	"sp":  {Min: orb.Point{165, -40}, Max: orb.Point{240, 0}},  // South Pacific
	"mdr": {Min: orb.Point{275, 10}, Max: orb.Point{345, 20}},  // Main development region
}

// Basins returns the known basin names, sorted.
func Basins() []string {
	names := make([]string, 0, len(basins))
	for name := range basins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BasinBound returns the lon/lat box of a basin.
func BasinBound(basin string) (orb.Bound, error) {
	b, ok := basins[basin]
	if !ok {
		return orb.Bound{}, fmt.Errorf("unknown basin %q (known: %s)", basin, strings.Join(Basins(), ", "))
	}
	return b, nil
}

// StormInBasin reports whether the storm's track intersects the basin box.
// Track longitudes are normalised into [0, 360) to match the basin
// definitions.
func StormInBasin(s *storm.Storm, basin string) (bool, error) {
	bound, err := BasinBound(basin)
	if err != nil {
		return false, err
	}
	if s.Len() == 0 {
		return false, nil
	}
	line := make(orb.LineString, 0, s.Len())
	for _, ob := range s.Obs {
		line = append(line, orb.Point{geo.NormalizeLon(ob.Lon), ob.Lat})
	}
	return geo.LineIntersectsBound(line, bound), nil
}
