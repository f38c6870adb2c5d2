package track

import (
	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// parseHURDAT2Observation reads one observation line of a reformatted
// HURDAT2 best-track record wrapped in TRACK framing. Best-track archives
// carry no vorticity; pressure and wind are picked from fixed offsets off
// the end of the line, shifted by any extra columns.
func parseHURDAT2Observation(groups []string, exCols int, cal timeutil.Calendar) (storm.Observation, error) {
	date, lon, lat, _, err := quartet(groups[0], cal)
	if err != nil {
		return storm.Observation{}, err
	}

	n := len(groups)
	mslp, err := groupFloat(groups, n-(4+exCols))
	if err != nil {
		return storm.Observation{}, err
	}
	mslp = normalizeMSLP(mslp)

	vmax, err := groupFloat(groups, n-(7+exCols))
	if err != nil {
		return storm.Observation{}, err
	}

	return storm.Observation{
		Date:      date,
		Lon:       lon,
		Lat:       lat,
		Vorticity: 0,
		VMax:      vmax,
		MSLP:      mslp,
		Extras: map[string]float64{
			"vmax_kts": vmax * storm.MetresPerSecondToKnots,
			"v10m":     vmax,
		},
	}, nil
}
