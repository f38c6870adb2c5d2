package track

import (
	"fmt"

	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// parseHartObservation reads one observation line of the 13-field Hart
// layout: a 7-level vorticity profile, MSLP, 925 hPa wind, a 10 m wind
// triple and the cyclone phase-space parameters TL, TU and B.
func parseHartObservation(groups []string, cal timeutil.Calendar) (storm.Observation, error) {
	date, lon, lat, vort, err := quartet(groups[0], cal)
	if err != nil {
		return storm.Observation{}, err
	}

	extras := map[string]float64{}

	// Vorticity profile occupies the first seven triples; the value of
	// triple k is group 3k.
	var level1, level7 float64
	for k := 1; k <= 7; k++ {
		v, err := groupFloat(groups, 3*k)
		if err != nil {
			return storm.Observation{}, err
		}
		extras[fmt.Sprintf("t63_%d", k)] = v
		if k == 1 {
			level1 = v
		}
		if k == 7 {
			level7 = v
		}
	}
	extras["t63_diff"] = level1 - level7

	mslp, err := groupFloat(groups, 8*3)
	if err != nil {
		return storm.Observation{}, err
	}
	mslp = normalizeMSLP(mslp)

	vmax, err := groupFloat(groups, 9*3)
	if err != nil {
		return storm.Observation{}, err
	}
	if mslp < 500 && vmax > 500 {
		mslp, vmax = vmax, mslp
	}
	extras["vmax_kts"] = vmax * storm.MetresPerSecondToKnots

	v10mLon, err := groupFloat(groups, 10*3-2)
	if err != nil {
		return storm.Observation{}, err
	}
	v10mLat, err := groupFloat(groups, 10*3-1)
	if err != nil {
		return storm.Observation{}, err
	}
	v10m, err := groupFloat(groups, 10*3)
	if err != nil {
		return storm.Observation{}, err
	}
	extras["v10m_lon"] = v10mLon
	extras["v10m_lat"] = v10mLat
	extras["v10m"] = v10m

	// Phase-space parameters are the last three groups.
	n := len(groups)
	tl, err := groupFloat(groups, n-3)
	if err != nil {
		return storm.Observation{}, err
	}
	tu, err := groupFloat(groups, n-2)
	if err != nil {
		return storm.Observation{}, err
	}
	b, err := groupFloat(groups, n-1)
	if err != nil {
		return storm.Observation{}, err
	}
	extras["TL"] = tl
	extras["TU"] = tu
	extras["B"] = b

	return storm.Observation{
		Date:      date,
		Lon:       lon,
		Lat:       lat,
		Vorticity: vort,
		VMax:      vmax,
		MSLP:      mslp,
		Extras:    extras,
	}, nil
}
