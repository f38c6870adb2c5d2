package track

import (
	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// parseStandardObservation reads one observation line of the standard layout:
// the leading quartet followed by added-field triples for the T63 vorticity
// profile, MSLP, 925 hPa wind and optionally 10 m wind. The position in the
// leading quartet is the full-resolution location of maximum 850 hPa
// vorticity in date-converted files.
func parseStandardObservation(groups []string, h *header, cal timeutil.Calendar) (storm.Observation, error) {
	date, lon, lat, vort, err := quartet(groups[0], cal)
	if err != nil {
		return storm.Observation{}, err
	}

	// MSLP and 925 hPa wind sit after the vorticity profile triples.
	mslp, err := groupFloat(groups, 3*h.nLevels+3)
	if err != nil {
		return storm.Observation{}, err
	}
	mslp = normalizeMSLP(mslp)

	vmax, err := groupFloat(groups, 3*h.nLevels+6)
	if err != nil {
		return storm.Observation{}, err
	}

	// Guard against files with MSLP and wind columns exchanged.
	if mslp < 500 && vmax > 500 {
		mslp, vmax = vmax, mslp
	}

	ob := storm.Observation{
		Date:      date,
		Lon:       lon,
		Lat:       lat,
		Vorticity: vort,
		VMax:      vmax,
		MSLP:      mslp,
		Extras: map[string]float64{
			"vmax_kts": vmax * storm.MetresPerSecondToKnots,
		},
	}

	// Files with more than the assumed columns carry a trailing 10 m wind
	// triple (lon, lat, speed).
	if h.exCols > 6 {
		n := len(groups)
		v10m, err := groupFloat(groups, n-1)
		if err != nil {
			return storm.Observation{}, err
		}
		v10mLat, err := groupFloat(groups, n-2)
		if err != nil {
			return storm.Observation{}, err
		}
		v10mLon, err := groupFloat(groups, n-3)
		if err != nil {
			return storm.Observation{}, err
		}
		ob.Extras["v10m"] = v10m
		ob.Extras["v10m_lat"] = v10mLat
		ob.Extras["v10m_lon"] = v10mLon
	}

	return ob, nil
}
