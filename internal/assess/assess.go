// Package assess computes seasonal statistics over storm sets: counts and
// genesis months per basin, storm positions for density maps, accumulated
// cyclone energy and intensity distributions.
package assess

import (
	"fmt"

	"github.com/aclements/go-moremath/stats"

	"github.com/leosaffin/storm-assess/internal/geo"
	"github.com/leosaffin/storm-assess/internal/regions"
	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// TimeRange returns the [start, end) window of a storm season. months is an
// ordered list that may wrap the year boundary (e.g. July through June for
// southern-hemisphere seasons); the window starts on the first day of
// months[0] in year and ends on the first day of the month after the last
// entry, advancing the year when the list wraps or ends in December.
func TimeRange(year int, months []int, cal timeutil.Calendar) (timeutil.Time, timeutil.Time, error) {
	if len(months) == 0 {
		return timeutil.Time{}, timeutil.Time{}, fmt.Errorf("empty months list")
	}
	first, last := months[0], months[len(months)-1]

	start, err := timeutil.Date(year, first, 1, 0, cal)
	if err != nil {
		return timeutil.Time{}, timeutil.Time{}, fmt.Errorf("season start: %w", err)
	}

	endYear, endMonth := year, last+1
	if last < first || last == 12 {
		endYear++
	}
	if last == 12 {
		endMonth = 1
	}
	end, err := timeutil.Date(endYear, endMonth, 1, 0, cal)
	if err != nil {
		return timeutil.Time{}, timeutil.Time{}, fmt.Errorf("season end: %w", err)
	}
	return start, end, nil
}

// StormsInTimeRange filters storms whose genesis falls within the season
// window of year/months. Storms without observations are skipped.
func StormsInTimeRange(storms []storm.Storm, year int, months []int, cal timeutil.Calendar) ([]storm.Storm, error) {
	start, end, err := TimeRange(year, months, cal)
	if err != nil {
		return nil, err
	}
	var out []storm.Storm
	for _, s := range storms {
		genesis, err := s.GenesisDate()
		if err != nil {
			continue
		}
		if !genesis.Before(start) && genesis.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

// GenesisMonths returns the genesis month of every storm that formed in one
// of the given years and whose track intersects the basin, in input order.
func GenesisMonths(storms []storm.Storm, years []int, basin string) ([]int, error) {
	yearSet := make(map[int]bool, len(years))
	for _, y := range years {
		yearSet[y] = true
	}
	var out []int
	for i := range storms {
		s := &storms[i]
		genesis, err := s.GenesisDate()
		if err != nil {
			continue
		}
		if !yearSet[genesis.Year()] {
			continue
		}
		in, err := regions.StormInBasin(s, basin)
		if err != nil {
			return nil, err
		}
		if in {
			out = append(out, genesis.Month())
		}
	}
	return out, nil
}

// MonthlyStormCounts returns, for each requested month, the number of
// storms forming in that month over the given years within the basin.
func MonthlyStormCounts(storms []storm.Storm, years, months []int, basin string) ([]int, error) {
	genesisMonths, err := GenesisMonths(storms, years, basin)
	if err != nil {
		return nil, err
	}
	perMonth := map[int]int{}
	for _, m := range genesisMonths {
		perMonth[m]++
	}
	counts := make([]int, len(months))
	for i, m := range months {
		counts[i] = perMonth[m]
	}
	return counts, nil
}

// PositionSelector picks which track points StormPositions collects.
type PositionSelector int

const (
	// AllPoints collects every observation of each matching storm.
	AllPoints PositionSelector = iota
	// Genesis collects the first observation only.
	Genesis
	// Lysis collects the final observation only.
	Lysis
	// MaxIntensity collects the observation of maximum wind.
	MaxIntensity
)

// StormPositions collects latitudes and longitudes of storms forming in the
// given years/months whose track intersects the basin, plus the matching
// storm count. Longitudes are normalised into [0, 360).
func StormPositions(storms []storm.Storm, years, months []int, basin string, sel PositionSelector, cal timeutil.Calendar) (lats, lons []float64, count int, err error) {
	for _, year := range years {
		inRange, err := StormsInTimeRange(storms, year, months, cal)
		if err != nil {
			return nil, nil, 0, err
		}
		for i := range inRange {
			s := &inRange[i]
			in, err := regions.StormInBasin(s, basin)
			if err != nil {
				return nil, nil, 0, err
			}
			if !in {
				continue
			}
			switch sel {
			case Genesis:
				ob, _ := s.ObsAtGenesis()
				lats = append(lats, ob.Lat)
				lons = append(lons, ob.Lon)
			case Lysis:
				ob, _ := s.ObsAtLysis()
				lats = append(lats, ob.Lat)
				lons = append(lons, ob.Lon)
			case MaxIntensity:
				ob, _ := s.ObsAtVMax()
				lats = append(lats, ob.Lat)
				lons = append(lons, ob.Lon)
			default:
				lats = append(lats, s.Lats()...)
				lons = append(lons, s.Lons()...)
			}
			count++
		}
	}
	return lats, geo.NormalizeLons(lons), count, nil
}

// SeasonACE sums accumulated cyclone energy over the storms of one season
// in the basin.
func SeasonACE(storms []storm.Storm, year int, months []int, basin string, cal timeutil.Calendar) (float64, error) {
	inRange, err := StormsInTimeRange(storms, year, months, cal)
	if err != nil {
		return 0, err
	}
	var total float64
	for i := range inRange {
		s := &inRange[i]
		in, err := regions.StormInBasin(s, basin)
		if err != nil {
			return 0, err
		}
		if in {
			total += s.ACE()
		}
	}
	return total, nil
}

// AnnualCounts returns the number of storms forming in each of the given
// years within the basin.
func AnnualCounts(storms []storm.Storm, years []int, basin string) (map[int]int, error) {
	out := make(map[int]int, len(years))
	for _, y := range years {
		out[y] = 0
	}
	for i := range storms {
		s := &storms[i]
		genesis, err := s.GenesisDate()
		if err != nil {
			continue
		}
		if _, want := out[genesis.Year()]; !want {
			continue
		}
		in, err := regions.StormInBasin(s, basin)
		if err != nil {
			return nil, err
		}
		if in {
			out[genesis.Year()]++
		}
	}
	return out, nil
}

// IntensityStats summarises a sample of lifetime maximum winds (m/s).
type IntensityStats struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"q25"`
	Median float64 `json:"median"`
	Q75    float64 `json:"q75"`
	Max    float64 `json:"max"`
}

// IntensityDistribution computes the distribution of lifetime maximum winds
// over the given storms. Storms without observations are skipped.
func IntensityDistribution(storms []storm.Storm) IntensityStats {
	var xs []float64
	for i := range storms {
		if v, err := storms[i].MaxVMax(); err == nil {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return IntensityStats{}
	}
	sample := stats.Sample{Xs: xs}
	min, max := sample.Bounds()
	return IntensityStats{
		N:      len(xs),
		Mean:   sample.Mean(),
		StdDev: sample.StdDev(),
		Min:    min,
		Q25:    sample.Quantile(0.25),
		Median: sample.Quantile(0.5),
		Q75:    sample.Quantile(0.75),
		Max:    max,
	}
}
