// Package storm holds the in-memory model of a tracked tropical cyclone: a
// numbered track with a sequence of observations and derived quantities such
// as genesis, lifetime maximum intensity and accumulated cyclone energy.
package storm

import (
	"errors"
	"fmt"
	"time"

	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// MetresPerSecondToKnots converts wind speeds to the knots used by
// best-track archives (1 m/s = 1.944 kt).
const MetresPerSecondToKnots = 1.944

// ACEThresholdKts is the minimum sustained wind for an observation to count
// towards accumulated cyclone energy (tropical-storm strength, 34 kt).
const ACEThresholdKts = 34.0

// ErrNoObservations reports an accessor that needs at least one observation
// being called on an empty storm.
var ErrNoObservations = errors.New("storm has no observations")

// Observation is a single track point.
type Observation struct {
	Date      timeutil.Time      `json:"date"`
	Lon       float64            `json:"lon"`
	Lat       float64            `json:"lat"`
	Vorticity float64            `json:"vorticity"` // 850 hPa relative vorticity (s-1)
	VMax      float64            `json:"vmax"`      // max sustained wind (m/s)
	MSLP      float64            `json:"mslp"`      // minimum central pressure (hPa)
	Extras    map[string]float64 `json:"extras,omitempty"`
}

// VMaxKts returns the observation's maximum wind in knots.
func (o Observation) VMaxKts() float64 {
	return o.VMax * MetresPerSecondToKnots
}

// Storm is one tracked cyclone.
type Storm struct {
	Number int                `json:"number"`
	Name   string             `json:"name,omitempty"`
	Obs    []Observation      `json:"obs"`
	Extras map[string]float64 `json:"extras,omitempty"`
}

// Len returns the number of observations.
func (s *Storm) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Obs)
}

// NRecords is an alias for Len matching the TRACK vocabulary (POINT_NUM).
func (s *Storm) NRecords() int { return s.Len() }

// ObsAtGenesis returns the first observation of the storm.
func (s *Storm) ObsAtGenesis() (Observation, error) {
	if s.Len() == 0 {
		return Observation{}, fmt.Errorf("genesis: %w", ErrNoObservations)
	}
	return s.Obs[0], nil
}

// GenesisDate returns the date of the first observation.
func (s *Storm) GenesisDate() (timeutil.Time, error) {
	ob, err := s.ObsAtGenesis()
	if err != nil {
		return timeutil.Time{}, err
	}
	return ob.Date, nil
}

// ObsAtLysis returns the final observation of the storm.
func (s *Storm) ObsAtLysis() (Observation, error) {
	if s.Len() == 0 {
		return Observation{}, fmt.Errorf("lysis: %w", ErrNoObservations)
	}
	return s.Obs[len(s.Obs)-1], nil
}

// LysisDate returns the date of the final observation.
func (s *Storm) LysisDate() (timeutil.Time, error) {
	ob, err := s.ObsAtLysis()
	if err != nil {
		return timeutil.Time{}, err
	}
	return ob.Date, nil
}

// ObsAtVMax returns the observation of maximum wind. Ties keep the earliest
// occurrence.
func (s *Storm) ObsAtVMax() (Observation, error) {
	if s.Len() == 0 {
		return Observation{}, fmt.Errorf("vmax: %w", ErrNoObservations)
	}
	best := s.Obs[0]
	for _, ob := range s.Obs[1:] {
		if ob.VMax > best.VMax {
			best = ob
		}
	}
	return best, nil
}

// MaxVMax returns the lifetime maximum wind (m/s).
func (s *Storm) MaxVMax() (float64, error) {
	ob, err := s.ObsAtVMax()
	if err != nil {
		return 0, err
	}
	return ob.VMax, nil
}

// MinMSLP returns the lifetime minimum central pressure (hPa).
func (s *Storm) MinMSLP() (float64, error) {
	if s.Len() == 0 {
		return 0, fmt.Errorf("mslp: %w", ErrNoObservations)
	}
	min := s.Obs[0].MSLP
	for _, ob := range s.Obs[1:] {
		if ob.MSLP < min {
			min = ob.MSLP
		}
	}
	return min, nil
}

// Lons returns the track longitudes in observation order.
func (s *Storm) Lons() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, s.Len())
	for i, ob := range s.Obs {
		out[i] = ob.Lon
	}
	return out
}

// Lats returns the track latitudes in observation order.
func (s *Storm) Lats() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, s.Len())
	for i, ob := range s.Obs {
		out[i] = ob.Lat
	}
	return out
}

// ACE returns the storm's accumulated cyclone energy: the sum of squared
// maximum winds (kt) over six-hourly observations at or above tropical-storm
// strength, scaled by 1e-4.
func (s *Storm) ACE() float64 {
	var sum float64
	for _, ob := range s.Obs {
		if !ob.Date.SixHourly() {
			continue
		}
		kts := ob.VMaxKts()
		if kts < ACEThresholdKts {
			continue
		}
		sum += kts * kts
	}
	return sum * 1e-4
}

// Duration returns the storm lifetime (lysis minus genesis). An empty storm
// has zero duration.
func (s *Storm) Duration() time.Duration {
	if s.Len() == 0 {
		return 0
	}
	return s.Obs[len(s.Obs)-1].Date.Sub(s.Obs[0].Date)
}
