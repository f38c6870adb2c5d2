// Package export serialises storm sets into the artifacts the service
// publishes: GeoJSON track collections and CSV summaries.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/leosaffin/storm-assess/internal/geo"
	"github.com/leosaffin/storm-assess/internal/storm"
)

// Mode selects the geometry written per storm.
type Mode int

const (
	// Lines writes one LineString per storm track.
	Lines Mode = iota
	// GenesisPoints writes the first track point of each storm.
	GenesisPoints
	// LysisPoints writes the final track point of each storm.
	LysisPoints
	// MaxIntensityPoints writes the point of maximum wind of each storm.
	MaxIntensityPoints
)

// Options controls TracksGeoJSON output.
type Options struct {
	Mode Mode
}

// TracksGeoJSON builds a FeatureCollection over the storms. In Lines mode
// each feature is the storm's track with longitudes unwrapped so lines never
// jump across the dateline; in the point modes each feature is a single
// position. Storms without observations are skipped.
func TracksGeoJSON(storms []storm.Storm, opts Options) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i := range storms {
		s := &storms[i]
		if s.Len() == 0 {
			continue
		}
		geom, err := stormGeometry(s, opts.Mode)
		if err != nil {
			return nil, fmt.Errorf("storm %d: %w", s.Number, err)
		}
		f := geojson.NewFeature(geom)
		f.Properties = stormProperties(s)
		fc.Append(f)
	}
	return fc, nil
}

func stormGeometry(s *storm.Storm, mode Mode) (orb.Geometry, error) {
	switch mode {
	case GenesisPoints:
		ob, err := s.ObsAtGenesis()
		if err != nil {
			return nil, err
		}
		return orb.Point{geo.WrapLon(ob.Lon), ob.Lat}, nil
	case LysisPoints:
		ob, err := s.ObsAtLysis()
		if err != nil {
			return nil, err
		}
		return orb.Point{geo.WrapLon(ob.Lon), ob.Lat}, nil
	case MaxIntensityPoints:
		ob, err := s.ObsAtVMax()
		if err != nil {
			return nil, err
		}
		return orb.Point{geo.WrapLon(ob.Lon), ob.Lat}, nil
	default:
		lons := geo.UnwrapLons(s.Lons())
		line := make(orb.LineString, s.Len())
		for i, ob := range s.Obs {
			line[i] = orb.Point{lons[i], ob.Lat}
		}
		return line, nil
	}
}

func stormProperties(s *storm.Storm) geojson.Properties {
	props := geojson.Properties{
		"track_id": s.Number,
		"nrecords": s.Len(),
		"ace":      s.ACE(),
	}
	if s.Name != "" {
		props["name"] = s.Name
	}
	if t, err := s.GenesisDate(); err == nil {
		props["genesis"] = t.String()
	}
	if t, err := s.LysisDate(); err == nil {
		props["lysis"] = t.String()
	}
	if v, err := s.MaxVMax(); err == nil {
		props["max_vmax"] = v
	}
	if p, err := s.MinMSLP(); err == nil {
		props["min_mslp"] = p
	}
	return props
}

// WriteTracksGeoJSON marshals the storms' FeatureCollection to w.
func WriteTracksGeoJSON(w io.Writer, storms []storm.Storm, opts Options) error {
	fc, err := TracksGeoJSON(storms, opts)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

// WriteTracksGeoJSONFile atomically replaces path with the storms' GeoJSON.
func WriteTracksGeoJSONFile(path string, storms []storm.Storm, opts Options) error {
	fc, err := TracksGeoJSON(storms, opts)
	if err != nil {
		return err
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal geojson: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var csvHeader = []string{
	"track_id", "name", "genesis", "lysis", "nrecords",
	"max_vmax_ms", "max_vmax_kts", "min_mslp_hpa", "ace",
}

// SummaryCSV writes one row per storm: identity, lifetime and peak
// intensity. Storms without observations are skipped.
func SummaryCSV(w io.Writer, storms []storm.Storm) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range storms {
		s := &storms[i]
		if s.Len() == 0 {
			continue
		}
		genesis, err := s.GenesisDate()
		if err != nil {
			return fmt.Errorf("storm %d: %w", s.Number, err)
		}
		lysis, _ := s.LysisDate()
		vmax, _ := s.MaxVMax()
		mslp, _ := s.MinMSLP()
		row := []string{
			strconv.Itoa(s.Number),
			s.Name,
			genesis.String(),
			lysis.String(),
			strconv.Itoa(s.Len()),
			formatFloat(vmax),
			formatFloat(vmax * storm.MetresPerSecondToKnots),
			formatFloat(mslp),
			formatFloat(s.ACE()),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// SummaryCSVFile atomically replaces path with the storms' CSV summary.
func SummaryCSVFile(path string, storms []storm.Storm) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer t.Cleanup()
	if err := SummaryCSV(t, storms); err != nil {
		return err
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
