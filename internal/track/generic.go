package track

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// Dataset is the columnar form of one track, for callers that want named
// added fields without the standard-layout assumptions.
type Dataset struct {
	TrackID   int
	StartTime timeutil.Time
	Times     []timeutil.Time
	Lons      []float64
	Lats      []float64
	Vorticity []float64
	// Columns holds one series per named added field; grouped positional
	// columns appear as "<name>_lon" and "<name>_lat".
	Columns map[string][]float64
}

// Len returns the number of track points.
func (d *Dataset) Len() int { return len(d.Times) }

// LoadGeneric reads a TRACK file without assuming any added-field layout.
// The k-th added field takes its name from variableNames (default field_k).
// A field either occupies one &-group (a bare value) or three consecutive
// groups (lon & lat & value); positional fields store their leading pair as
// "<name>_lon" and "<name>_lat".
func LoadGeneric(r io.Reader, variableNames []string, opts Options) ([]Dataset, error) {
	sc := newLineScanner(r)
	var (
		datasets []Dataset
		line     int
		nFields  int
	)
	name := func(k int) string {
		if k-1 < len(variableNames) {
			return variableNames[k-1]
		}
		return fmt.Sprintf("field_%d", k)
	}

	headerSeen := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(text, "TRACK_NUM"):
			fields := strings.Fields(text)
			if len(fields) < 4 || fields[2] != "ADD_FLD" {
				return nil, fmt.Errorf("line %d: %w: TRACK_NUM without ADD_FLD", line, ErrBadHeader)
			}
			n, err := strconv.Atoi(fields[3])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: %w: bad ADD_FLD count %q", line, ErrBadHeader, fields[3])
			}
			nFields = n
			headerSeen = true
		case strings.HasPrefix(text, "TRACK_ID"):
			if !headerSeen {
				return nil, fmt.Errorf("line %d: %w: TRACK_ID before TRACK_NUM header", line, ErrBadHeader)
			}
			fields := strings.Fields(text)
			if len(fields) != 2 && len(fields) != 4 {
				return nil, fmt.Errorf("line %d: %w: malformed TRACK_ID", line, ErrBadHeader)
			}
			trackID, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad storm number %q", line, fields[1])
			}

			if !sc.Scan() {
				return nil, fmt.Errorf("line %d: %w: TRACK_ID not followed by POINT_NUM", line, ErrBadHeader)
			}
			line++
			pn := strings.Fields(strings.TrimSpace(sc.Text()))
			if len(pn) != 2 || pn[0] != "POINT_NUM" {
				return nil, fmt.Errorf("line %d: %w: TRACK_ID not followed by POINT_NUM", line, ErrBadHeader)
			}
			nRecords, err := strconv.Atoi(pn[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad POINT_NUM %q", line, pn[1])
			}

			ds := Dataset{TrackID: trackID, Columns: map[string][]float64{}}
			for i := 0; i < nRecords; i++ {
				if !sc.Scan() {
					return nil, fmt.Errorf("line %d: storm %d truncated after %d of %d observations", line, trackID, i, nRecords)
				}
				line++
				groups, err := splitGroups(strings.TrimSpace(sc.Text()))
				if err != nil {
					return nil, fmt.Errorf("line %d: %v", line, err)
				}
				date, lon, lat, vort, err := quartet(groups[0], opts.Calendar)
				if err != nil {
					return nil, fmt.Errorf("line %d: %v", line, err)
				}
				ds.Times = append(ds.Times, date)
				ds.Lons = append(ds.Lons, lon)
				ds.Lats = append(ds.Lats, lat)
				ds.Vorticity = append(ds.Vorticity, vort)

				data := groups[1:]
				if len(data) < nFields || len(data) > 3*nFields || (len(data)-nFields)%2 != 0 {
					return nil, fmt.Errorf("line %d: %d field groups do not frame %d added fields", line, len(data), nFields)
				}
				gi := 0
				for k := 1; k <= nFields; k++ {
					varName := name(k)
					if positionalField(len(data)-gi, nFields-k+1) {
						glon, err := parseFloat(data[gi])
						if err != nil {
							return nil, fmt.Errorf("line %d: %v", line, err)
						}
						glat, err := parseFloat(data[gi+1])
						if err != nil {
							return nil, fmt.Errorf("line %d: %v", line, err)
						}
						v, err := parseFloat(data[gi+2])
						if err != nil {
							return nil, fmt.Errorf("line %d: %v", line, err)
						}
						ds.Columns[varName+"_lon"] = append(ds.Columns[varName+"_lon"], glon)
						ds.Columns[varName+"_lat"] = append(ds.Columns[varName+"_lat"], glat)
						ds.Columns[varName] = append(ds.Columns[varName], v)
						gi += 3
					} else {
						v, err := parseFloat(data[gi])
						if err != nil {
							return nil, fmt.Errorf("line %d: %v", line, err)
						}
						ds.Columns[varName] = append(ds.Columns[varName], v)
						gi++
					}
				}
			}
			if len(ds.Times) > 0 {
				ds.StartTime = ds.Times[0]
			}
			datasets = append(datasets, ds)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return datasets, nil
}

// positionalField reports whether the current added field spans three
// groups (lon & lat & value), given the groups and fields still to consume.
// A field is scalar unless the leftover after a bare value could not be
// framed by the remaining fields, so all-scalar and all-positional lines
// resolve exactly and mixed lines take bare values first.
func positionalField(groups, fields int) bool {
	if fields == 1 {
		return groups == 3
	}
	rest, vars := groups-1, fields-1
	return rest < vars || rest > 3*vars || (rest-vars)%2 != 0
}

// LoadGenericFile reads the named file with LoadGeneric.
func LoadGenericFile(path string, variableNames []string, opts Options) ([]Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track file: %w", err)
	}
	defer f.Close()

	datasets, err := LoadGeneric(f, variableNames, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return datasets, nil
}
