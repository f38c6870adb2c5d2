package track

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/leosaffin/storm-assess/internal/timeutil"
)

// ValuePoint is one timestep of a single-variable track series.
type ValuePoint struct {
	Time  timeutil.Time
	Value float64
}

// ValueSeries is a per-storm series of one value per timestep, the form
// used to carry a single diagnostic (e.g. precipitation) alongside a track
// file.
type ValueSeries struct {
	TrackID int
	Points  []ValuePoint
}

// WriteValues emits series in TRACK framing with one value group per
// timestep. LoadValues is its inverse.
func WriteValues(w io.Writer, series []ValueSeries) error {
	if _, err := io.WriteString(w, "0\n0 0\n"); err != nil {
		return fmt.Errorf("write values header: %w", err)
	}
	for _, s := range series {
		if len(s.Points) == 0 {
			return fmt.Errorf("series %d has no points", s.TrackID)
		}
		if _, err := fmt.Fprintf(w, "TRACK_ID %d START_TIME %s\n", s.TrackID, s.Points[0].Time.Format()); err != nil {
			return fmt.Errorf("write series %d: %w", s.TrackID, err)
		}
		if _, err := fmt.Fprintf(w, "POINT_NUM  %d\n", len(s.Points)); err != nil {
			return fmt.Errorf("write series %d: %w", s.TrackID, err)
		}
		for _, p := range s.Points {
			if _, err := fmt.Fprintf(w, "%s %s &\n", p.Time.Format(), formatFloat(p.Value)); err != nil {
				return fmt.Errorf("write series %d: %w", s.TrackID, err)
			}
		}
	}
	return nil
}

// LoadValues reads single-value-per-timestep series written by WriteValues.
func LoadValues(r io.Reader, cal timeutil.Calendar) ([]ValueSeries, error) {
	sc := newLineScanner(r)
	var (
		series []ValueSeries
		line   int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(text, "TRACK_ID") {
			continue
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

		s := ValueSeries{TrackID: trackID, Points: make([]ValuePoint, 0, nRecords)}
		for i := 0; i < nRecords; i++ {
			if !sc.Scan() {
				return nil, fmt.Errorf("line %d: series %d truncated after %d of %d points", line, trackID, i, nRecords)
			}
			line++
			groups, err := splitGroups(strings.TrimSpace(sc.Text()))
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", line, err)
			}
			fields := strings.Fields(groups[0])
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: want \"date value\", got %q", line, groups[0])
			}
			date, err := timeutil.Parse(fields[0], cal)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", line, err)
			}
			v, err := parseFloat(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", line, err)
			}
			s.Points = append(s.Points, ValuePoint{Time: date, Value: v})
		}
		series = append(series, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return series, nil
}
