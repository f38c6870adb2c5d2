package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

func testStorms() []storm.Storm {
	start := timeutil.MustDate(2000, 5, 6, 0, timeutil.Cal360Day)
	hurricane := storm.Storm{Number: 4, Name: "HELENE"}
	for i, v := range []float64{18, 25, 33, 20} {
		hurricane.Obs = append(hurricane.Obs, storm.Observation{
			Date: start.AddHours(6 * i),
			Lon:  285 + float64(i),
			Lat:  22 + float64(i),
			VMax: v,
			MSLP: 1000 - v,
		})
	}
	// Crosses the dateline between the two points.
	crosser := storm.Storm{Number: 7}
	crosser.Obs = []storm.Observation{
		{Date: start, Lon: 179.5, Lat: 30, VMax: 20, MSLP: 990},
		{Date: start.AddHours(6), Lon: -179.5, Lat: 31, VMax: 22, MSLP: 988},
	}
	return []storm.Storm{hurricane, crosser, {Number: 9}}
}

func TestTracksGeoJSONLines(t *testing.T) {
	fc, err := TracksGeoJSON(testStorms(), Options{})
	require.NoError(t, err)
	// The empty storm is dropped.
	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	line, ok := f.Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, line, 4)

	assert.Equal(t, 4, f.Properties["track_id"])
	assert.Equal(t, "HELENE", f.Properties["name"])
	assert.Equal(t, 4, f.Properties["nrecords"])
	assert.Equal(t, "2000-05-06T00:00:00[360_day]", f.Properties["genesis"])
	assert.Equal(t, "2000-05-06T18:00:00[360_day]", f.Properties["lysis"])
	assert.InDelta(t, 33.0, f.Properties["max_vmax"].(float64), 1e-9)
	assert.InDelta(t, 967.0, f.Properties["min_mslp"].(float64), 1e-9)

	// Unnamed storms carry no name property.
	_, ok = fc.Features[1].Properties["name"]
	assert.False(t, ok)
}

func TestTracksGeoJSONUnwrapsDateline(t *testing.T) {
	fc, err := TracksGeoJSON(testStorms(), Options{})
	require.NoError(t, err)

	line := fc.Features[1].Geometry.(orb.LineString)
	require.Len(t, line, 2)
	// No 359-degree jump between consecutive points.
	assert.InDelta(t, 1.0, line[1][0]-line[0][0], 1e-9)
}

func TestTracksGeoJSONPoints(t *testing.T) {
	storms := testStorms()

	tests := []struct {
		mode    Mode
		wantLat float64
	}{
		{GenesisPoints, 22},
		{LysisPoints, 25},
		{MaxIntensityPoints, 24}, // vmax 33 at the third point
	}
	for _, tt := range tests {
		fc, err := TracksGeoJSON(storms, Options{Mode: tt.mode})
		require.NoError(t, err)
		require.Len(t, fc.Features, 2)
		p, ok := fc.Features[0].Geometry.(orb.Point)
		require.True(t, ok)
		assert.InDelta(t, tt.wantLat, p[1], 1e-9, "mode %d", tt.mode)
	}
}

func TestWriteTracksGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTracksGeoJSON(&buf, testStorms(), Options{}))
	assert.Contains(t, buf.String(), `"FeatureCollection"`)
	assert.Contains(t, buf.String(), `"HELENE"`)
}

func TestSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SummaryCSV(&buf, testStorms()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + two storms

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "4", records[1][0])
	assert.Equal(t, "HELENE", records[1][1])
	assert.Equal(t, "4", records[1][4])
	assert.Equal(t, "33", records[1][5])
	assert.Equal(t, "64.152", records[1][6])
	assert.Equal(t, "967", records[1][7])
}

func TestFileWriters(t *testing.T) {
	dir := t.TempDir()

	geoPath := filepath.Join(dir, "tracks.geojson")
	require.NoError(t, WriteTracksGeoJSONFile(geoPath, testStorms(), Options{}))
	data, err := os.ReadFile(geoPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)

	csvPath := filepath.Join(dir, "storms.csv")
	require.NoError(t, SummaryCSVFile(csvPath, testStorms()))
	data, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "HELENE")
}
