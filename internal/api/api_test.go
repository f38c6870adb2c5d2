package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leosaffin/storm-assess/internal/cache"
	"github.com/leosaffin/storm-assess/internal/catalog"
	"github.com/leosaffin/storm-assess/internal/config"
	"github.com/leosaffin/storm-assess/internal/jobs"
	"github.com/leosaffin/storm-assess/internal/regions"
	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

type testEnv struct {
	server    *httptest.Server
	store     *catalog.Store
	cache     cache.Cache
	ids       []string
	outputDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CatalogPath = filepath.Join(dir, "catalog.db")
	cfg.Calendar = "gregorian"
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))

	store, err := catalog.Open(cfg.CatalogPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	atlantic := storm.Storm{Number: 1, Name: "ALBERTO"}
	pacific := storm.Storm{Number: 2}
	for i := 0; i < 3; i++ {
		atlantic.Obs = append(atlantic.Obs, storm.Observation{
			Date: timeutil.MustDate(2000, 8, 1, 6*i, timeutil.Gregorian),
			Lon:  285 + float64(i), Lat: 22 + float64(i),
			VMax: 30, MSLP: 990,
		})
		pacific.Obs = append(pacific.Obs, storm.Observation{
			Date: timeutil.MustDate(2000, 9, 1, 6*i, timeutil.Gregorian),
			Lon:  140 + float64(i), Lat: 20 + float64(i),
			VMax: 40, MSLP: 980,
		})
	}
	ids, err := store.InsertStorms(context.Background(), "tracks.date", []storm.Storm{atlantic, pacific})
	require.NoError(t, err)

	outline, err := regions.Europe()
	require.NoError(t, err)
	c := cache.NewMemoryCache(0)
	classifier := regions.NewClassifier(outline, c, time.Minute)
	runner := jobs.NewRunner(cfg, store)

	srv := NewServer(cfg, store, runner, c, classifier, "test")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: store, cache: c, ids: ids, outputDir: cfg.OutputDir}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "stormassess_")
}

func TestListStorms(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/storms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Count  int              `json:"count"`
		Storms []catalog.Record `json:"storms"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "ALBERTO", out.Storms[0].Name)
}

func TestListStormsFilters(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/storms?year=2000&months=8&basin=na")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Count)

	// The Pacific storm is filtered out by the Atlantic basin.
	resp, body = e.get(t, "/api/v1/storms?basin=na")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 1, out.Count)

	resp, _ = e.get(t, "/api/v1/storms?basin=atlantic")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.get(t, "/api/v1/storms?year=banana")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.get(t, "/api/v1/storms?months=13")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListStormsFormats(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/storms?format=geojson")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), `"FeatureCollection"`)

	resp, body = e.get(t, "/api/v1/storms?format=csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "track_id,name")
	assert.Contains(t, string(body), "ALBERTO")

	resp, _ = e.get(t, "/api/v1/storms?format=xml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStorm(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/storms/"+e.ids[0])
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out stormResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ALBERTO", out.Name)
	assert.Len(t, out.Obs, 3)

	resp, _ = e.get(t, "/api/v1/storms/no-such-id")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStormTrackGeoJSON(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/storms/"+e.ids[0]+"/track.geojson")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"LineString"`)

	resp, _ = e.get(t, "/api/v1/storms/no-such-id/track.geojson")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMonthlyCounts(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/stats/monthly-counts?years=2000&months=7-9&basin=na")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Counts []int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, []int{0, 1, 0}, out.Counts)

	resp, _ = e.get(t, "/api/v1/stats/monthly-counts?basin=na")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.get(t, "/api/v1/stats/monthly-counts?years=2000&basin=nowhere")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestACE(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/stats/ace?year=2000&months=6-11&basin=na")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		ACE float64 `json:"ace"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	// Three obs at 30 m/s (58.32 kt).
	assert.InDelta(t, 3*58.32*58.32*1e-4, out.ACE, 1e-9)

	resp, _ = e.get(t, "/api/v1/stats/ace?months=6-11&basin=na")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntensityCached(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, "/api/v1/stats/intensity")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		N    int     `json:"n"`
		Mean float64 `json:"mean"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.N)
	assert.InDelta(t, 35, out.Mean, 1e-9)

	before := e.cache.Stats().Hits
	resp, _ = e.get(t, "/api/v1/stats/intensity")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, e.cache.Stats().Hits, before)
}

func TestIngestTrigger(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Post(e.server.URL+"/api/v1/ingest", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out["run_id"])

	// The background run finishes and lands in status.
	assert.Eventually(t, func() bool {
		r, body := e.get(t, "/api/v1/status")
		if r.StatusCode != http.StatusOK {
			return false
		}
		var st statusResponse
		if err := json.Unmarshal(body, &st); err != nil {
			return false
		}
		return !st.Running && st.Last.RunID == out["run_id"]
	}, 5*time.Second, 50*time.Millisecond)
}

func TestArtifactFileServer(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.outputDir, "stats.json"), []byte(`{"storms":2}`), 0o644))

	resp, body := e.get(t, "/files/stats.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"storms"`)

	resp, _ = e.get(t, "/files/missing.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Directory listings and escapes are refused.
	resp, _ = e.get(t, "/files/")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.get(t, "/files/../catalog.db")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}
