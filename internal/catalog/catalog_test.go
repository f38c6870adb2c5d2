package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testStorm(number int, genesis timeutil.Time, n int) storm.Storm {
	s := storm.Storm{Number: number}
	for i := 0; i < n; i++ {
		s.Obs = append(s.Obs, storm.Observation{
			Date:      genesis.AddHours(6 * i),
			Lon:       285 + float64(i),
			Lat:       22 + float64(i),
			Vorticity: 1.5,
			VMax:      20 + float64(i),
			MSLP:      1000 - float64(i),
			Extras:    map[string]float64{"vmax_10m": 15 + float64(i)},
		})
	}
	return s
}

func TestInsertAndGetStorm(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	st := testStorm(4, timeutil.MustDate(2000, 8, 1, 0, timeutil.Cal360Day), 3)
	st.Name = "HELENE"
	ids, err := s.InsertStorms(ctx, "tracks.date", []storm.Storm{st, {Number: 9}})
	require.NoError(t, err)
	require.Len(t, ids, 1) // empty storm skipped

	rec, got, err := s.GetStorm(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 4, rec.TrackNumber)
	assert.Equal(t, "HELENE", rec.Name)
	assert.Equal(t, "tracks.date", rec.SourceFile)
	assert.Equal(t, 3, rec.NRecords)
	assert.InDelta(t, 22, rec.MaxVMax, 1e-9)
	assert.InDelta(t, 998, rec.MinMSLP, 1e-9)
	assert.Equal(t, timeutil.Cal360Day, rec.Calendar)
	assert.True(t, rec.Genesis.Equal(timeutil.MustDate(2000, 8, 1, 0, timeutil.Cal360Day)))
	assert.True(t, rec.Lysis.Equal(timeutil.MustDate(2000, 8, 1, 12, timeutil.Cal360Day)))

	require.Equal(t, 3, got.Len())
	assert.InDelta(t, 285, got.Obs[0].Lon, 1e-9)
	assert.InDelta(t, 1.5, got.Obs[0].Vorticity, 1e-9)
	assert.Equal(t, map[string]float64{"vmax_10m": 15}, got.Obs[0].Extras)
	assert.True(t, got.Obs[2].Date.Equal(rec.Lysis))
}

func TestGetStormNotFound(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.GetStorm(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListStormsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cal := timeutil.Gregorian

	_, err := s.InsertStorms(ctx, "a.date", []storm.Storm{
		testStorm(1, timeutil.MustDate(2000, 8, 1, 0, cal), 2),
		testStorm(2, timeutil.MustDate(2000, 9, 1, 0, cal), 2),
	})
	require.NoError(t, err)
	_, err = s.InsertStorms(ctx, "b.date", []storm.Storm{
		testStorm(3, timeutil.MustDate(2001, 9, 1, 0, cal), 2),
	})
	require.NoError(t, err)

	all, err := s.ListStorms(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by genesis.
	assert.Equal(t, []int{1, 2, 3}, []int{all[0].TrackNumber, all[1].TrackNumber, all[2].TrackNumber})

	byYear, err := s.ListStorms(ctx, Filter{Year: 2000})
	require.NoError(t, err)
	assert.Len(t, byYear, 2)

	byMonth, err := s.ListStorms(ctx, Filter{Months: []int{9}})
	require.NoError(t, err)
	assert.Len(t, byMonth, 2)

	both, err := s.ListStorms(ctx, Filter{Year: 2001, Months: []int{8, 9}})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, 3, both[0].TrackNumber)

	bySource, err := s.ListStorms(ctx, Filter{SourceFile: "a.date"})
	require.NoError(t, err)
	assert.Len(t, bySource, 2)
}

func TestInsertStormsReplacesFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cal := timeutil.Gregorian

	ids, err := s.InsertStorms(ctx, "a.date", []storm.Storm{
		testStorm(1, timeutil.MustDate(2000, 8, 1, 0, cal), 2),
		testStorm(2, timeutil.MustDate(2000, 9, 1, 0, cal), 2),
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// Re-ingesting the same file replaces its storms instead of adding.
	_, err = s.InsertStorms(ctx, "a.date", []storm.Storm{
		testStorm(1, timeutil.MustDate(2000, 8, 1, 0, cal), 2),
	})
	require.NoError(t, err)

	all, err := s.ListStorms(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// The replaced storms' observations are gone too.
	_, _, err = s.GetStorm(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileBookkeeping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fi, err := s.GetFile(ctx, "a.date")
	require.NoError(t, err)
	assert.Nil(t, fi)

	now := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertFile(ctx, FileInfo{
		Path: "a.date", SHA256: "abc", ModTime: now.Add(-time.Hour), Storms: 2, IngestedAt: now,
	}))

	fi, err = s.GetFile(ctx, "a.date")
	require.NoError(t, err)
	require.NotNil(t, fi)
	assert.Equal(t, "abc", fi.SHA256)
	assert.Equal(t, 2, fi.Storms)
	assert.True(t, fi.IngestedAt.Equal(now))

	require.NoError(t, s.UpsertFile(ctx, FileInfo{
		Path: "a.date", SHA256: "def", ModTime: now, Storms: 3, IngestedAt: now,
	}))
	fi, err = s.GetFile(ctx, "a.date")
	require.NoError(t, err)
	assert.Equal(t, "def", fi.SHA256)
}

func TestDeleteFileAndCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cal := timeutil.Gregorian

	_, err := s.InsertStorms(ctx, "a.date", []storm.Storm{
		testStorm(1, timeutil.MustDate(2000, 8, 1, 0, cal), 2),
	})
	require.NoError(t, err)
	require.NoError(t, s.UpsertFile(ctx, FileInfo{Path: "a.date", SHA256: "abc", ModTime: time.Now(), Storms: 1, IngestedAt: time.Now()}))

	files, storms, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, 1, storms)

	require.NoError(t, s.DeleteFile(ctx, "a.date"))

	files, storms, err = s.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, files)
	assert.Zero(t, storms)
}
