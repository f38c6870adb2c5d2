package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leosaffin/storm-assess/internal/storm"
)

func TestLonLatToDistance(t *testing.T) {
	lyon := orb.Point{4.8422, 45.7597}
	paris := orb.Point{2.3508, 48.8567}
	assert.InDelta(t, 392217.2595594006, LonLatToDistance(lyon, paris), 1e-6)

	// Symmetric, and zero for identical points.
	assert.Equal(t, LonLatToDistance(lyon, paris), LonLatToDistance(paris, lyon))
	assert.Zero(t, LonLatToDistance(lyon, lyon))
}

func TestNormalizeLon(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-75, 285},
		{0, 0},
		{359.9, 359.9},
		{360, 0},
		{725, 5},
		{-360, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLon(tt.in), "NormalizeLon(%v)", tt.in)
	}
	assert.Equal(t, []float64{285, 5}, NormalizeLons([]float64{-75, 365}))
}

func TestWrapLon(t *testing.T) {
	assert.Equal(t, -75.0, WrapLon(285))
	assert.Equal(t, 30.0, WrapLon(30))
	assert.Equal(t, -180.0, WrapLon(180))
	// In-range values come back bit-exact.
	assert.Equal(t, 179.9, WrapLon(179.9))
	assert.Equal(t, -179.9, WrapLon(-179.9))
}

func TestUnwrapLons(t *testing.T) {
	// A track crossing the 0/360 wrap point becomes continuous.
	in := []float64{350, 355, 2, 8}
	out := UnwrapLons(in)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i]-out[i-1], 180.0)
		assert.Greater(t, out[i]-out[i-1], -180.0)
	}
	// Monotonically increasing eastward track stays increasing.
	assert.True(t, out[0] < out[1] && out[1] < out[2] && out[2] < out[3], "got %v", out)

	// No wrap crossing: unchanged.
	flat := []float64{100, 110, 120}
	assert.Equal(t, flat, UnwrapLons(flat))
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name           string
		a1, a2, b1, b2 orb.Point
		want           bool
	}{
		{
			name: "crossing",
			a1:   orb.Point{0, 0}, a2: orb.Point{10, 10},
			b1: orb.Point{0, 10}, b2: orb.Point{10, 0},
			want: true,
		},
		{
			name: "parallel",
			a1:   orb.Point{0, 0}, a2: orb.Point{10, 0},
			b1: orb.Point{0, 1}, b2: orb.Point{10, 1},
			want: false,
		},
		{
			name: "touching endpoint",
			a1:   orb.Point{0, 0}, a2: orb.Point{5, 5},
			b1: orb.Point{5, 5}, b2: orb.Point{10, 0},
			want: true,
		},
		{
			name: "collinear overlap",
			a1:   orb.Point{0, 0}, a2: orb.Point{10, 0},
			b1: orb.Point{5, 0}, b2: orb.Point{15, 0},
			want: true,
		},
		{
			name: "disjoint",
			a1:   orb.Point{0, 0}, a2: orb.Point{1, 1},
			b1: orb.Point{5, 5}, b2: orb.Point{6, 6},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentsIntersect(tt.a1, tt.a2, tt.b1, tt.b2))
		})
	}
}

func TestLineIntersectsPolygon(t *testing.T) {
	box := orb.Polygon{orb.Ring{
		{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0},
	}}

	inside := orb.LineString{{5, 5}, {6, 6}}
	assert.True(t, LineIntersectsPolygon(inside, box))

	// Crosses the box without having a vertex inside it.
	crossing := orb.LineString{{-5, 5}, {15, 5}}
	assert.True(t, LineIntersectsPolygon(crossing, box))

	outside := orb.LineString{{-5, -5}, {-1, -1}}
	assert.False(t, LineIntersectsPolygon(outside, box))
}

func TestLineIntersectsBound(t *testing.T) {
	b := orb.Bound{Min: orb.Point{260, 0}, Max: orb.Point{360, 60}}
	assert.True(t, LineIntersectsBound(orb.LineString{{285, 22}, {290, 25}}, b))
	assert.False(t, LineIntersectsBound(orb.LineString{{100, 22}, {110, 25}}, b))
}

func TestTrackLine(t *testing.T) {
	s := &storm.Storm{Obs: []storm.Observation{
		{Lon: 285.4, Lat: 22.4},
		{Lon: 286.0, Lat: 23.0},
	}}
	line := TrackLine(s)
	require.Len(t, line, 2)
	assert.Equal(t, orb.Point{285.4, 22.4}, line[0])
	assert.Equal(t, orb.Point{286.0, 23.0}, line[1])
}
