package timeutil

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		cal     Calendar
		want    Time
		wantErr error
	}{
		{
			name: "gregorian",
			in:   "2000050600",
			cal:  Gregorian,
			want: MustDate(2000, 5, 6, 0, Gregorian),
		},
		{
			name: "360 day",
			in:   "2011112106",
			cal:  Cal360Day,
			want: MustDate(2011, 11, 21, 6, Cal360Day),
		},
		{
			name:    "raw timestep",
			in:      "312",
			cal:     Gregorian,
			wantErr: ErrNotADate,
		},
		{
			name:    "ten chars but not a number",
			in:      "20000x0600",
			cal:     Gregorian,
			wantErr: ErrNotADate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in, tt.cal)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateValidation(t *testing.T) {
	// 31 January is valid in the Gregorian calendar but not in the model
	// calendar, where every month has 30 days.
	_, err := Date(2000, 1, 31, 0, Gregorian)
	assert.NoError(t, err)
	_, err = Date(2000, 1, 31, 0, Cal360Day)
	assert.Error(t, err)

	_, err = Date(2000, 2, 30, 0, Gregorian)
	assert.Error(t, err)
	_, err = Date(2000, 2, 30, 0, Cal360Day)
	assert.NoError(t, err)

	_, err = Date(2000, 13, 1, 0, Gregorian)
	assert.Error(t, err)
	_, err = Date(2000, 1, 1, 24, Gregorian)
	assert.Error(t, err)
}

func TestAddHours360Day(t *testing.T) {
	tests := []struct {
		name string
		in   Time
		n    int
		want Time
	}{
		{
			name: "within a day",
			in:   MustDate(2000, 5, 6, 0, Cal360Day),
			n:    6,
			want: MustDate(2000, 5, 6, 6, Cal360Day),
		},
		{
			name: "month boundary at day 30",
			in:   MustDate(2000, 5, 30, 18, Cal360Day),
			n:    6,
			want: MustDate(2000, 6, 1, 0, Cal360Day),
		},
		{
			name: "year boundary",
			in:   MustDate(2000, 12, 30, 18, Cal360Day),
			n:    12,
			want: MustDate(2001, 1, 1, 6, Cal360Day),
		},
		{
			name: "backwards across month",
			in:   MustDate(2000, 6, 1, 0, Cal360Day),
			n:    -6,
			want: MustDate(2000, 5, 30, 18, Cal360Day),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.AddHours(tt.n)
			assert.Equal(t, tt.want, got)
			// Arithmetic must never produce day 0 or month 0.
			assert.GreaterOrEqual(t, got.Day(), 1)
			assert.GreaterOrEqual(t, got.Month(), 1)
		})
	}
}

func TestAddHoursGregorian(t *testing.T) {
	got := MustDate(2000, 2, 28, 18, Gregorian).AddHours(12)
	assert.Equal(t, MustDate(2000, 2, 29, 6, Gregorian), got) // leap year
	got = MustDate(2001, 2, 28, 18, Gregorian).AddHours(12)
	assert.Equal(t, MustDate(2001, 3, 1, 6, Gregorian), got)
}

func TestCompareAndSub(t *testing.T) {
	a := MustDate(2000, 5, 6, 0, Cal360Day)
	b := MustDate(2000, 5, 7, 6, Cal360Day)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
	assert.Equal(t, 30*time.Hour, b.Sub(a))

	// A 360-day year is 8640 hours exactly.
	y := MustDate(2001, 5, 6, 0, Cal360Day)
	assert.Equal(t, 8640*time.Hour, y.Sub(a))
}

func TestComparePre1970(t *testing.T) {
	midnight := MustDate(1960, 1, 1, 0, Gregorian)
	one := MustDate(1960, 1, 1, 1, Gregorian)
	halfPast, err := ParseString("1960-01-01T00:30:00")
	require.NoError(t, err)

	// Hour indices are floored, so a half-past instant before the epoch
	// stays within its own hour instead of rounding into the next.
	assert.True(t, halfPast.Before(one))
	assert.False(t, halfPast.Before(midnight))
	assert.Zero(t, midnight.Compare(halfPast))
}

func TestSixHourly(t *testing.T) {
	assert.True(t, MustDate(2000, 5, 6, 0, Gregorian).SixHourly())
	assert.True(t, MustDate(2000, 5, 6, 18, Gregorian).SixHourly())
	assert.False(t, MustDate(2000, 5, 6, 3, Gregorian).SixHourly())
}

func TestFormatRoundTrip(t *testing.T) {
	in := "2000050612"
	parsed, err := Parse(in, Cal360Day)
	require.NoError(t, err)
	assert.Equal(t, in, parsed.Format())
}

func TestJSONRoundTrip(t *testing.T) {
	for _, tm := range []Time{
		MustDate(2000, 5, 6, 0, Gregorian),
		MustDate(2011, 11, 21, 6, Cal360Day),
	} {
		data, err := json.Marshal(tm)
		require.NoError(t, err)

		var back Time
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, tm, back)
	}
}

func TestZeroValue(t *testing.T) {
	var tm Time
	assert.True(t, tm.IsZero())
	assert.False(t, MustDate(2000, 1, 1, 0, Gregorian).IsZero())
}

func TestParseCalendar(t *testing.T) {
	cal, err := ParseCalendar("360_day")
	require.NoError(t, err)
	assert.Equal(t, Cal360Day, cal)

	cal, err = ParseCalendar("")
	require.NoError(t, err)
	assert.Equal(t, Gregorian, cal)

	_, err = ParseCalendar("julian")
	assert.Error(t, err)
}
