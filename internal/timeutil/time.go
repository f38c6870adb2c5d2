// Package timeutil implements timestamps for climate-model output, which may
// use either the proleptic Gregorian calendar or the idealised 360-day
// calendar (12 months of 30 days) common in long climate integrations.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Calendar identifies the calendar a Time is expressed in.
type Calendar int

const (
	// Gregorian is the proleptic Gregorian calendar (the default).
	Gregorian Calendar = iota
	// Cal360Day is the 12 x 30-day model calendar.
	Cal360Day
)

// ErrNotADate reports a timestep field where a date was expected. TRACK
// emits raw model timesteps unless its output has been run through date
// conversion; storm-assess requires converted files.
var ErrNotADate = errors.New("timestep field is not a YYYYMMDDHH date; run the TRACK output through date conversion first")

// ParseCalendar maps a configuration string onto a Calendar.
func ParseCalendar(s string) (Calendar, error) {
	switch s {
	case "", "gregorian":
		return Gregorian, nil
	case "360_day", "360day":
		return Cal360Day, nil
	}
	return Gregorian, fmt.Errorf("unknown calendar %q (want gregorian or 360_day)", s)
}

// String returns the configuration name of the calendar.
func (c Calendar) String() string {
	if c == Cal360Day {
		return "360_day"
	}
	return "gregorian"
}

// Time is a calendar-aware timestamp. The zero value is invalid and reports
// IsZero() == true.
type Time struct {
	year                          int
	month, day, hour, minute, sec int
	cal                           Calendar
}

// Date constructs a validated Time at the given hour.
func Date(year, month, day, hour int, cal Calendar) (Time, error) {
	t := Time{year: year, month: month, day: day, hour: hour, cal: cal}
	if err := t.validate(); err != nil {
		return Time{}, err
	}
	return t, nil
}

// MustDate is Date for fixtures and tests; it panics on invalid input.
func MustDate(year, month, day, hour int, cal Calendar) Time {
	t, err := Date(year, month, day, hour, cal)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse reads a TRACK YYYYMMDDHH timestamp in the given calendar.
func Parse(s string, cal Calendar) (Time, error) {
	if len(s) != 10 {
		return Time{}, fmt.Errorf("%q: %w", s, ErrNotADate)
	}
	if _, err := strconv.Atoi(s); err != nil {
		return Time{}, fmt.Errorf("%q: %w", s, ErrNotADate)
	}
	year, _ := strconv.Atoi(s[0:4])
	month, _ := strconv.Atoi(s[4:6])
	day, _ := strconv.Atoi(s[6:8])
	hour, _ := strconv.Atoi(s[8:10])
	return Date(year, month, day, hour, cal)
}

func (t Time) validate() error {
	if t.month < 1 || t.month > 12 {
		return fmt.Errorf("month %d out of range", t.month)
	}
	if t.day < 1 || t.day > daysInMonth(t.year, t.month, t.cal) {
		return fmt.Errorf("day %d out of range for %d-%02d (%s)", t.day, t.year, t.month, t.cal)
	}
	if t.hour < 0 || t.hour > 23 {
		return fmt.Errorf("hour %d out of range", t.hour)
	}
	return nil
}

func daysInMonth(year, month int, cal Calendar) int {
	if cal == Cal360Day {
		return 30
	}
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsZero reports whether t is the unset zero value.
func (t Time) IsZero() bool { return t == Time{} }

// Calendar returns the calendar t is expressed in.
func (t Time) Calendar() Calendar { return t.cal }

// Year returns the year.
func (t Time) Year() int { return t.year }

// Month returns the month (1-12).
func (t Time) Month() int { return t.month }

// Day returns the day of month.
func (t Time) Day() int { return t.day }

// Hour returns the hour (0-23).
func (t Time) Hour() int { return t.hour }

// Minute returns the minute.
func (t Time) Minute() int { return t.minute }

// Second returns the second.
func (t Time) Second() int { return t.sec }

// absHours maps t onto a monotonically increasing hour index within its own
// calendar. Indices from different calendars must not be compared.
func (t Time) absHours() int64 {
	if t.cal == Cal360Day {
		days := int64(t.year)*360 + int64(t.month-1)*30 + int64(t.day-1)
		return days*24 + int64(t.hour)
	}
	g := time.Date(t.year, time.Month(t.month), t.day, t.hour, t.minute, t.sec, 0, time.UTC)
	u := g.Unix()
	h := u / 3600
	if u%3600 < 0 {
		h--
	}
	return h
}

// Compare orders two timestamps expressed in the same calendar: -1 if t is
// before u, 0 if equal, +1 if after. Ordering across calendars is undefined.
func (t Time) Compare(u Time) int {
	a, b := t.absHours(), u.absHours()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Before reports whether t is before u.
func (t Time) Before(u Time) bool { return t.Compare(u) < 0 }

// After reports whether t is after u.
func (t Time) After(u Time) bool { return t.Compare(u) > 0 }

// Equal reports whether t and u denote the same instant.
func (t Time) Equal(u Time) bool { return t.cal == u.cal && t.Compare(u) == 0 }

// AddHours returns t shifted by n hours, wrapping days, months and years
// according to t's calendar.
func (t Time) AddHours(n int) Time {
	if t.cal == Cal360Day {
		total := t.absHours() + int64(n)
		days := total / 24
		hour := total % 24
		if hour < 0 {
			hour += 24
			days--
		}
		year := days / 360
		rem := days % 360
		if rem < 0 {
			rem += 360
			year--
		}
		return Time{
			year:  int(year),
			month: int(rem/30) + 1,
			day:   int(rem%30) + 1,
			hour:  int(hour),
			cal:   Cal360Day,
		}
	}
	g := time.Date(t.year, time.Month(t.month), t.day, t.hour, t.minute, t.sec, 0, time.UTC).
		Add(time.Duration(n) * time.Hour)
	return Time{
		year:   g.Year(),
		month:  int(g.Month()),
		day:    g.Day(),
		hour:   g.Hour(),
		minute: g.Minute(),
		sec:    g.Second(),
		cal:    Gregorian,
	}
}

// Sub returns the duration t-u for timestamps in the same calendar.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(t.absHours()-u.absHours()) * time.Hour
}

// SixHourly reports whether t falls on a synoptic hour (00, 06, 12 or 18Z).
func (t Time) SixHourly() bool {
	switch t.hour {
	case 0, 6, 12, 18:
		return t.minute == 0 && t.sec == 0
	}
	return false
}

// Format renders t in TRACK's YYYYMMDDHH form.
func (t Time) Format() string {
	return fmt.Sprintf("%04d%02d%02d%02d", t.year, t.month, t.day, t.hour)
}

// String renders an ISO-like timestamp, suffixed with the calendar name for
// the model calendar.
func (t Time) String() string {
	s := fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", t.year, t.month, t.day, t.hour, t.minute, t.sec)
	if t.cal == Cal360Day {
		return s + "[360_day]"
	}
	return s
}

// MarshalJSON encodes t using its String form.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

// UnmarshalJSON decodes the String form, accepting both calendars.
func (t *Time) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("time: %w", err)
	}
	parsed, err := ParseString(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseString is the inverse of String.
func ParseString(s string) (Time, error) {
	cal := Gregorian
	if len(s) > 9 && s[len(s)-9:] == "[360_day]" {
		cal = Cal360Day
		s = s[:len(s)-9]
	}
	var year, month, day, hour, minute, sec int
	if _, err := fmt.Sscanf(s, "%04d-%02d-%02dT%02d:%02d:%02d", &year, &month, &day, &hour, &minute, &sec); err != nil {
		return Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	t := Time{year: year, month: month, day: day, hour: hour, minute: minute, sec: sec, cal: cal}
	if err := t.validate(); err != nil {
		return Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
