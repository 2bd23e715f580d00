// Package datenorm turns a column of heterogeneous date-like values into
// timestamps.
//
// Parsing is per value and best-effort: every input position yields exactly
// one output position, and anything that cannot be read as a date becomes an
// invalid sql.NullTime rather than an error. Mixed formats in one column are
// expected (exports that were hand-edited in a spreadsheet usually have them).
//
// Ambiguous numeric dates such as "03/04/2024" are read day-first by default
// (3 April 2024). The policy is a fixed layout order, not a per-value guess,
// so "13/04/2024" is also read day-first. A value that is impossible in the
// preferred order but valid in the other one ("04/13/2024") falls back to the
// other order instead of being dropped. Set Options.MonthFirst for US-style
// sources.
package datenorm

import (
	"database/sql"
	"encoding/json"
	"math"
	"strings"
	"time"

	"salescanon/internal/transformer"
)

// Options control date interpretation.
//
// The zero value is the default policy: day-first, UTC.
type Options struct {
	// MonthFirst switches ambiguous numeric dates to MM/DD/YYYY.
	MonthFirst bool

	// Location is used for values without an explicit zone, and every
	// parsed value is returned in it. Nil means UTC.
	Location *time.Location
}

// Spreadsheet serial days are counted from this epoch (Excel 1900 system,
// including its fictitious 1900-02-29).
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Serial day numbers outside this range are not treated as dates. The bounds
// correspond to 1950-01-01 and 2099-12-31 and keep small integer columns
// (counts, quantities) from being read as dates in the 1900s.
const (
	minSerialDay = 18264
	maxSerialDay = 73050
)

// Unix-second timestamps are accepted between 2001-09-09 and 5138-11-16.
const (
	minUnixSeconds = 1e9
	maxUnixSeconds = 1e11
)

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	"2006.1.2",
	"20060102",
}

var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	"2/1/06",
}

var monthFirstLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"1-2-2006 15:04:05",
	"1-2-2006 15:04",
	"1-2-2006",
	"1.2.2006",
	"1/2/06",
}

var textLayouts = []string{
	"Jan 2, 2006",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006 15:04:05",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2 Jan 2006 15:04",
	"02-Jan-2006",
	"2-Jan-2006",
	"2-Jan-06",
	"Jan-2-2006",
	"2006-Jan-02",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
}

// layouts returns the ordered layout list for a policy.
func (o Options) layouts() []string {
	out := make([]string, 0, len(isoLayouts)+len(dayFirstLayouts)+len(monthFirstLayouts)+len(textLayouts))
	out = append(out, isoLayouts...)
	if o.MonthFirst {
		out = append(out, monthFirstLayouts...)
		out = append(out, dayFirstLayouts...)
	} else {
		out = append(out, dayFirstLayouts...)
		out = append(out, monthFirstLayouts...)
	}
	return append(out, textLayouts...)
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Parse converts values into timestamps. The result has the same length and
// order as values; unparseable entries are invalid (null).
func Parse(values []any, opt Options) []sql.NullTime {
	out := make([]sql.NullTime, len(values))
	layouts := opt.layouts()
	loc := opt.location()
	for i, v := range values {
		if t, ok := parseValue(v, layouts, loc); ok {
			out[i] = sql.NullTime{Time: t, Valid: true}
		}
	}
	return out
}

// ParseValue converts a single value.
func ParseValue(v any, opt Options) (time.Time, bool) {
	return parseValue(v, opt.layouts(), opt.location())
}

// ParseRatio returns the share of non-null values that parse as dates.
// A column with no non-null values has ratio 0.
func ParseRatio(values []any, opt Options) float64 {
	layouts := opt.layouts()
	loc := opt.location()
	seen, ok := 0, 0
	for _, v := range values {
		if transformer.IsBlank(v) {
			continue
		}
		seen++
		if _, parsed := parseValue(v, layouts, loc); parsed {
			ok++
		}
	}
	if seen == 0 {
		return 0
	}
	return float64(ok) / float64(seen)
}

// parseValue returns the parsed time expressed in loc, so values from
// different sources (offsets, Unix seconds, zone-less strings) share one
// location and compare equal on the same wall-clock calendar.
func parseValue(v any, layouts []string, loc *time.Location) (time.Time, bool) {
	t, ok := parseAny(v, layouts, loc)
	if !ok {
		return time.Time{}, false
	}
	return t.In(loc), true
}

func parseAny(v any, layouts []string, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case sql.NullTime:
		return t.Time, t.Valid
	case string:
		return parseString(t, layouts, loc)
	case []byte:
		return parseString(string(t), layouts, loc)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromNumber(f, loc)
	case float64:
		return fromNumber(t, loc)
	case float32:
		return fromNumber(float64(t), loc)
	case int:
		return fromNumber(float64(t), loc)
	case int32:
		return fromNumber(float64(t), loc)
	case int64:
		return fromNumber(float64(t), loc)
	default:
		return time.Time{}, false
	}
}

func parseString(s string, layouts []string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, lay := range layouts {
		if t, err := time.ParseInLocation(lay, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// fromNumber reads Unix seconds as an instant and serial days as a calendar
// date in loc.
func fromNumber(f float64, loc *time.Location) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	switch {
	case f >= minUnixSeconds && f < maxUnixSeconds:
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case f >= minSerialDay && f <= maxSerialDay:
		days, frac := math.Modf(f)
		y, m, d := serialEpoch.Date()
		t := time.Date(y, m, d+int(days), 0, 0, 0, 0, loc)
		return t.Add(time.Duration(frac * float64(24*time.Hour))).Round(time.Second), true
	default:
		return time.Time{}, false
	}
}
