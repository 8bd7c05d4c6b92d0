// Package timeline implements the day-scoped interval pipeline behind the
// activity timeline view: clipping raw records to a single local calendar day,
// composing the clipped segments into a gap-filled, lane-assigned block
// sequence, and reducing them into summary statistics.
//
// All functions in this package are pure. The same pipeline serves the HTTP
// API and the MCP adapter so both always agree on what a day looks like.
package timeline

import (
	"fmt"
	"strings"
	"time"
)

// rangeLayout is the timestamp layout written into tstzrange literals. The
// offset carries minutes so zones like Asia/Kolkata render correctly.
const rangeLayout = "2006-01-02 15:04:05.999999-07:00"

// rangeParseLayouts covers the offset forms Postgres emits for a tstzrange
// bound, which depend on the session TimeZone: "+00" for whole-hour zones,
// "+05:30" for minute-bearing ones, and "+05:53:28" for pre-standardization
// LMT dates.
var rangeParseLayouts = []string{
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00:00",
}

// Interval is a half-open time span [Start, End). A zero End means the
// interval is still open — a running timer with no recorded end.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Open reports whether the interval has no recorded end.
func (iv Interval) Open() bool {
	return iv.End.IsZero()
}

// String renders the interval as a Postgres tstzrange literal:
// ["2026-08-28 10:00:00+00:00","2026-08-28 11:00:00+00:00") — with an empty
// upper bound for open intervals. This is the only place the range wire
// format is produced.
func (iv Interval) String() string {
	var b strings.Builder
	b.WriteString(`["`)
	b.WriteString(iv.Start.Format(rangeLayout))
	b.WriteString(`",`)
	if !iv.Open() {
		b.WriteString(`"`)
		b.WriteString(iv.End.Format(rangeLayout))
		b.WriteString(`"`)
	}
	b.WriteString(`)`)
	return b.String()
}

// ParseInterval parses a Postgres tstzrange text literal into an Interval.
// Only the inclusive-lower/exclusive-upper form produced by String and by
// Postgres itself is accepted.
func ParseInterval(s string) (Interval, error) {
	body, ok := strings.CutPrefix(s, "[")
	if !ok {
		return Interval{}, fmt.Errorf("parse interval %q: missing inclusive lower bound", s)
	}
	body, ok = strings.CutSuffix(body, ")")
	if !ok {
		return Interval{}, fmt.Errorf("parse interval %q: missing exclusive upper bound", s)
	}

	lower, upper, ok := splitRangeBounds(body)
	if !ok {
		return Interval{}, fmt.Errorf("parse interval %q: malformed bounds", s)
	}

	var iv Interval
	start, err := parseBound(unquoteBound(lower))
	if err != nil {
		return Interval{}, fmt.Errorf("parse interval lower bound: %w", err)
	}
	iv.Start = start

	if upper = unquoteBound(upper); upper != "" {
		end, err := parseBound(upper)
		if err != nil {
			return Interval{}, fmt.Errorf("parse interval upper bound: %w", err)
		}
		iv.End = end
	}

	return iv, nil
}

func parseBound(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range rangeParseLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// splitRangeBounds splits "lower,upper" at the comma separating the two
// bounds, respecting double-quoted bounds that contain no commas themselves
// (timestamps never do, so a simple quote-aware scan suffices).
func splitRangeBounds(body string) (lower, upper string, ok bool) {
	quoted := false
	for i, r := range body {
		switch r {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				return body[:i], body[i+1:], true
			}
		}
	}
	return "", "", false
}

func unquoteBound(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}

// RawInterval is an interval record as fetched from the store: a possibly
// open-ended span plus the item it was logged against. The pipeline treats it
// as read-only input. An empty CategoryID means the record is uncategorized.
type RawInterval struct {
	ID         string
	Span       Interval
	ItemID     string
	ItemTitle  string
	CategoryID string
	Note       string
	Tags       []string
}

// Category is the display metadata for a category id.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Day is a calendar date anchored to the viewer's IANA zone. Day-boundary
// math happens exclusively through Start and End so UTC days can never leak
// into local-day decisions.
type Day struct {
	Year  int
	Month time.Month
	Date  int
	Loc   *time.Location
}

// NewDay builds a Day in the given location. A nil location is a caller
// contract violation, not a data error, and panics.
func NewDay(year int, month time.Month, date int, loc *time.Location) Day {
	if loc == nil {
		panic("timeline: Day requires a resolved *time.Location")
	}
	return Day{Year: year, Month: month, Date: date, Loc: loc}
}

// DayOf returns the calendar day the instant falls on in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		panic("timeline: DayOf requires a resolved *time.Location")
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Date: d, Loc: loc}
}

// Start returns local midnight at the start of the day.
func (d Day) Start() time.Time {
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, d.Loc)
}

// End returns local midnight of the following day. Day spans are half-open
// [Start, End), like every other interval in this package.
func (d Day) End() time.Time {
	return d.Start().AddDate(0, 0, 1)
}

// Contains reports whether the instant falls within the day.
func (d Day) Contains(t time.Time) bool {
	return !t.Before(d.Start()) && t.Before(d.End())
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Date)
}
