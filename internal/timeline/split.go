package timeline

import (
	"math"
	"time"
)

// DaySegment is a RawInterval clipped to one local calendar day. Segments are
// created fresh on every query, never mutated in place, and recomputed
// whenever the underlying interval set or target day changes.
//
// CrossDay and Running are independent: a timer started yesterday and still
// running today is both. OriginalID always traces back to the source record
// for update and delete operations; ID gets a day suffix when the source
// crosses a day boundary so the per-day pieces stay distinct.
type DaySegment struct {
	ID              string
	OriginalID      string
	Span            Interval
	CrossDay        bool
	Running         bool
	DurationMinutes int
	CategoryID      string
	Title           string
	Note            string
	Tags            []string
}

// SplitForDay clips every raw interval to the given local day and returns one
// segment per interval that overlaps it. Open intervals are extended to now
// for clipping only — the true end stays indeterminate and the segment is
// marked Running. Records with an end before their start are corrupt stored
// data, not a reason to fail a whole day: they are dropped silently, as are
// intervals with no overlap. A genuinely instantaneous record inside the day
// survives as a zero-minute segment; whether to display it is the caller's
// policy.
//
// Callers needing a multi-day view invoke this once per day in the range.
func SplitForDay(raw []RawInterval, day Day, now time.Time) []DaySegment {
	dayStart := day.Start()
	dayEnd := day.End()

	segments := make([]DaySegment, 0, len(raw))

	for _, r := range raw {
		end := r.Span.End
		running := r.Span.Open()
		if running {
			end = now
		}
		if end.Before(r.Span.Start) {
			continue
		}

		effStart := maxTime(r.Span.Start, dayStart)
		effEnd := minTime(end, dayEnd)
		if effEnd.Before(effStart) {
			continue
		}
		if effStart.Equal(effEnd) {
			// Zero overlap after clipping. Keep only the instantaneous record
			// that actually sits inside this day; collapsed clips of longer
			// intervals belong to a neighbouring day.
			if !r.Span.Start.Equal(end) || !day.Contains(effStart) {
				continue
			}
		}

		crossDay := r.Span.Start.Before(dayStart) || end.After(dayEnd)

		id := r.ID
		if crossDay {
			id = r.ID + ":" + day.String()
		}

		segments = append(segments, DaySegment{
			ID:              id,
			OriginalID:      r.ID,
			Span:            Interval{Start: effStart, End: effEnd},
			CrossDay:        crossDay,
			Running:         running,
			DurationMinutes: roundMinutes(effEnd.Sub(effStart)),
			CategoryID:      r.CategoryID,
			Title:           r.ItemTitle,
			Note:            r.Note,
			Tags:            r.Tags,
		})
	}

	return segments
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
