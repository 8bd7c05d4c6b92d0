package timeline

import (
	"sort"
	"time"
)

// BlockKind discriminates the timeline block variants.
type BlockKind string

const (
	BlockGap     BlockKind = "gap"
	BlockSegment BlockKind = "segment"
	BlockNow     BlockKind = "now"
)

// Segment is a day segment placed on the visual timeline. Lane is the
// concurrency slot the segment occupies; LaneCount is the day-wide lane total
// and is identical on every segment of one Compose call.
type Segment struct {
	DaySegment
	Lane             int
	LaneCount        int
	TopOffsetMinutes int
	HeightMinutes    int
}

// Block is one element of the composed day: an idle gap, a placed segment, or
// the now marker on the current day. From/To/Minutes are set on gaps, Segment
// on segments, and At on the now marker.
type Block struct {
	Kind    BlockKind
	From    time.Time
	To      time.Time
	Minutes int
	Segment *Segment
	At      time.Time
}

// Compose lays out a day's segments as an ordered block sequence: segments in
// start order interleaved with the complementary idle gaps, tiling
// [day.Start(), day.End()) exactly. When now falls on the rendered day a now
// marker is emitted at its chronological position, unless a segment covers it.
//
// Lane assignment is greedy earliest-fit over the start-sorted segments,
// which is optimal for interval graphs: two segments sharing a lane never
// overlap, and the lane total equals the day's maximum concurrency. Segments
// with identical spans are distinct activities and keep separate lanes.
//
// The walk is deterministic — ties on start time are broken by original id —
// so composing the same input twice yields identical output.
func Compose(segments []DaySegment, day Day, now time.Time) []Block {
	dayStart := day.Start()
	dayEnd := day.End()

	sorted := make([]DaySegment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Span.Start.Equal(sorted[j].Span.Start) {
			return sorted[i].Span.Start.Before(sorted[j].Span.Start)
		}
		return sorted[i].OriginalID < sorted[j].OriginalID
	})

	placed, laneCount := assignLanes(sorted, dayStart)

	markerPending := day.Contains(now)
	blocks := make([]Block, 0, 2*len(placed)+2)
	cursor := dayStart

	for i := range placed {
		seg := &placed[i]
		seg.LaneCount = laneCount
		start := seg.Span.Start

		if start.After(cursor) {
			blocks = append(blocks, gapBlock(cursor, start))
		}
		if markerPending && !now.Before(cursor) && now.Before(start) {
			blocks = append(blocks, Block{Kind: BlockNow, At: now})
			markerPending = false
		}

		blocks = append(blocks, Block{Kind: BlockSegment, Segment: seg})
		cursor = maxTime(cursor, seg.Span.End)
	}

	if cursor.Before(dayEnd) {
		blocks = append(blocks, gapBlock(cursor, dayEnd))
	}
	if markerPending && !now.Before(cursor) {
		blocks = append(blocks, Block{Kind: BlockNow, At: now})
	}

	return blocks
}

// assignLanes packs start-sorted segments into the fewest lanes such that no
// lane holds two overlapping segments: each segment takes the lowest lane
// whose previous occupant has already ended. Identical spans are distinct
// activities and never share a lane, which matters for zero-duration twins —
// half-open overlap alone would let them collapse onto one another.
func assignLanes(sorted []DaySegment, dayStart time.Time) ([]Segment, int) {
	placed := make([]Segment, 0, len(sorted))

	var laneLast []Interval

	for _, ds := range sorted {
		lane := -1
		for l, last := range laneLast {
			if last.End.After(ds.Span.Start) {
				continue
			}
			if last.Start.Equal(ds.Span.Start) && last.End.Equal(ds.Span.End) {
				continue
			}
			lane = l
			break
		}
		if lane == -1 {
			lane = len(laneLast)
			laneLast = append(laneLast, Interval{})
		}
		laneLast[lane] = ds.Span

		placed = append(placed, Segment{
			DaySegment:       ds,
			Lane:             lane,
			TopOffsetMinutes: roundMinutes(ds.Span.Start.Sub(dayStart)),
			HeightMinutes:    ds.DurationMinutes,
		})
	}

	return placed, len(laneLast)
}

func gapBlock(from, to time.Time) Block {
	return Block{Kind: BlockGap, From: from, To: to, Minutes: roundMinutes(to.Sub(from))}
}
