package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/amberline/daybeat/internal/timeline"
)

func (a *Adapter) handleTimelineDay() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		day, loc, err := a.resolveDay(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		now := a.now().In(loc)

		segments, err := a.daySegments(ctx, day, now)
		if err != nil {
			return mcp.NewToolResultError("Failed to load intervals: " + err.Error()), nil
		}
		blocks := timeline.Compose(segments, day, now)

		var b strings.Builder
		fmt.Fprintf(&b, "Timeline for %s (%s), %d entries:\n\n", day, loc, len(segments))
		for _, block := range blocks {
			switch block.Kind {
			case timeline.BlockGap:
				fmt.Fprintf(&b, "%s–%s  idle (%s)\n",
					clock(block.From, loc), clock(block.To, loc), humanMinutes(block.Minutes))
			case timeline.BlockSegment:
				seg := block.Segment
				fmt.Fprintf(&b, "%s–%s  [lane %d] %s (%s)",
					clock(seg.Span.Start, loc), clock(seg.Span.End, loc),
					seg.Lane, seg.Title, humanMinutes(seg.DurationMinutes))
				if seg.Running {
					b.WriteString(" — running")
				}
				if seg.CrossDay {
					b.WriteString(" — crosses midnight")
				}
				for _, tag := range seg.Tags {
					b.WriteString(" #" + tag)
				}
				b.WriteString("\n")
			case timeline.BlockNow:
				fmt.Fprintf(&b, "── now (%s) ──\n", clock(block.At, loc))
			}
		}

		return mcp.NewToolResultText(b.String()), nil
	}
}

func (a *Adapter) handleTimelineStats() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		day, loc, err := a.resolveDay(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		now := a.now().In(loc)

		segments, err := a.daySegments(ctx, day, now)
		if err != nil {
			return mcp.NewToolResultError("Failed to load intervals: " + err.Error()), nil
		}
		categories, err := a.store.ListCategories(ctx, a.owner)
		if err != nil {
			return mcp.NewToolResultError("Failed to load categories: " + err.Error()), nil
		}

		stats := timeline.Aggregate(segments, categories)

		var b strings.Builder
		fmt.Fprintf(&b, "Stats for %s:\n", day)
		fmt.Fprintf(&b, "Time logged: %s across %d entries\n",
			humanMinutes(stats.TotalDurationMinutes), len(segments))
		if len(stats.Categories) > 0 {
			b.WriteString("\nCategories:\n")
			for _, c := range stats.Categories {
				fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Count)
			}
		}
		if len(stats.Tags) > 0 {
			b.WriteString("\nTags:\n")
			for _, tg := range stats.Tags {
				fmt.Fprintf(&b, "  #%s: %d\n", tg.Name, tg.Count)
			}
		}

		return mcp.NewToolResultText(b.String()), nil
	}
}

func (a *Adapter) handleIntervalList() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		day, loc, err := a.resolveDay(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		raw, err := a.store.ListIntervals(ctx, a.owner, day.Start(), day.End())
		if err != nil {
			return mcp.NewToolResultError("Failed to load intervals: " + err.Error()), nil
		}
		if len(raw) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No intervals recorded on %s.", day)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d interval(s) overlapping %s:\n\n", len(raw), day)
		for _, iv := range raw {
			end := "running"
			if !iv.Span.Open() {
				end = iv.Span.End.In(loc).Format(time.RFC3339)
			}
			fmt.Fprintf(&b, "%s  %s → %s  %q",
				iv.ID, iv.Span.Start.In(loc).Format(time.RFC3339), end, iv.ItemTitle)
			if len(iv.Tags) > 0 {
				fmt.Fprintf(&b, "  [%s]", strings.Join(iv.Tags, ", "))
			}
			b.WriteString("\n")
		}

		return mcp.NewToolResultText(b.String()), nil
	}
}

func (a *Adapter) handleIntervalStart() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, _ := req.GetArguments()["title"].(string)
		if title == "" {
			return mcp.NewToolResultError("title is required"), nil
		}

		created, err := a.store.CreateInterval(ctx, a.owner, timeline.RawInterval{
			Span:       timeline.Interval{Start: a.now()},
			ItemID:     strArg(req, "item_id"),
			ItemTitle:  title,
			CategoryID: strArg(req, "category_id"),
			Note:       strArg(req, "note"),
			Tags:       splitTags(strArg(req, "tags")),
		})
		if err != nil {
			return mcp.NewToolResultError("Failed to start timer: " + err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Timer started for %q (id: %s)", title, created.ID)), nil
	}
}

func (a *Adapter) handleIntervalStop() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := idArg(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		stopped, err := a.store.StopInterval(ctx, a.owner, id, a.now())
		if err != nil {
			return mcp.NewToolResultError("Failed to stop timer: " + err.Error()), nil
		}

		elapsed := stopped.Span.End.Sub(stopped.Span.Start)
		return mcp.NewToolResultText(fmt.Sprintf("Timer stopped for %q after %s",
			stopped.ItemTitle, humanDuration(elapsed))), nil
	}
}

func (a *Adapter) handleIntervalLog() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, _ := req.GetArguments()["title"].(string)
		if title == "" {
			return mcp.NewToolResultError("title is required"), nil
		}

		start, err := dateparse.ParseIn(strArg(req, "start"), a.loc)
		if err != nil {
			return mcp.NewToolResultError("unparseable start: " + err.Error()), nil
		}
		end, err := dateparse.ParseIn(strArg(req, "end"), a.loc)
		if err != nil {
			return mcp.NewToolResultError("unparseable end: " + err.Error()), nil
		}
		if end.Before(start) {
			return mcp.NewToolResultError("end is before start"), nil
		}

		created, err := a.store.CreateInterval(ctx, a.owner, timeline.RawInterval{
			Span:       timeline.Interval{Start: start, End: end},
			ItemID:     strArg(req, "item_id"),
			ItemTitle:  title,
			CategoryID: strArg(req, "category_id"),
			Note:       strArg(req, "note"),
			Tags:       splitTags(strArg(req, "tags")),
		})
		if err != nil {
			return mcp.NewToolResultError("Failed to log interval: " + err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Logged %q: %s (id: %s)",
			title, humanDuration(end.Sub(start)), created.ID)), nil
	}
}

func (a *Adapter) handleIntervalDelete() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := idArg(req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := a.store.DeleteInterval(ctx, a.owner, id); err != nil {
			return mcp.NewToolResultError("Failed to delete interval: " + err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Interval %s deleted", id)), nil
	}
}

func (a *Adapter) handleCategoryList() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		categories, err := a.store.ListCategories(ctx, a.owner)
		if err != nil {
			return mcp.NewToolResultError("Failed to load categories: " + err.Error()), nil
		}
		if len(categories) == 0 {
			return mcp.NewToolResultText("No categories defined."), nil
		}

		sorted := make([]timeline.Category, 0, len(categories))
		for _, c := range categories {
			sorted = append(sorted, c)
		}
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

		var b strings.Builder
		fmt.Fprintf(&b, "%d categories:\n", len(sorted))
		for _, c := range sorted {
			fmt.Fprintf(&b, "  %s  %s (%s)\n", c.ID, c.Name, c.Color)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// daySegments runs the first pipeline stage for one day.
func (a *Adapter) daySegments(ctx context.Context, day timeline.Day, now time.Time) ([]timeline.DaySegment, error) {
	raw, err := a.store.ListIntervals(ctx, a.owner, day.Start(), day.End())
	if err != nil {
		return nil, err
	}
	return timeline.SplitForDay(raw, day, now), nil
}

// resolveDay reads the optional date and tz arguments, defaulting to today in
// the configured zone.
func (a *Adapter) resolveDay(req mcp.CallToolRequest) (timeline.Day, *time.Location, error) {
	loc := a.loc
	if tz := strArg(req, "tz"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return timeline.Day{}, nil, fmt.Errorf("unknown tz: %s", tz)
		}
		loc = parsed
	}

	at := a.now()
	if date := strArg(req, "date"); date != "" {
		parsed, err := dateparse.ParseIn(date, loc)
		if err != nil {
			return timeline.Day{}, nil, fmt.Errorf("unparseable date: %s", date)
		}
		at = parsed
	}

	return timeline.DayOf(at, loc), loc, nil
}

func strArg(req mcp.CallToolRequest, key string) string {
	v, _ := req.GetArguments()[key].(string)
	return v
}

func idArg(req mcp.CallToolRequest) (uuid.UUID, error) {
	raw := strArg(req, "id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid interval id: %s", raw)
	}
	return id, nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func clock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

func humanMinutes(minutes int) string {
	return humanDuration(time.Duration(minutes) * time.Minute)
}

func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}
	return durafmt.Parse(d.Truncate(time.Minute)).LimitFirstN(2).String()
}
