// Package mcp exposes the timeline and interval CRUD to external
// tool-calling agents over the Model Context Protocol, so any MCP-capable
// assistant can log activity and read the day back.
//
// Tool profiles let a client load only what it needs:
//
//	daybeat-mcp                     → all tools (default)
//	daybeat-mcp --tools=read        → timeline and listing tools only
//	daybeat-mcp --tools=write       → interval mutation tools only
//	daybeat-mcp --tools=timeline_day,interval_start → individual tools
package mcp

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/amberline/daybeat/internal/timeline"
)

// Store is the slice of the persistence layer the tools forward to.
type Store interface {
	ListIntervals(ctx context.Context, owner uuid.UUID, from, to time.Time) ([]timeline.RawInterval, error)
	CreateInterval(ctx context.Context, owner uuid.UUID, r timeline.RawInterval) (timeline.RawInterval, error)
	StopInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID, at time.Time) (timeline.RawInterval, error)
	DeleteInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID) error
	ListCategories(ctx context.Context, owner uuid.UUID) (map[string]timeline.Category, error)
}

// ProfileRead contains the tools that only inspect data.
var ProfileRead = map[string]bool{
	"timeline_day":   true,
	"timeline_stats": true,
	"interval_list":  true,
	"category_list":  true,
}

// ProfileWrite contains the tools that change data.
var ProfileWrite = map[string]bool{
	"interval_start":  true,
	"interval_stop":   true,
	"interval_log":    true,
	"interval_delete": true,
}

// Profiles maps profile names to their tool sets.
var Profiles = map[string]map[string]bool{
	"read":  ProfileRead,
	"write": ProfileWrite,
}

// ResolveTools takes a comma-separated string of profile names and/or
// individual tool names and returns the set of tool names to register.
// An empty input means "all" — every tool is registered.
func ResolveTools(input string) map[string]bool {
	input = strings.TrimSpace(input)
	if input == "" || input == "all" {
		return nil // nil means register everything
	}

	result := make(map[string]bool)
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if token == "all" {
			return nil
		}
		if profile, ok := Profiles[token]; ok {
			for tool := range profile {
				result[tool] = true
			}
		} else {
			result[token] = true
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// Adapter binds the tools to one owner's data. The adapter serves a single
// user; the owner id comes from configuration, not from the agent.
type Adapter struct {
	store Store
	owner uuid.UUID
	loc   *time.Location
	now   func() time.Time
}

func NewAdapter(st Store, owner uuid.UUID, loc *time.Location) *Adapter {
	return &Adapter{store: st, owner: owner, loc: loc, now: time.Now}
}

const serverInstructions = `daybeat tracks the user's activity as time intervals and renders them ` +
	`as a daily timeline. Use these tools to: start or stop a timer when the user begins or ` +
	`finishes an activity; log a completed time block after the fact; read back what a day ` +
	`looked like (timeline_day) or its totals (timeline_stats). Key tools: timeline_day, ` +
	`interval_start, interval_stop, interval_log.`

// NewServer creates an MCP server registering only the tools in the
// allowlist. If allowlist is nil, all tools are registered.
func (a *Adapter) NewServer(allowlist map[string]bool) *server.MCPServer {
	srv := server.NewMCPServer(
		"daybeat",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(serverInstructions),
	)
	a.registerTools(srv, allowlist)
	return srv
}

func shouldRegister(name string, allowlist map[string]bool) bool {
	if allowlist == nil {
		return true
	}
	return allowlist[name]
}

func (a *Adapter) registerTools(srv *server.MCPServer, allowlist map[string]bool) {
	if shouldRegister("timeline_day", allowlist) {
		srv.AddTool(
			mcp.NewTool("timeline_day",
				mcp.WithDescription("Render one day's activity timeline: every logged interval in chronological order with its concurrency lane, the idle gaps between them, and a marker at the current moment when showing today."),
				mcp.WithTitleAnnotation("Day Timeline"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithOpenWorldHintAnnotation(false),
				mcp.WithString("date",
					mcp.Description("The day to render, e.g. 2026-08-28 or 'august 28'. Defaults to today."),
				),
				mcp.WithString("tz",
					mcp.Description("IANA timezone for day boundaries (default: the configured zone)"),
				),
			),
			a.handleTimelineDay(),
		)
	}

	if shouldRegister("timeline_stats", allowlist) {
		srv.AddTool(
			mcp.NewTool("timeline_stats",
				mcp.WithDescription("Summary statistics for one day: total logged time, entries per category, entries per tag."),
				mcp.WithTitleAnnotation("Day Stats"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithOpenWorldHintAnnotation(false),
				mcp.WithString("date",
					mcp.Description("The day to summarize (default: today)"),
				),
				mcp.WithString("tz",
					mcp.Description("IANA timezone for day boundaries (default: the configured zone)"),
				),
			),
			a.handleTimelineStats(),
		)
	}

	if shouldRegister("interval_list", allowlist) {
		srv.AddTool(
			mcp.NewTool("interval_list",
				mcp.WithDescription("List the raw interval records overlapping one day, with their ids. Use this before interval_stop or interval_delete to find the record to act on."),
				mcp.WithTitleAnnotation("List Intervals"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithOpenWorldHintAnnotation(false),
				mcp.WithString("date",
					mcp.Description("The day to list (default: today)"),
				),
				mcp.WithString("tz",
					mcp.Description("IANA timezone for day boundaries (default: the configured zone)"),
				),
			),
			a.handleIntervalList(),
		)
	}

	if shouldRegister("interval_start", allowlist) {
		srv.AddTool(
			mcp.NewTool("interval_start",
				mcp.WithDescription("Start a running timer for an activity now. The timer stays open until interval_stop."),
				mcp.WithTitleAnnotation("Start Timer"),
				mcp.WithReadOnlyHintAnnotation(false),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(false),
				mcp.WithOpenWorldHintAnnotation(false),
				mcp.WithString("title",
					mcp.Required(),
					mcp.Description("What the user is doing, e.g. 'code review'"),
				),
				mcp.WithString("item_id",
					mcp.Description("Id of the task/activity/memory this time belongs to"),
				),
				mcp.WithString("category_id",
					mcp.Description("Category id (see category_list)"),
				),
				mcp.WithString("note",
					mcp.Description("Free-text note"),
				),
				mcp.WithString("tags",
					mcp.Description("Comma-separated tags"),
				),
			),
			a.handleIntervalStart(),
		)
	}

	if shouldRegister("interval_stop", allowlist) {
		srv.AddTool(
			mcp.NewTool("interval_stop",
				mcp.WithDescription("Stop a running timer. Fails if the interval is already closed."),
				mcp.WithTitleAnnotation("Stop Timer"),
				mcp.WithReadOnlyHintAnnotation(false),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(false),
				mcp.WithOpenWorldHintAnnotation(false),
				mcp.WithString("id",
					mcp.Required(),
					mcp.Description("Interval id (from interval_list or interval_start)"),
				),
			),
			a.handleIntervalStop(),
		)
	}

	if shouldRegister("interval_log", allowlist) {
		srv.AddTool(
			mcp.NewTool("interval_log",
				mcp.WithDescription("Log a completed time block after the fact, with explicit start and end."),
				mcp.WithTitleAnnotation("Log Interval"),
				mcp.WithReadOnlyHintAnnotation(false),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(false),
				mcp.WithOpenWorldHintAnnotation(false),
				mcp.WithString("title",
					mcp.Required(),
					mcp.Description("What the time was spent on"),
				),
				mcp.WithString("start",
					mcp.Required(),
					mcp.Description("Start instant, e.g. 2026-08-28T09:00:00+08:00 or '9am'"),
				),
				mcp.WithString("end",
					mcp.Required(),
					mcp.Description("End instant, after start"),
				),
				mcp.WithString("item_id",
					mcp.Description("Id of the task/activity/memory this time belongs to"),
				),
				mcp.WithString("category_id",
					mcp.Description("Category id (see category_list)"),
				),
				mcp.WithString("note",
					mcp.Description("Free-text note"),
				),
				mcp.WithString("tags",
					mcp.Description("Comma-separated tags"),
				),
			),
			a.handleIntervalLog(),
		)
	}

	if shouldRegister("interval_delete", allowlist) {
		srv.AddTool(
			mcp.NewTool("interval_delete",
				mcp.WithDescription("Delete an interval record permanently."),
				mcp.WithTitleAnnotation("Delete Interval"),
				mcp.WithReadOnlyHintAnnotation(false),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithIdempotentHintAnnotation(false),
				mcp.WithOpenWorldHintAnnotation(false),
				mcp.WithString("id",
					mcp.Required(),
					mcp.Description("Interval id to delete"),
				),
			),
			a.handleIntervalDelete(),
		)
	}

	if shouldRegister("category_list", allowlist) {
		srv.AddTool(
			mcp.NewTool("category_list",
				mcp.WithDescription("List the user's categories with their ids and colors."),
				mcp.WithTitleAnnotation("List Categories"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithDestructiveHintAnnotation(false),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithOpenWorldHintAnnotation(false),
			),
			a.handleCategoryList(),
		)
	}
}
