package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/araddon/dateparse"

	"github.com/amberline/daybeat/internal/timeline"
)

type timelineResponse struct {
	Date     string          `json:"date"`
	Timezone string          `json:"timezone"`
	Blocks   []blockResponse `json:"blocks"`
	Stats    timeline.Stats  `json:"stats"`
}

type blockResponse struct {
	Kind    timeline.BlockKind `json:"kind"`
	From    *time.Time         `json:"from,omitempty"`
	To      *time.Time         `json:"to,omitempty"`
	Minutes int                `json:"minutes,omitempty"`
	Segment *segmentResponse   `json:"segment,omitempty"`
	At      *time.Time         `json:"at,omitempty"`
}

type segmentResponse struct {
	ID               string    `json:"id"`
	OriginalID       string    `json:"original_id"`
	StartAt          time.Time `json:"start_at"`
	EndAt            time.Time `json:"end_at"`
	CrossDay         bool      `json:"cross_day"`
	Running          bool      `json:"running"`
	DurationMinutes  int       `json:"duration_minutes"`
	Lane             int       `json:"lane"`
	LaneCount        int       `json:"lane_count"`
	TopOffsetMinutes int       `json:"top_offset_minutes"`
	HeightMinutes    int       `json:"height_minutes"`
	CategoryID       string    `json:"category_id,omitempty"`
	Title            string    `json:"title"`
	Note             string    `json:"note,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
}

// getTimeline runs the whole pipeline for one local day: fetch the window,
// split, compose, aggregate. The viewer's zone comes from the request (or the
// configured default) and is used for every day-boundary decision.
func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	day, loc, ok := s.resolveDay(w, r)
	if !ok {
		return
	}
	now := s.now().In(loc)

	raw, err := s.store.ListIntervals(r.Context(), owner, day.Start(), day.End())
	if err != nil {
		slog.Error("timeline: list intervals failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load intervals")
		return
	}
	categories, err := s.store.ListCategories(r.Context(), owner)
	if err != nil {
		slog.Error("timeline: list categories failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}

	segments := timeline.SplitForDay(raw, day, now)
	blocks := timeline.Compose(segments, day, now)
	stats := timeline.Aggregate(segments, categories)

	resp := timelineResponse{
		Date:     day.String(),
		Timezone: loc.String(),
		Blocks:   make([]blockResponse, 0, len(blocks)),
		Stats:    stats,
	}
	for _, b := range blocks {
		resp.Blocks = append(resp.Blocks, toBlockResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// resolveDay parses the tz and date query params, writing the error response
// itself when either is invalid.
func (s *Server) resolveDay(w http.ResponseWriter, r *http.Request) (timeline.Day, *time.Location, bool) {
	loc := s.defaultLoc
	if tz := r.URL.Query().Get("tz"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown tz: "+tz)
			return timeline.Day{}, nil, false
		}
		loc = parsed
	}

	at := s.now()
	if date := r.URL.Query().Get("date"); date != "" {
		parsed, err := dateparse.ParseIn(date, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unparseable date: "+date)
			return timeline.Day{}, nil, false
		}
		at = parsed
	}

	return timeline.DayOf(at, loc), loc, true
}

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := s.store.CreateCategory(r.Context(), owner, req.Name, req.Color)
	if err != nil {
		slog.Error("create category failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	categories, err := s.store.ListCategories(r.Context(), owner)
	if err != nil {
		slog.Error("list categories failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}

	out := make([]timeline.Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	writeJSON(w, http.StatusOK, out)
}

func toBlockResponse(b timeline.Block) blockResponse {
	resp := blockResponse{Kind: b.Kind, Minutes: b.Minutes}
	switch b.Kind {
	case timeline.BlockGap:
		from, to := b.From, b.To
		resp.From, resp.To = &from, &to
	case timeline.BlockSegment:
		seg := b.Segment
		resp.Segment = &segmentResponse{
			ID:               seg.ID,
			OriginalID:       seg.OriginalID,
			StartAt:          seg.Span.Start,
			EndAt:            seg.Span.End,
			CrossDay:         seg.CrossDay,
			Running:          seg.Running,
			DurationMinutes:  seg.DurationMinutes,
			Lane:             seg.Lane,
			LaneCount:        seg.LaneCount,
			TopOffsetMinutes: seg.TopOffsetMinutes,
			HeightMinutes:    seg.HeightMinutes,
			CategoryID:       seg.CategoryID,
			Title:            seg.Title,
			Note:             seg.Note,
			Tags:             seg.Tags,
		}
	case timeline.BlockNow:
		at := b.At
		resp.At = &at
	}
	return resp
}
