package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amberline/daybeat/internal/bus"
	"github.com/amberline/daybeat/internal/store"
	"github.com/amberline/daybeat/internal/timeline"
)

var testZone = time.FixedZone("UTC+8", 8*3600)

type stubStore struct {
	intervals  []timeline.RawInterval
	categories map[string]timeline.Category

	created []timeline.RawInterval
	deleted []uuid.UUID
	stopped timeline.RawInterval
	updated timeline.RawInterval
	patched store.IntervalPatch
	err     error
}

func (s *stubStore) ListIntervals(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]timeline.RawInterval, error) {
	return s.intervals, s.err
}

func (s *stubStore) CreateInterval(_ context.Context, _ uuid.UUID, r timeline.RawInterval) (timeline.RawInterval, error) {
	if s.err != nil {
		return timeline.RawInterval{}, s.err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.created = append(s.created, r)
	return r, nil
}

func (s *stubStore) UpdateInterval(_ context.Context, _ uuid.UUID, _ uuid.UUID, patch store.IntervalPatch) (timeline.RawInterval, error) {
	s.patched = patch
	return s.updated, s.err
}

func (s *stubStore) StopInterval(_ context.Context, _ uuid.UUID, _ uuid.UUID, _ time.Time) (timeline.RawInterval, error) {
	return s.stopped, s.err
}

func (s *stubStore) DeleteInterval(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubStore) ListCategories(_ context.Context, _ uuid.UUID) (map[string]timeline.Category, error) {
	return s.categories, nil
}

func (s *stubStore) CreateCategory(_ context.Context, _ uuid.UUID, name, color string) (timeline.Category, error) {
	if s.err != nil {
		return timeline.Category{}, s.err
	}
	c := timeline.Category{ID: uuid.NewString(), Name: name, Color: color}
	if s.categories == nil {
		s.categories = make(map[string]timeline.Category)
	}
	s.categories[c.ID] = c
	return c, nil
}

type stubPublisher struct {
	events []string
}

func (p *stubPublisher) Publish(subject string, _ any) error {
	p.events = append(p.events, subject)
	return nil
}

func newTestServer(st *stubStore, pub Publisher, token string) *Server {
	srv := NewServer(8650, token, st, pub, testZone)
	// Pin now to 15:00 local on 2026-03-10 so timeline tests are stable.
	srv.now = func() time.Time {
		return time.Date(2026, 3, 10, 15, 0, 0, 0, testZone)
	}
	return srv
}

func doRequest(srv *Server, method, target string, body []byte, owner string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if owner != "" {
		req.Header.Set("X-Daybeat-Owner", owner)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&stubStore{}, nil, "")

	w := doRequest(srv, "GET", "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(&stubStore{}, nil, "sekrit")
	owner := uuid.NewString()

	w := doRequest(srv, "GET", "/api/v1/timeline", nil, owner)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/timeline", nil)
	req.Header.Set("X-Daybeat-Owner", owner)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: expected 200, got %d", rec.Code)
	}
}

func TestGetTimeline(t *testing.T) {
	// One closed morning entry and a timer still running at the pinned now,
	// started the previous evening.
	st := &stubStore{
		intervals: []timeline.RawInterval{
			{
				ID:         "iv-1",
				Span:       timeline.Interval{Start: time.Date(2026, 3, 10, 9, 0, 0, 0, testZone), End: time.Date(2026, 3, 10, 10, 0, 0, 0, testZone)},
				ItemTitle:  "standup prep",
				CategoryID: "cat-work",
				Tags:       []string{"meetings"},
			},
			{
				ID:        "iv-2",
				Span:      timeline.Interval{Start: time.Date(2026, 3, 9, 22, 0, 0, 0, testZone)},
				ItemTitle: "long haul",
			},
		},
		categories: map[string]timeline.Category{
			"cat-work": {ID: "cat-work", Name: "Work", Color: "#4a90d9"},
		},
	}
	srv := newTestServer(st, nil, "")

	w := doRequest(srv, "GET", "/api/v1/timeline?date=2026-03-10", nil, uuid.NewString())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	var resp timelineResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Date != "2026-03-10" {
		t.Errorf("date = %q", resp.Date)
	}

	var segments, gaps, markers int
	for _, b := range resp.Blocks {
		switch b.Kind {
		case timeline.BlockSegment:
			segments++
			if b.Segment.OriginalID == "iv-2" {
				if !b.Segment.Running || !b.Segment.CrossDay {
					t.Errorf("iv-2 flags: running=%v cross_day=%v", b.Segment.Running, b.Segment.CrossDay)
				}
			}
		case timeline.BlockGap:
			gaps++
		case timeline.BlockNow:
			markers++
		}
	}
	if segments != 2 {
		t.Errorf("segments = %d, want 2", segments)
	}
	if gaps == 0 {
		t.Error("expected at least one gap")
	}
	if markers != 1 {
		t.Errorf("now markers = %d, want 1 (rendering the current day)", markers)
	}

	// 60 closed minutes + 15h of running timer clipped to the day.
	if want := 60 + 15*60; resp.Stats.TotalDurationMinutes != want {
		t.Errorf("total minutes = %d, want %d", resp.Stats.TotalDurationMinutes, want)
	}
	if len(resp.Stats.Categories) != 1 || resp.Stats.Categories[0].Name != "Work" {
		t.Errorf("categories = %+v", resp.Stats.Categories)
	}
}

func TestGetTimeline_BadInput(t *testing.T) {
	srv := newTestServer(&stubStore{}, nil, "")
	owner := uuid.NewString()

	if w := doRequest(srv, "GET", "/api/v1/timeline", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("missing owner: expected 400, got %d", w.Code)
	}
	if w := doRequest(srv, "GET", "/api/v1/timeline?tz=Neptune/Triton", nil, owner); w.Code != http.StatusBadRequest {
		t.Errorf("bad tz: expected 400, got %d", w.Code)
	}
	if w := doRequest(srv, "GET", "/api/v1/timeline?date=the+other+day", nil, owner); w.Code != http.StatusBadRequest {
		t.Errorf("bad date: expected 400, got %d", w.Code)
	}
}

func TestCreateInterval(t *testing.T) {
	st := &stubStore{}
	pub := &stubPublisher{}
	srv := newTestServer(st, pub, "")

	body := []byte(`{"start_at":"2026-03-10T09:00:00+08:00","end_at":"2026-03-10T10:00:00+08:00","item_title":"review","tags":["pr"]}`)
	w := doRequest(srv, "POST", "/api/v1/intervals", body, uuid.NewString())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	if len(st.created) != 1 {
		t.Fatalf("stored %d intervals", len(st.created))
	}
	if st.created[0].Span.Open() {
		t.Error("closed request stored as running")
	}
	if len(pub.events) != 1 || pub.events[0] != bus.SubjectCreated {
		t.Errorf("published events = %v", pub.events)
	}

	var resp intervalResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("response missing id")
	}
	if resp.EndAt == nil {
		t.Error("response missing end_at")
	}
}

func TestCreateInterval_Validation(t *testing.T) {
	srv := newTestServer(&stubStore{}, nil, "")
	owner := uuid.NewString()

	cases := map[string]string{
		"not json":         `{oops`,
		"missing title":    `{"start_at":"2026-03-10T09:00:00Z"}`,
		"bad start":        `{"start_at":"whenever","item_title":"x"}`,
		"end before start": `{"start_at":"2026-03-10T09:00:00Z","end_at":"2026-03-10T08:00:00Z","item_title":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(srv, "POST", "/api/v1/intervals", []byte(body), owner)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestStopInterval(t *testing.T) {
	id := uuid.New()
	st := &stubStore{stopped: timeline.RawInterval{
		ID:        id.String(),
		Span:      timeline.Interval{Start: time.Date(2026, 3, 10, 9, 0, 0, 0, testZone), End: time.Date(2026, 3, 10, 15, 0, 0, 0, testZone)},
		ItemTitle: "long haul",
	}}
	pub := &stubPublisher{}
	srv := newTestServer(st, pub, "")

	w := doRequest(srv, "POST", "/api/v1/intervals/"+id.String()+"/stop", []byte(`{}`), uuid.NewString())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if len(pub.events) != 1 || pub.events[0] != bus.SubjectUpdated {
		t.Errorf("published events = %v", pub.events)
	}
}

func TestStopInterval_NotRunning(t *testing.T) {
	st := &stubStore{err: store.ErrNotFound}
	srv := newTestServer(st, nil, "")

	w := doRequest(srv, "POST", "/api/v1/intervals/"+uuid.NewString()+"/stop", []byte(`{}`), uuid.NewString())
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestUpdateInterval_EndWithoutStart(t *testing.T) {
	srv := newTestServer(&stubStore{}, nil, "")

	body := []byte(`{"end_at":"2026-03-10T10:00:00Z"}`)
	w := doRequest(srv, "PATCH", "/api/v1/intervals/"+uuid.NewString(), body, uuid.NewString())
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdateInterval_StartWithoutEnd(t *testing.T) {
	// Omitting end_at must not silently reopen a closed interval.
	srv := newTestServer(&stubStore{}, nil, "")

	body := []byte(`{"start_at":"2026-03-10T09:00:00Z"}`)
	w := doRequest(srv, "PATCH", "/api/v1/intervals/"+uuid.NewString(), body, uuid.NewString())
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUpdateInterval_SpanPatch(t *testing.T) {
	st := &stubStore{updated: timeline.RawInterval{ID: uuid.NewString(), ItemTitle: "x"}}
	srv := newTestServer(st, nil, "")
	id := uuid.NewString()

	body := []byte(`{"start_at":"2026-03-10T09:00:00Z","end_at":"2026-03-10T10:00:00Z"}`)
	if w := doRequest(srv, "PATCH", "/api/v1/intervals/"+id, body, uuid.NewString()); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if st.patched.Span == nil || st.patched.Span.Open() {
		t.Errorf("patch span = %+v, want a closed span", st.patched.Span)
	}

	// An explicit empty end_at reopens the interval as a running timer.
	body = []byte(`{"start_at":"2026-03-10T09:00:00Z","end_at":""}`)
	if w := doRequest(srv, "PATCH", "/api/v1/intervals/"+id, body, uuid.NewString()); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if st.patched.Span == nil || !st.patched.Span.Open() {
		t.Errorf("patch span = %+v, want an open span", st.patched.Span)
	}
}

func TestDeleteInterval(t *testing.T) {
	st := &stubStore{}
	pub := &stubPublisher{}
	srv := newTestServer(st, pub, "")
	id := uuid.New()

	w := doRequest(srv, "DELETE", "/api/v1/intervals/"+id.String(), nil, uuid.NewString())
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(st.deleted) != 1 || st.deleted[0] != id {
		t.Errorf("deleted = %v", st.deleted)
	}
	if len(pub.events) != 1 || pub.events[0] != bus.SubjectDeleted {
		t.Errorf("published events = %v", pub.events)
	}

	st.err = store.ErrNotFound
	if w := doRequest(srv, "DELETE", "/api/v1/intervals/"+id.String(), nil, uuid.NewString()); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListCategories_Sorted(t *testing.T) {
	st := &stubStore{categories: map[string]timeline.Category{
		"b": {ID: "b", Name: "Writing"},
		"a": {ID: "a", Name: "Admin"},
	}}
	srv := newTestServer(st, nil, "")

	w := doRequest(srv, "GET", "/api/v1/categories", nil, uuid.NewString())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var got []timeline.Category
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Admin" || got[1].Name != "Writing" {
		t.Errorf("categories = %+v", got)
	}
}

func TestCreateCategory(t *testing.T) {
	st := &stubStore{}
	srv := newTestServer(st, nil, "")

	body := []byte(`{"name": "Deep Work", "color": "#3366ff"}`)
	w := doRequest(srv, "POST", "/api/v1/categories", body, uuid.NewString())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var got timeline.Category
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Name != "Deep Work" || got.Color != "#3366ff" || got.ID == "" {
		t.Errorf("category = %+v", got)
	}

	if w := doRequest(srv, "POST", "/api/v1/categories", []byte(`{"color": "#fff"}`), uuid.NewString()); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", w.Code)
	}
}
