package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amberline/daybeat/internal/bus"
	"github.com/amberline/daybeat/internal/store"
	"github.com/amberline/daybeat/internal/timeline"
)

type intervalResponse struct {
	ID         string     `json:"id"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      *time.Time `json:"end_at"`
	ItemID     string     `json:"item_id"`
	ItemTitle  string     `json:"item_title"`
	CategoryID string     `json:"category_id,omitempty"`
	Note       string     `json:"note,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// createIntervalRequest creates a closed entry or, with end_at omitted, a
// running timer.
type createIntervalRequest struct {
	StartAt    string   `json:"start_at"`
	EndAt      *string  `json:"end_at"`
	ItemID     string   `json:"item_id"`
	ItemTitle  string   `json:"item_title"`
	CategoryID string   `json:"category_id"`
	Note       string   `json:"note"`
	Tags       []string `json:"tags"`
}

type updateIntervalRequest struct {
	StartAt    *string   `json:"start_at"`
	EndAt      *string   `json:"end_at"`
	ItemID     *string   `json:"item_id"`
	ItemTitle  *string   `json:"item_title"`
	CategoryID *string   `json:"category_id"`
	Note       *string   `json:"note"`
	Tags       *[]string `json:"tags"`
}

type stopIntervalRequest struct {
	At *string `json:"at"`
}

func (s *Server) listIntervals(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	day, _, ok := s.resolveDay(w, r)
	if !ok {
		return
	}

	raw, err := s.store.ListIntervals(r.Context(), owner, day.Start(), day.End())
	if err != nil {
		slog.Error("list intervals failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load intervals")
		return
	}

	out := make([]intervalResponse, 0, len(raw))
	for _, iv := range raw {
		out = append(out, toIntervalResponse(iv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createInterval(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.ItemTitle == "" {
		writeError(w, http.StatusBadRequest, "item_title is required")
		return
	}

	span, err := parseSpan(req.StartAt, req.EndAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateInterval(r.Context(), owner, timeline.RawInterval{
		Span:       span,
		ItemID:     req.ItemID,
		ItemTitle:  req.ItemTitle,
		CategoryID: req.CategoryID,
		Note:       req.Note,
		Tags:       req.Tags,
	})
	if err != nil {
		slog.Error("create interval failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create interval")
		return
	}

	s.notify(bus.SubjectCreated, owner, created.ID)
	writeJSON(w, http.StatusCreated, toIntervalResponse(created))
}

func (s *Server) updateInterval(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}

	var req updateIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	patch := store.IntervalPatch{
		ItemID:     req.ItemID,
		ItemTitle:  req.ItemTitle,
		CategoryID: req.CategoryID,
		Note:       req.Note,
		Tags:       req.Tags,
	}
	// The span is patched as a whole: both bounds or neither. An explicit
	// empty end_at reopens the interval as a running timer; an absent one
	// must not silently discard the recorded end.
	if req.StartAt != nil {
		if req.EndAt == nil {
			writeError(w, http.StatusBadRequest, "end_at is required when changing start_at (send \"\" to reopen as a running timer)")
			return
		}
		span, err := parseSpan(*req.StartAt, req.EndAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Span = &span
	} else if req.EndAt != nil {
		writeError(w, http.StatusBadRequest, "start_at is required when changing the span")
		return
	}

	updated, err := s.store.UpdateInterval(r.Context(), owner, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "interval not found")
		return
	}
	if err != nil {
		slog.Error("update interval failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update interval")
		return
	}

	s.notify(bus.SubjectUpdated, owner, updated.ID)
	writeJSON(w, http.StatusOK, toIntervalResponse(updated))
}

func (s *Server) stopInterval(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}

	at := s.now()
	var req stopIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.At != nil {
		parsed, err := time.Parse(time.RFC3339, *req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unparseable at timestamp")
			return
		}
		at = parsed
	}

	stopped, err := s.store.StopInterval(r.Context(), owner, id, at)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no running interval with that id")
		return
	}
	if err != nil {
		slog.Error("stop interval failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stop interval")
		return
	}

	s.notify(bus.SubjectUpdated, owner, stopped.ID)
	writeJSON(w, http.StatusOK, toIntervalResponse(stopped))
}

func (s *Server) deleteInterval(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := s.ownerAndID(w, r)
	if !ok {
		return
	}

	err := s.store.DeleteInterval(r.Context(), owner, id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "interval not found")
		return
	}
	if err != nil {
		slog.Error("delete interval failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete interval")
		return
	}

	s.notify(bus.SubjectDeleted, owner, id.String())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ownerAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid interval id")
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}

// notify publishes a change event when the bus is configured. Failures are
// logged, not surfaced: the write already succeeded.
func (s *Server) notify(subject string, owner uuid.UUID, intervalID string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(subject, bus.IntervalEvent{
		OwnerID:    owner.String(),
		IntervalID: intervalID,
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Warn("publish change event failed", "subject", subject, "error", err)
	}
}

func parseSpan(startAt string, endAt *string) (timeline.Interval, error) {
	var span timeline.Interval

	start, err := time.Parse(time.RFC3339, startAt)
	if err != nil {
		return timeline.Interval{}, errors.New("start_at must be an RFC 3339 timestamp")
	}
	span.Start = start

	if endAt != nil && *endAt != "" {
		end, err := time.Parse(time.RFC3339, *endAt)
		if err != nil {
			return timeline.Interval{}, errors.New("end_at must be an RFC 3339 timestamp")
		}
		if end.Before(start) {
			return timeline.Interval{}, errors.New("end_at is before start_at")
		}
		span.End = end
	}
	return span, nil
}

func toIntervalResponse(r timeline.RawInterval) intervalResponse {
	resp := intervalResponse{
		ID:         r.ID,
		StartAt:    r.Span.Start,
		ItemID:     r.ItemID,
		ItemTitle:  r.ItemTitle,
		CategoryID: r.CategoryID,
		Note:       r.Note,
		Tags:       r.Tags,
	}
	if !r.Span.Open() {
		end := r.Span.End
		resp.EndAt = &end
	}
	return resp
}
