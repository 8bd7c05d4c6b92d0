// Package ingest accepts interval records published on the bus by external
// capture agents (imports, automation hooks) and writes them through the
// store, so they show up on the timeline like any hand-entered record.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amberline/daybeat/internal/bus"
	"github.com/amberline/daybeat/internal/timeline"
)

// IntervalWriter is the slice of the store the processor needs.
type IntervalWriter interface {
	CreateInterval(ctx context.Context, owner uuid.UUID, r timeline.RawInterval) (timeline.RawInterval, error)
}

// Publisher posts change notifications back onto the bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Subscriber registers handlers for bus subjects.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// IngestEvent is the wire payload capture agents publish on
// bus.SubjectIngest. EndAt is omitted for a still-running timer.
type IngestEvent struct {
	OwnerID    string   `json:"owner_id"`
	StartAt    string   `json:"start_at"`
	EndAt      string   `json:"end_at,omitempty"`
	ItemID     string   `json:"item_id"`
	ItemTitle  string   `json:"item_title"`
	CategoryID string   `json:"category_id,omitempty"`
	Note       string   `json:"note,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

type Processor struct {
	store     IntervalWriter
	publisher Publisher
	logger    *slog.Logger
}

func New(store IntervalWriter, publisher Publisher, logger *slog.Logger) *Processor {
	return &Processor{store: store, publisher: publisher, logger: logger}
}

// Register subscribes the processor to the ingest subject.
func (p *Processor) Register(sub Subscriber) error {
	return sub.Subscribe(bus.SubjectIngest, p.HandleIngest)
}

// HandleIngest validates and stores one published interval. A malformed event
// is logged and dropped — one bad record from a capture agent must never take
// the subscriber down.
func (p *Processor) HandleIngest(subject string, data []byte) {
	var ev IngestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		p.logger.Warn("ingest: malformed event", "subject", subject, "error", err)
		return
	}

	owner, err := uuid.Parse(ev.OwnerID)
	if err != nil {
		p.logger.Warn("ingest: bad owner id", "owner_id", ev.OwnerID, "error", err)
		return
	}
	if ev.ItemTitle == "" {
		p.logger.Warn("ingest: missing item title", "owner_id", ev.OwnerID)
		return
	}

	span, err := parseSpan(ev.StartAt, ev.EndAt)
	if err != nil {
		p.logger.Warn("ingest: bad span", "owner_id", ev.OwnerID, "error", err)
		return
	}

	created, err := p.store.CreateInterval(context.Background(), owner, timeline.RawInterval{
		Span:       span,
		ItemID:     ev.ItemID,
		ItemTitle:  ev.ItemTitle,
		CategoryID: ev.CategoryID,
		Note:       ev.Note,
		Tags:       ev.Tags,
	})
	if err != nil {
		p.logger.Error("ingest: store write failed", "owner_id", ev.OwnerID, "error", err)
		return
	}

	p.logger.Info("ingest: interval stored", "interval_id", created.ID, "owner_id", ev.OwnerID)

	if err := p.publisher.Publish(bus.SubjectCreated, bus.IntervalEvent{
		OwnerID:    ev.OwnerID,
		IntervalID: created.ID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		p.logger.Warn("ingest: publish created failed", "error", err)
	}
}

func parseSpan(startAt, endAt string) (timeline.Interval, error) {
	var span timeline.Interval

	start, err := time.Parse(time.RFC3339, startAt)
	if err != nil {
		return timeline.Interval{}, err
	}
	span.Start = start

	if endAt != "" {
		end, err := time.Parse(time.RFC3339, endAt)
		if err != nil {
			return timeline.Interval{}, err
		}
		if end.Before(start) {
			return timeline.Interval{}, errors.New("end_at before start_at")
		}
		span.End = end
	}
	return span, nil
}
