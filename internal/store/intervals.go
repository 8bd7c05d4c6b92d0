package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/amberline/daybeat/internal/timeline"
)

// IntervalPatch carries the fields an update may change. Nil fields are left
// untouched; a non-nil empty CategoryID clears the category.
type IntervalPatch struct {
	Span       *timeline.Interval
	ItemID     *string
	ItemTitle  *string
	CategoryID *string
	Note       *string
	Tags       *[]string
}

const intervalColumns = `id::text, span::text, item_id, item_title, category_id::text, note, tags`

// ListIntervals returns the owner's intervals whose span overlaps [from, to).
// Open intervals (running timers) overlap everything after their start, so a
// single-day window also catches a timer started on an earlier day.
func (s *Store) ListIntervals(ctx context.Context, owner uuid.UUID, from, to time.Time) ([]timeline.RawInterval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+intervalColumns+`
		FROM intervals
		WHERE owner_id = $1 AND span && tstzrange($2, $3)
		ORDER BY lower(span), id`,
		owner, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}
	defer rows.Close()

	var out []timeline.RawInterval
	for rows.Next() {
		iv, err := scanInterval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// CreateInterval inserts a new interval record. A zero ID is assigned one.
func (s *Store) CreateInterval(ctx context.Context, owner uuid.UUID, r timeline.RawInterval) (timeline.RawInterval, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO intervals (id, owner_id, span, item_id, item_title, category_id, note, tags, created_at)
		VALUES ($1, $2, $3::tstzrange, $4, $5, $6, $7, $8, now())
		RETURNING `+intervalColumns,
		r.ID, owner, r.Span.String(), r.ItemID, r.ItemTitle, nullIfEmpty(r.CategoryID), r.Note, r.Tags,
	)
	return scanInterval(row)
}

// UpdateInterval applies a patch inside a transaction: the current row is
// locked, the patch applied in memory, and the full row written back.
func (s *Store) UpdateInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID, patch IntervalPatch) (timeline.RawInterval, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return timeline.RawInterval{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+intervalColumns+`
		FROM intervals
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE`,
		id, owner,
	)
	current, err := scanInterval(row)
	if err != nil {
		return timeline.RawInterval{}, err
	}

	if patch.Span != nil {
		current.Span = *patch.Span
	}
	if patch.ItemID != nil {
		current.ItemID = *patch.ItemID
	}
	if patch.ItemTitle != nil {
		current.ItemTitle = *patch.ItemTitle
	}
	if patch.CategoryID != nil {
		current.CategoryID = *patch.CategoryID
	}
	if patch.Note != nil {
		current.Note = *patch.Note
	}
	if patch.Tags != nil {
		current.Tags = *patch.Tags
	}
	if current.Tags == nil {
		current.Tags = []string{}
	}

	_, err = tx.Exec(ctx, `
		UPDATE intervals
		SET span = $3::tstzrange, item_id = $4, item_title = $5, category_id = $6, note = $7, tags = $8, updated_at = now()
		WHERE id = $1 AND owner_id = $2`,
		id, owner, current.Span.String(), current.ItemID, current.ItemTitle,
		nullIfEmpty(current.CategoryID), current.Note, current.Tags,
	)
	if err != nil {
		return timeline.RawInterval{}, fmt.Errorf("update interval: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return timeline.RawInterval{}, fmt.Errorf("commit: %w", err)
	}
	return current, nil
}

// StopInterval closes a running timer at the given instant. It fails with
// ErrNotFound when the interval does not exist, is not the owner's, or is
// already closed.
func (s *Store) StopInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID, at time.Time) (timeline.RawInterval, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE intervals
		SET span = tstzrange(lower(span), $3), updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND upper_inf(span)
		RETURNING `+intervalColumns,
		id, owner, at,
	)
	return scanInterval(row)
}

// DeleteInterval removes an interval record.
func (s *Store) DeleteInterval(ctx context.Context, owner uuid.UUID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM intervals WHERE id = $1 AND owner_id = $2`,
		id, owner,
	)
	if err != nil {
		return fmt.Errorf("delete interval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInterval(row pgx.Row) (timeline.RawInterval, error) {
	var (
		r        timeline.RawInterval
		span     string
		category *string
	)
	err := row.Scan(&r.ID, &span, &r.ItemID, &r.ItemTitle, &category, &r.Note, &r.Tags)
	if errors.Is(err, pgx.ErrNoRows) {
		return timeline.RawInterval{}, ErrNotFound
	}
	if err != nil {
		return timeline.RawInterval{}, fmt.Errorf("scan interval: %w", err)
	}

	r.Span, err = timeline.ParseInterval(span)
	if err != nil {
		return timeline.RawInterval{}, fmt.Errorf("interval %s: %w", r.ID, err)
	}
	if category != nil {
		r.CategoryID = *category
	}
	return r, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
