package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/amberline/daybeat/internal/timeline"
)

// ListCategories returns the owner's categories keyed by id, the lookup shape
// the aggregator consumes.
func (s *Store) ListCategories(ctx context.Context, owner uuid.UUID) (map[string]timeline.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, color
		FROM categories
		WHERE owner_id = $1`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make(map[string]timeline.Category)
	for rows.Next() {
		var c timeline.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// CreateCategory inserts a category and returns it with its assigned id.
func (s *Store) CreateCategory(ctx context.Context, owner uuid.UUID, name, color string) (timeline.Category, error) {
	c := timeline.Category{ID: uuid.New().String(), Name: name, Color: color}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, owner_id, name, color)
		VALUES ($1, $2, $3, $4)`,
		c.ID, owner, c.Name, c.Color,
	)
	if err != nil {
		return timeline.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}
