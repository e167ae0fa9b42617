package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// LessonCache stores lesson responses keyed by query or sub-topic.
type LessonCache struct {
	db *DB
}

// NewLessonCache creates a new PostgreSQL-backed lesson cache.
func NewLessonCache(db *DB) *LessonCache {
	return &LessonCache{db: db}
}

// GetLessonCache returns the cached response for key, or ErrNotFound.
func (c *LessonCache) GetLessonCache(ctx context.Context, key string) ([]byte, error) {
	var response []byte
	err := c.db.QueryRow(ctx, "SELECT response FROM lesson_cache WHERE query = $1", key).Scan(&response)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read lesson cache: %w", err)
	}
	return response, nil
}

// PutLessonCache stores a response, replacing any previous entry.
func (c *LessonCache) PutLessonCache(ctx context.Context, key string, response []byte) error {
	_, err := c.db.Exec(ctx, `
		INSERT INTO lesson_cache (query, response, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (query) DO UPDATE SET response = EXCLUDED.response, created_at = EXCLUDED.created_at`,
		key, response, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write lesson cache: %w", err)
	}
	return nil
}
