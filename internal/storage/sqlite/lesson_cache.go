package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mentora/internal/domain"
)

// LessonCache stores lesson responses keyed by query or sub-topic.
type LessonCache struct {
	db *DB
}

// NewLessonCache creates a new SQLite-backed lesson cache.
func NewLessonCache(db *DB) *LessonCache {
	return &LessonCache{db: db}
}

// GetLessonCache returns the cached response for key, or ErrNotFound.
func (c *LessonCache) GetLessonCache(ctx context.Context, key string) ([]byte, error) {
	var response string
	err := c.db.QueryRowContext(ctx, "SELECT response FROM lesson_cache WHERE query = ?", key).Scan(&response)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read lesson cache: %w", err)
	}
	return []byte(response), nil
}

// PutLessonCache stores a response, replacing any previous entry.
func (c *LessonCache) PutLessonCache(ctx context.Context, key string, response []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO lesson_cache (query, response, created_at) VALUES (?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET response=excluded.response, created_at=excluded.created_at`,
		key, string(response), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write lesson cache: %w", err)
	}
	return nil
}
