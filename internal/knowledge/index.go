package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Index stores embedded sections in the knowledge_sections table.
type Index struct {
	db *sql.DB
}

// NewIndex creates an index over a migrated SQLite database.
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// SectionRow is a stored section with its embedding.
type SectionRow struct {
	ID        int64
	Topic     string
	Source    string
	Heading   string
	Content   string
	Embedding []byte
}

// SourceHash returns the content hash indexed for source, or "" if the
// source is unknown.
func (idx *Index) SourceHash(ctx context.Context, source string) (string, error) {
	var hash string
	err := idx.db.QueryRowContext(ctx, "SELECT hash FROM knowledge_sections WHERE source = ? LIMIT 1", source).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read source hash: %w", err)
	}
	return hash, nil
}

// ReplaceSource swaps every section of a source in one transaction.
func (idx *Index) ReplaceSource(ctx context.Context, doc Document, sections []Section, embeddings [][]float32) error {
	if len(sections) != len(embeddings) {
		return fmt.Errorf("%d sections with %d embeddings", len(sections), len(embeddings))
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM knowledge_sections WHERE source = ?", doc.Source); err != nil {
		return fmt.Errorf("delete sections: %w", err)
	}

	now := time.Now().UTC()
	for i, sec := range sections {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO knowledge_sections (topic, source, hash, heading, content, embedding, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			doc.Topic, doc.Source, doc.Hash, sec.Heading, sec.Content, EncodeEmbedding(embeddings[i]), now)
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
	}

	return tx.Commit()
}

// ListSections returns every section of a topic.
func (idx *Index) ListSections(ctx context.Context, topic string) ([]SectionRow, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT id, topic, source, heading, content, embedding
		FROM knowledge_sections WHERE topic = ? ORDER BY id`, topic)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var out []SectionRow
	for rows.Next() {
		var s SectionRow
		if err := rows.Scan(&s.ID, &s.Topic, &s.Source, &s.Heading, &s.Content, &s.Embedding); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats summarizes the index.
type Stats struct {
	Topics   int `json:"topics"`
	Sources  int `json:"sources"`
	Sections int `json:"sections"`
}

// Stats returns index statistics.
func (idx *Index) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := idx.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT topic), COUNT(DISTINCT source), COUNT(*) FROM knowledge_sections`).
		Scan(&s.Topics, &s.Sources, &s.Sections)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	return &s, nil
}
