// Package knowledge indexes topic-scoped reference notes and retrieves the
// passages most similar to a query. It provides the context for lessons and
// the expert answer for advice replies.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
)

// Service runs the indexing pipeline: discover, parse, embed, store.
type Service struct {
	index     *Index
	embedder  Embedder
	retriever *Retriever
	logger    *slog.Logger
}

// NewService creates a knowledge service. A nil embedder selects the
// keyword embedder.
func NewService(index *Index, embedder Embedder, logger *slog.Logger) *Service {
	if embedder == nil {
		embedder = NewKeywordEmbedder(256)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		index:     index,
		embedder:  embedder,
		retriever: NewRetriever(index, embedder),
		logger:    logger,
	}
}

// Retriever returns the retriever backed by this service's index.
func (s *Service) Retriever() *Retriever {
	return s.retriever
}

// IndexResult reports the outcome of IndexDirectory.
type IndexResult struct {
	Found    int `json:"found"`
	Indexed  int `json:"indexed"`
	Skipped  int `json:"skipped"`
	Sections int `json:"sections"`
	Errors   int `json:"errors"`
}

// IndexDirectory indexes every document under dir. Unchanged sources are
// skipped.
func (s *Service) IndexDirectory(ctx context.Context, dir string) (*IndexResult, error) {
	docs, err := Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	result := &IndexResult{Found: len(docs)}
	for _, doc := range docs {
		hash, err := s.index.SourceHash(ctx, doc.Source)
		if err != nil {
			return nil, err
		}
		if hash == doc.Hash {
			result.Skipped++
			continue
		}

		n, err := s.indexDocument(ctx, doc)
		if err != nil {
			s.logger.Error("failed to index document", "source", doc.Source, "error", err)
			result.Errors++
			continue
		}
		result.Indexed++
		result.Sections += n
	}

	s.logger.Info("knowledge indexed",
		"found", result.Found,
		"indexed", result.Indexed,
		"skipped", result.Skipped,
		"errors", result.Errors)
	return result, nil
}

func (s *Service) indexDocument(ctx context.Context, doc Document) (int, error) {
	sections := ParseSections(doc.Content)
	if len(sections) == 0 {
		return 0, nil
	}

	texts := make([]string, len(sections))
	for i, sec := range sections {
		texts[i] = sec.Heading + "\n" + sec.Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}

	if err := s.index.ReplaceSource(ctx, doc, sections, embeddings); err != nil {
		return 0, err
	}
	return len(sections), nil
}

// Stats returns index statistics.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.index.Stats(ctx)
}
