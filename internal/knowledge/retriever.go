package knowledge

import (
	"context"
	"sort"
	"strings"
)

// DefaultTopK matches the number of passages placed into a prompt.
const DefaultTopK = 5

// Result is one scored section.
type Result struct {
	Source  string  `json:"source"`
	Heading string  `json:"heading"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// Retriever runs topic-filtered similarity search over the index.
type Retriever struct {
	index    *Index
	embedder Embedder
	maxChars int
}

// NewRetriever creates a retriever.
func NewRetriever(index *Index, embedder Embedder) *Retriever {
	return &Retriever{index: index, embedder: embedder, maxChars: 8000}
}

// Search returns the topK sections of topic most similar to query.
func (r *Retriever) Search(ctx context.Context, topic, query string, topK int) ([]Result, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	sections, err := r.index.ListSections(ctx, NormalizeTopic(topic))
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, sec := range sections {
		vec := DecodeEmbedding(sec.Embedding)
		if vec == nil {
			continue
		}
		score := CosineSimilarity(queryVec, vec)
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			Source:  sec.Source,
			Heading: sec.Heading,
			Content: sec.Content,
			Score:   score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Retrieve returns the best passages for query joined into one context
// block. An empty string means nothing relevant was indexed.
func (r *Retriever) Retrieve(ctx context.Context, topic, query string) (string, error) {
	results, err := r.Search(ctx, topic, query, DefaultTopK)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Content)
	}
	return Truncate(strings.Join(parts, "\n\n"), r.maxChars), nil
}
