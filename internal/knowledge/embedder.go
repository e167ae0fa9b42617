package knowledge

import (
	"context"
	"encoding/binary"
	"math"
)

// Embedder produces vector embeddings from text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// KeywordEmbedder hashes term frequencies into a fixed number of buckets.
// It needs no external API and is the default when no embedding model is
// configured.
type KeywordEmbedder struct {
	dimension int
}

// NewKeywordEmbedder creates a keyword embedder with the given dimension.
func NewKeywordEmbedder(dimension int) *KeywordEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &KeywordEmbedder{dimension: dimension}
}

// Embed returns the normalized term-frequency vector of text.
func (e *KeywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.embedText(text), nil
}

// EmbedBatch embeds multiple texts.
func (e *KeywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedText(text)
	}
	return out, nil
}

func (e *KeywordEmbedder) embedText(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, word := range tokenize(text) {
		vec[hashString(word)%uint32(e.dimension)] += 1.0
	}
	normalize(vec)
	return vec
}

// CosineSimilarity of two equal-length vectors; 0 when either is empty.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := float32(math.Sqrt(float64(normA)) * math.Sqrt(float64(normB)))
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// EncodeEmbedding serializes a vector for BLOB storage.
func EncodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding. It returns nil for a
// buffer of the wrong length.
func DecodeEmbedding(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}

func normalize(vec []float32) {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] /= norm
	}
}

// tokenize splits text into lowercase ASCII word tokens.
func tokenize(text string) []string {
	var words []string
	word := make([]byte, 0, 32)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'A' && c <= 'Z':
			word = append(word, c+32)
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			word = append(word, c)
		case len(word) > 0:
			words = append(words, string(word))
			word = word[:0]
		}
	}
	if len(word) > 0 {
		words = append(words, string(word))
	}
	return words
}

// hashString is 32-bit FNV-1a.
func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
