package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"docrag/internal/adapter/analyzer"
)

// HashEmbedder is a local embedder based on signed feature hashing of terms.
// Texts sharing vocabulary land close together; no model or network is needed.
type HashEmbedder struct {
	dimension int
	model     string
	terms     *analyzer.TermTokenizer
}

func NewHashEmbedder(dimension int, model string) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	if model == "" {
		model = "hash"
	}
	return &HashEmbedder{
		dimension: dimension,
		model:     model,
		terms:     analyzer.NewTermTokenizer(),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, term := range e.terms.Tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(term))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return e.model
}
