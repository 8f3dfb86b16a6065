package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqDist(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return sum
}

func TestHashEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64, "")
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"quarterly revenue grew"})
	require.NoError(t, err)
	second, err := e.Embed(ctx, []string{"quarterly revenue grew"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first[0], 64)

	var norm float64
	for _, v := range first[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	assert.Equal(t, 64, e.Dimension())
	assert.Equal(t, "hash", e.ModelName())
}

func TestHashEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewHashEmbedder(256, "")

	vecs, err := e.Embed(context.Background(), []string{
		"solar panel installation costs",
		"installation costs of solar panel arrays",
		"medieval poetry and courtly love",
	})
	require.NoError(t, err)

	assert.Less(t, sqDist(vecs[0], vecs[1]), sqDist(vecs[0], vecs[2]))
}

func TestHashEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewHashEmbedder(8, "")

	vecs, err := e.Embed(context.Background(), []string{"   "})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vecs[0])
}

func TestHashEmbedder_HonoursCancellation(t *testing.T) {
	e := NewHashEmbedder(8, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, []string{"text"})
	assert.ErrorIs(t, err, context.Canceled)
}
