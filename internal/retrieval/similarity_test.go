package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docinsight/internal/model"
)

func chunkWith(id uint, vec []float32) model.Chunk {
	c := model.Chunk{ID: id, ChunkIndex: int(id)}
	c.SetEmbedding(vec)
	return c
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"diagonal", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
		{"empty", nil, nil, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	b := []float32{2.2, 0.7, -0.4, 3.3}
	assert.Equal(t, CosineSimilarity(a, b), CosineSimilarity(b, a))

	s := CosineSimilarity(a, b)
	assert.GreaterOrEqual(t, s, -1.0)
	assert.LessOrEqual(t, s, 1.0)
}

func TestSearchRanksAndTruncates(t *testing.T) {
	chunks := []model.Chunk{
		chunkWith(1, []float32{1, 0}),
		chunkWith(2, []float32{0, 1}),
		chunkWith(3, []float32{1, 1}),
	}

	matches := Search(chunks, []float32{1, 0}, 2)
	require.Len(t, matches, 2)
	assert.Equal(t, uint(1), matches[0].Chunk.ID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, uint(3), matches[1].Chunk.ID)
	assert.InDelta(t, 0.7071, matches[1].Score, 1e-4)
}

func TestSearchSkipsChunksWithoutEmbedding(t *testing.T) {
	chunks := []model.Chunk{
		{ID: 1},
		chunkWith(2, []float32{0.5, 0.5}),
	}

	matches := Search(chunks, []float32{1, 1}, DefaultTopK)
	require.Len(t, matches, 1)
	assert.Equal(t, uint(2), matches[0].Chunk.ID)
}

func TestSearchStableOnTies(t *testing.T) {
	chunks := []model.Chunk{
		chunkWith(1, []float32{2, 0}),
		chunkWith(2, []float32{1, 0}),
		chunkWith(3, []float32{3, 0}),
	}

	matches := Search(chunks, []float32{1, 0}, 3)
	require.Len(t, matches, 3)
	assert.Equal(t, []uint{1, 2, 3}, []uint{matches[0].Chunk.ID, matches[1].Chunk.ID, matches[2].Chunk.ID})
}

func TestSearchEdgeCases(t *testing.T) {
	chunks := []model.Chunk{chunkWith(1, []float32{1, 0})}
	assert.Empty(t, Search(chunks, []float32{1, 0}, 0))
	assert.Empty(t, Search(chunks, nil, 5))
	assert.Empty(t, Search(nil, []float32{1, 0}, 5))
}
