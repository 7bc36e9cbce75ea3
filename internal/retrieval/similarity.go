// Package retrieval ranks stored chunks against a query embedding with an
// exact linear cosine-similarity scan.
package retrieval

import (
	"math"
	"sort"

	"docinsight/internal/model"
)

// DefaultTopK is the number of chunks the responder feeds into a prompt.
const DefaultTopK = 5

// Match is a chunk with its similarity to the query.
type Match struct {
	Chunk model.Chunk
	Score float64
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Empty, mismatched or zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

// Search scores every chunk that carries an embedding and returns the k best,
// highest first. Ties keep their input order.
func Search(chunks []model.Chunk, query []float32, k int) []Match {
	if k <= 0 || len(query) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(chunks))
	for _, c := range chunks {
		vec := c.EmbeddingVector()
		if len(vec) == 0 {
			continue
		}
		matches = append(matches, Match{Chunk: c, Score: CosineSimilarity(query, vec)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
