// Package embedding turns text into fixed-dimension unit vectors.
package embedding

import (
	"context"
	"math"
)

// Provider generates embeddings for text. Implementations must be
// deterministic for a given model version and must return unit-length
// vectors so that inner product equals cosine similarity downstream.
type Provider interface {
	// Encode embeds a batch of texts. The result is parallel to texts.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelID identifies the model and version producing the vectors.
	ModelID() string
}

// Normalize scales v to unit length in place. Zero vectors are left as-is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
