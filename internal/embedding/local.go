package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultLocalDimension is the vector size for the local provider.
const DefaultLocalDimension = 256

// LocalProvider is a deterministic, offline embedder using token feature
// hashing. It needs no network or model files, which makes it suitable for
// tests and air-gapped deployments. Semantic quality is far below a real
// embedding model; texts sharing vocabulary score high, paraphrases do not.
type LocalProvider struct {
	dim int
}

// NewLocalProvider creates a local provider with the given dimension.
// Non-positive dimensions fall back to DefaultLocalDimension.
func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &LocalProvider{dim: dim}
}

// Encode embeds each text by hashing its lowercased tokens into buckets and
// L2-normalizing the result.
func (p *LocalProvider) Encode(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

func (p *LocalProvider) embed(text string) []float32 {
	v := make([]float32, p.dim)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()

		idx := int(sum % uint32(p.dim))
		// Top hash bit picks the sign so unrelated tokens tend to cancel.
		if sum&0x80000000 != 0 {
			v[idx] -= 1
		} else {
			v[idx] += 1
		}
	}

	Normalize(v)
	return v
}

// Dimension returns the embedding vector dimension.
func (p *LocalProvider) Dimension() int {
	return p.dim
}

// ModelID returns the model identifier.
func (p *LocalProvider) ModelID() string {
	return "local/feature-hash-v1"
}

// tokenize splits text into lowercased alphanumeric tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
