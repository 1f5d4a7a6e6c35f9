package embedding

import (
	"context"
	"fmt"

	"github.com/fieldscope/specmatch/internal/domain"
)

// StubProvider returns pre-configured vectors by exact text, for tests that
// need controlled similarity values. Unknown texts map to ZeroVector unless
// FailUnknown is set.
type StubProvider struct {
	// Vectors maps exact input text to the vector to return. Vectors are
	// returned as configured; they are not re-normalized.
	Vectors map[string][]float32

	// Dim is the reported dimension.
	Dim int

	// Err, if set, is returned by every Encode call, or by only the
	// ErrOnCall-th call (1-based) when ErrOnCall is positive.
	Err error

	// ErrOnCall restricts Err to a single Encode invocation.
	ErrOnCall int

	// FailUnknown makes Encode fail on texts missing from Vectors.
	FailUnknown bool

	// Calls counts Encode invocations.
	Calls int
}

// Encode returns the configured vector for each text.
func (s *StubProvider) Encode(_ context.Context, texts []string) ([][]float32, error) {
	s.Calls++
	if s.Err != nil && (s.ErrOnCall == 0 || s.Calls == s.ErrOnCall) {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingProvider, s.Err)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.Vectors[text]; ok {
			out[i] = v
			continue
		}
		if s.FailUnknown {
			return nil, fmt.Errorf("%w: no stub vector for %q", domain.ErrEmbeddingProvider, text)
		}
		out[i] = make([]float32, s.Dim)
	}
	return out, nil
}

// Dimension returns the configured dimension.
func (s *StubProvider) Dimension() int {
	return s.Dim
}

// ModelID returns a fixed test identifier.
func (s *StubProvider) ModelID() string {
	return "stub/test"
}

// UnitVector builds a dim-length unit vector pointing along axis. Useful for
// constructing orthogonal or identical test embeddings.
func UnitVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis%dim] = 1
	return v
}
