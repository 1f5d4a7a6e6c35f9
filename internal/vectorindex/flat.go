// Package vectorindex provides nearest-neighbor search over embedding vectors.
package vectorindex

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Metric identifies what the index reports from Search.
type Metric string

const (
	// MetricInnerProduct means Search scores are inner products, which equal
	// cosine similarity for unit vectors. Range [-1, 1], higher is better.
	MetricInnerProduct Metric = "inner_product"

	// MetricL2 means Search scores are Euclidean distances. Lower is better.
	MetricL2 Metric = "l2"
)

// SimilarityFromDistance converts a raw score in the given metric to the
// canonical cosine similarity in [-1, 1]. This is the single conversion
// point; no caller converts scores on its own.
//
// For unit vectors, ||a-b||² = 2 - 2·(a·b), so similarity = 1 - d²/2.
func SimilarityFromDistance(metric Metric, score float64) float64 {
	switch metric {
	case MetricL2:
		return 1 - (score*score)/2
	default:
		return score
	}
}

// Hit is a single nearest-neighbor result.
type Hit struct {
	// ID is the position of the matched vector in insertion order.
	ID int

	// Score is the raw score in the index's metric.
	Score float64
}

// FlatIndex is an exact nearest-neighbor index using brute-force inner
// product over unit vectors. Exact search keeps results reproducible, and
// corpora of specification chunks are small enough that approximate
// structures buy nothing.
//
// FlatIndex is not safe for concurrent mutation; the corpus manager
// serializes writers and publishes immutable snapshots to readers.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dim int) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}
	return &FlatIndex{dim: dim}, nil
}

// Metric returns the scoring metric this index reports.
func (ix *FlatIndex) Metric() Metric {
	return MetricInnerProduct
}

// Dimension returns the vector dimension.
func (ix *FlatIndex) Dimension() int {
	return ix.dim
}

// TotalCount returns the number of indexed vectors.
func (ix *FlatIndex) TotalCount() int {
	return len(ix.vectors)
}

// Add appends vectors to the index. IDs are assigned in insertion order,
// continuing from the current count.
func (ix *FlatIndex) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), ix.dim)
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Search returns the k nearest vectors to query by inner product, best
// first. k greater than the vector count is truncated.
func (ix *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = Hit{ID: i, Score: dot(query, v)}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Clone returns a deep copy sharing no state with the receiver.
func (ix *FlatIndex) Clone() *FlatIndex {
	vectors := make([][]float32, len(ix.vectors))
	copy(vectors, ix.vectors)
	return &FlatIndex{dim: ix.dim, vectors: vectors}
}

// snapshot is the gob-encoded on-disk form of the index.
type snapshot struct {
	Dim     int
	Vectors [][]float32
}

// Persist writes the index snapshot atomically (temp file + rename).
func (ix *FlatIndex) Persist(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create index temp file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(snapshot{Dim: ix.dim, Vectors: ix.vectors}); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close index temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	return nil
}

// Load reads an index snapshot from disk.
func Load(path string) (*FlatIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	if snap.Dim <= 0 {
		return nil, fmt.Errorf("index snapshot has invalid dimension %d", snap.Dim)
	}

	return &FlatIndex{dim: snap.Dim, vectors: snap.Vectors}, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
