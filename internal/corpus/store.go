package corpus

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldscope/specmatch/internal/domain"
)

// On-disk artifact names within a corpus directory.
const (
	ChunkStoreFilename  = "chunks.json"
	VectorStoreFilename = "vectors.gob"
	IndexFilename       = "nnindex.gob"
	LexicalDirname      = "lexical.bleve"
	LockFilename        = "corpus.lock"
)

// chunkStoreFile is the JSON schema of the chunk store.
type chunkStoreFile struct {
	Version int                `json:"version"`
	Chunks  []domain.SpecChunk `json:"chunks"`
}

// vectorStoreFile is the gob schema of the vector store. Vectors[i]
// corresponds to the chunk store record at position i.
type vectorStoreFile struct {
	Dim     int
	ModelID string
	Vectors [][]float32
}

// saveChunks writes the chunk store atomically.
func saveChunks(path string, chunks []domain.SpecChunk) error {
	data, err := json.Marshal(chunkStoreFile{Version: ManifestVersion, Chunks: chunks})
	if err != nil {
		return fmt.Errorf("failed to marshal chunk store: %w", err)
	}
	return atomicWrite(path, data)
}

// loadChunks reads the chunk store. A missing file yields an empty store.
func loadChunks(path string) ([]domain.SpecChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chunk store: %w", err)
	}

	var file chunkStoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chunk store: %w", err)
	}
	return file.Chunks, nil
}

// saveVectors writes the vector store atomically.
func saveVectors(path string, dim int, modelID string, vectors [][]float32) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create vector store temp file: %w", err)
	}

	store := vectorStoreFile{Dim: dim, ModelID: modelID, Vectors: vectors}
	if err := gob.NewEncoder(f).Encode(store); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to encode vector store: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close vector store temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename vector store file: %w", err)
	}
	return nil
}

// loadVectors reads the vector store. A missing file yields an empty store.
func loadVectors(path string) (*vectorStoreFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &vectorStoreFile{}, nil
		}
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	defer func() { _ = f.Close() }()

	var store vectorStoreFile
	if err := gob.NewDecoder(f).Decode(&store); err != nil {
		return nil, fmt.Errorf("failed to decode vector store: %w", err)
	}
	return &store, nil
}

// removeIfExists deletes path, tolerating its absence.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
	}
	return nil
}

// atomicWrite writes data via a temp file and atomic rename so a crash
// mid-write cannot corrupt the destination.
func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename store file: %w", err)
	}
	return nil
}
