package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// ManifestVersion is the current schema version
	ManifestVersion = 1

	// ManifestFilename is the default manifest filename
	ManifestFilename = "manifest.json"
)

// Manifest stores the ingest state for all source documents of a corpus.
// It backs content-hash deduplication and status reporting.
type Manifest struct {
	Version    int                    `json:"version"`
	LastIngest time.Time              `json:"last_ingest"`
	Sources    map[string]SourceState `json:"sources"`
	mu         sync.RWMutex           `json:"-"`
}

// SourceState stores the ingest state for a single source document.
type SourceState struct {
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// NewManifest creates a new empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Sources: make(map[string]SourceState),
	}
}

// LoadManifest reads a manifest from disk, or creates a new one if it doesn't exist.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewManifest(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Sources == nil {
		manifest.Sources = make(map[string]SourceState)
	}

	return &manifest, nil
}

// Save writes the manifest to disk atomically.
// Uses write-to-temp + rename pattern to prevent corruption.
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

// SetSource records the ingest state for a source document.
func (m *Manifest) SetSource(name string, state SourceState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sources[name] = state
	m.LastIngest = time.Now()
}

// HasContentHash reports whether any recorded source has the given content
// hash. Used to skip re-ingesting a previously seen document.
func (m *Manifest) HasContentHash(hash string) bool {
	if hash == "" {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, state := range m.Sources {
		if state.ContentHash == hash {
			return true
		}
	}
	return false
}

// SourceNames returns all recorded source names, sorted.
func (m *Manifest) SourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.Sources))
	for name := range m.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all recorded sources.
func (m *Manifest) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sources = make(map[string]SourceState)
	m.LastIngest = time.Time{}
}
