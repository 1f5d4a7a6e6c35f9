// Package corpus owns the persisted chunk store, vector store and NN index
// of a specification corpus, with atomicity and integrity guarantees.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldscope/specmatch/internal/domain"
	"github.com/fieldscope/specmatch/internal/embedding"
	"github.com/fieldscope/specmatch/internal/vectorindex"
)

// Options controls corpus manager behavior.
type Options struct {
	// EmbeddingBatchSize bounds how many chunks are embedded per provider
	// call. Cancellation takes effect between batches; nothing is committed
	// until every batch has embedded.
	EmbeddingBatchSize int

	// DedupEnabled skips re-ingesting a source whose content hash was seen
	// before.
	DedupEnabled bool
}

// DefaultOptions returns the corpus manager defaults.
func DefaultOptions() Options {
	return Options{
		EmbeddingBatchSize: 32,
		DedupEnabled:       true,
	}
}

// Lexicon receives chunk text for full-text search, maintained beside the
// vector artifacts. Lexicon failures degrade text search only; they never
// fail an ingest.
type Lexicon interface {
	// IndexChunks indexes chunks whose corpus positions start at baseID.
	IndexChunks(baseID int, chunks []domain.SpecChunk) error

	// Rebuild replaces the lexicon content with the given chunks.
	Rebuild(chunks []domain.SpecChunk) error
}

// IngestRequest describes one source document's chunks to ingest.
type IngestRequest struct {
	SourceName  string
	ContentHash string
	Chunks      []domain.SpecChunk
}

// IngestResult reports the outcome of an ingest call.
type IngestResult struct {
	ChunksAdded  int
	TotalChunks  int
	Deduplicated bool
}

// SearchHit is one nearest-neighbor result with its chunk and canonical
// cosine similarity in [-1, 1].
type SearchHit struct {
	ChunkIndex int
	Chunk      domain.SpecChunk
	Score      float64
}

// state is an immutable snapshot of the corpus triple. Readers always
// observe a fully consistent snapshot; writers build a new one and swap the
// pointer.
type state struct {
	chunks  []domain.SpecChunk
	vectors [][]float32
	index   *vectorindex.FlatIndex
}

// check verifies the chunk store, vector store and index agree on counts.
func (s *state) check() error {
	if len(s.chunks) != len(s.vectors) || len(s.chunks) != s.index.TotalCount() {
		return fmt.Errorf("%w: chunks=%d vectors=%d index=%d",
			domain.ErrIntegrity, len(s.chunks), len(s.vectors), s.index.TotalCount())
	}
	return nil
}

// Manager is the corpus index manager. One Manager owns one corpus
// directory; multiple managers give a process multiple independent corpora.
//
// Ingest and RebuildFromChunks are single-writer: a second concurrent writer
// gets domain.ErrIngestionBusy. Search runs lock-free on the published
// snapshot and may execute concurrently with a writer.
type Manager struct {
	dir      string
	provider embedding.Provider
	opts     Options
	lexicon  Lexicon

	writeMu  sync.Mutex
	lock     *FileLock
	manifest *Manifest

	state atomic.Pointer[state]
}

// Open creates or loads the corpus at dir. An on-disk index snapshot that
// disagrees with the vector store is rebuilt from the stores; a chunk/vector
// count disagreement is an integrity violation and triggers a full
// re-embedding rebuild. A differing embedding model also triggers a rebuild,
// since stored vectors from another model are not comparable.
func Open(ctx context.Context, dir string, provider embedding.Provider, opts Options, lexicon Lexicon) (*Manager, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider cannot be nil")
	}
	if opts.EmbeddingBatchSize <= 0 {
		opts.EmbeddingBatchSize = DefaultOptions().EmbeddingBatchSize
	}

	manifest, err := LoadManifest(filepath.Join(dir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	m := &Manager{
		dir:      dir,
		provider: provider,
		opts:     opts,
		lexicon:  lexicon,
		lock:     NewFileLock(filepath.Join(dir, LockFilename)),
		manifest: manifest,
	}

	if err := m.load(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// load reads the three stores as a unit and publishes the initial snapshot.
func (m *Manager) load(ctx context.Context) error {
	chunks, err := loadChunks(filepath.Join(m.dir, ChunkStoreFilename))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIntegrity, err)
	}

	vstore, err := loadVectors(filepath.Join(m.dir, VectorStoreFilename))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIntegrity, err)
	}

	if len(chunks) == 0 {
		index, err := vectorindex.NewFlatIndex(m.provider.Dimension())
		if err != nil {
			return err
		}
		m.state.Store(&state{index: index})
		return nil
	}

	needsRebuild := len(vstore.Vectors) != len(chunks) ||
		vstore.ModelID != m.provider.ModelID() ||
		vstore.Dim != m.provider.Dimension()
	if needsRebuild {
		slog.Warn("Corpus vector store unusable, rebuilding from chunk store",
			"chunks", len(chunks), "vectors", len(vstore.Vectors),
			"stored_model", vstore.ModelID, "model", m.provider.ModelID())
		// Publish an empty snapshot so rebuild starts from clean state.
		index, err := vectorindex.NewFlatIndex(m.provider.Dimension())
		if err != nil {
			return err
		}
		m.state.Store(&state{index: index})
		if err := m.rebuild(ctx, chunks); err != nil {
			return fmt.Errorf("rebuild from chunk store: %w", err)
		}
		return nil
	}

	index, err := vectorindex.Load(filepath.Join(m.dir, IndexFilename))
	if err != nil || index.TotalCount() != len(vstore.Vectors) {
		// Stale or missing index snapshot: rebuild from the vector store
		// instead of trusting it. No re-embedding needed.
		if err != nil {
			slog.Warn("Corpus index snapshot unreadable, rebuilding from vector store", "error", err)
		} else {
			slog.Warn("Corpus index snapshot stale, rebuilding from vector store",
				"index", index.TotalCount(), "vectors", len(vstore.Vectors))
		}
		index, err = vectorindex.NewFlatIndex(vstore.Dim)
		if err != nil {
			return err
		}
		if err := index.Add(vstore.Vectors); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIntegrity, err)
		}
		if err := index.Persist(filepath.Join(m.dir, IndexFilename)); err != nil {
			return err
		}
	}

	st := &state{chunks: chunks, vectors: vstore.Vectors, index: index}
	if err := st.check(); err != nil {
		return err
	}
	m.state.Store(st)
	return nil
}

// lockCorpus takes the in-process write mutex and the cross-process file
// lock. The returned release undoes both.
func (m *Manager) lockCorpus() (func(), error) {
	if !m.writeMu.TryLock() {
		return nil, domain.ErrIngestionBusy
	}

	acquired, err := m.lock.TryLock()
	if err != nil {
		m.writeMu.Unlock()
		return nil, fmt.Errorf("failed to acquire corpus lock: %w", err)
	}
	if !acquired {
		m.writeMu.Unlock()
		return nil, fmt.Errorf("corpus lock held by another process: %w", domain.ErrIngestionBusy)
	}

	return func() {
		_ = m.lock.Unlock()
		m.writeMu.Unlock()
	}, nil
}

// Ingest embeds and appends chunks, persisting the stores atomically.
// Embedding runs in batches so cancellation takes effect between provider
// calls, but nothing is committed until every batch has embedded: a
// provider failure or cancellation partway leaves the corpus untouched, so
// a retry of the same request cannot duplicate chunks.
func (m *Manager) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if len(req.Chunks) == 0 {
		return IngestResult{}, fmt.Errorf("source %q: %w", req.SourceName, domain.ErrEmptyDocument)
	}

	release, err := m.lockCorpus()
	if err != nil {
		return IngestResult{}, err
	}
	defer release()

	if m.opts.DedupEnabled && m.manifest.HasContentHash(req.ContentHash) {
		slog.Info("Skipping previously ingested source", "source", req.SourceName)
		return IngestResult{TotalChunks: m.TotalChunks(), Deduplicated: true}, nil
	}

	vectors := make([][]float32, 0, len(req.Chunks))
	for start := 0; start < len(req.Chunks); start += m.opts.EmbeddingBatchSize {
		if err := ctx.Err(); err != nil {
			return IngestResult{TotalChunks: m.TotalChunks()}, err
		}

		end := min(start+m.opts.EmbeddingBatchSize, len(req.Chunks))
		texts := make([]string, end-start)
		for i, chunk := range req.Chunks[start:end] {
			texts[i] = chunk.Text
		}

		batch, err := m.provider.Encode(ctx, texts)
		if err != nil {
			return IngestResult{TotalChunks: m.TotalChunks()}, err
		}
		if len(batch) != len(texts) {
			return IngestResult{TotalChunks: m.TotalChunks()},
				fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbeddingProvider, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}

	cur := m.state.Load()
	baseID := len(cur.chunks)

	next := &state{
		chunks:  append(append([]domain.SpecChunk{}, cur.chunks...), req.Chunks...),
		vectors: append(append([][]float32{}, cur.vectors...), vectors...),
		index:   cur.index.Clone(),
	}
	if err := next.index.Add(vectors); err != nil {
		return IngestResult{TotalChunks: m.TotalChunks()}, fmt.Errorf("%w: %v", domain.ErrIntegrity, err)
	}
	if err := next.check(); err != nil {
		return IngestResult{TotalChunks: m.TotalChunks()}, err
	}

	if err := m.persistState(next); err != nil {
		return IngestResult{TotalChunks: m.TotalChunks()}, err
	}
	m.state.Store(next)

	if m.lexicon != nil {
		if err := m.lexicon.IndexChunks(baseID, req.Chunks); err != nil {
			slog.Warn("Lexical indexing failed, text search may lag", "error", err)
		}
	}

	m.manifest.SetSource(req.SourceName, SourceState{
		ContentHash: req.ContentHash,
		ChunkCount:  len(req.Chunks),
		IngestedAt:  time.Now(),
	})
	if err := m.manifest.Save(filepath.Join(m.dir, ManifestFilename)); err != nil {
		return IngestResult{ChunksAdded: len(req.Chunks), TotalChunks: m.TotalChunks()}, err
	}

	return IngestResult{ChunksAdded: len(req.Chunks), TotalChunks: m.TotalChunks()}, nil
}

// persistState writes the three stores, each with temp-file + atomic rename.
func (m *Manager) persistState(st *state) error {
	if err := saveChunks(filepath.Join(m.dir, ChunkStoreFilename), st.chunks); err != nil {
		return err
	}
	if err := saveVectors(filepath.Join(m.dir, VectorStoreFilename), m.provider.Dimension(), m.provider.ModelID(), st.vectors); err != nil {
		return err
	}
	return st.index.Persist(filepath.Join(m.dir, IndexFilename))
}

// Persist writes the current snapshot and manifest to disk.
func (m *Manager) Persist() error {
	if err := m.persistState(m.state.Load()); err != nil {
		return err
	}
	return m.manifest.Save(filepath.Join(m.dir, ManifestFilename))
}

// Search returns the k nearest chunks to queryVector, best first, with
// canonical cosine similarity scores. Returns domain.ErrIndexNotReady when
// the corpus is empty.
func (m *Manager) Search(queryVector []float32, k int) ([]SearchHit, error) {
	st := m.state.Load()
	if st == nil || len(st.chunks) == 0 {
		return nil, domain.ErrIndexNotReady
	}

	raw, err := st.index.Search(queryVector, k)
	if err != nil {
		return nil, err
	}

	metric := st.index.Metric()
	hits := make([]SearchHit, len(raw))
	for i, hit := range raw {
		hits[i] = SearchHit{
			ChunkIndex: hit.ID,
			Chunk:      st.chunks[hit.ID],
			Score:      vectorindex.SimilarityFromDistance(metric, hit.Score),
		}
	}
	return hits, nil
}

// RebuildFromChunks re-embeds and re-indexes the whole chunk store. Used to
// recover from an integrity violation or an embedding model change.
func (m *Manager) RebuildFromChunks(ctx context.Context) error {
	release, err := m.lockCorpus()
	if err != nil {
		return err
	}
	defer release()

	chunks, err := loadChunks(filepath.Join(m.dir, ChunkStoreFilename))
	if err != nil {
		// Chunk store unreadable: unrecoverable without re-ingestion.
		return fmt.Errorf("%w: chunk store unreadable: %v", domain.ErrIntegrity, err)
	}
	return m.rebuild(ctx, chunks)
}

// rebuild re-embeds chunks and replaces the snapshot and stores. The caller
// must hold the write lock (or be the only accessor, during load).
func (m *Manager) rebuild(ctx context.Context, chunks []domain.SpecChunk) error {
	index, err := vectorindex.NewFlatIndex(m.provider.Dimension())
	if err != nil {
		return err
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += m.opts.EmbeddingBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+m.opts.EmbeddingBatchSize, len(chunks))

		texts := make([]string, end-start)
		for i, chunk := range chunks[start:end] {
			texts[i] = chunk.Text
		}
		batch, err := m.provider.Encode(ctx, texts)
		if err != nil {
			return err
		}
		vectors = append(vectors, batch...)
	}

	if err := index.Add(vectors); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIntegrity, err)
	}

	st := &state{chunks: chunks, vectors: vectors, index: index}
	if err := st.check(); err != nil {
		return err
	}
	if err := m.persistState(st); err != nil {
		return err
	}
	m.state.Store(st)

	if m.lexicon != nil {
		if err := m.lexicon.Rebuild(chunks); err != nil {
			slog.Warn("Lexical rebuild failed, text search may lag", "error", err)
		}
	}

	slog.Info("Corpus rebuilt from chunk store", "chunks", len(chunks))
	return nil
}

// TotalChunks returns the number of chunks in the published snapshot.
func (m *Manager) TotalChunks() int {
	st := m.state.Load()
	if st == nil {
		return 0
	}
	return len(st.chunks)
}

// SourceNames returns the names of all ingested source documents.
func (m *Manager) SourceNames() []string {
	return m.manifest.SourceNames()
}

// ModelID returns the embedding model identifier in use.
func (m *Manager) ModelID() string {
	return m.provider.ModelID()
}

// Dimension returns the embedding dimension in use.
func (m *Manager) Dimension() int {
	return m.provider.Dimension()
}

// Dir returns the corpus directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Reset destroys the corpus: snapshot cleared, stores removed, manifest
// emptied. The only way corpus state is ever destroyed.
func (m *Manager) Reset() error {
	release, err := m.lockCorpus()
	if err != nil {
		return err
	}
	defer release()

	index, err := vectorindex.NewFlatIndex(m.provider.Dimension())
	if err != nil {
		return err
	}
	m.state.Store(&state{index: index})
	m.manifest.Reset()

	for _, name := range []string{ChunkStoreFilename, VectorStoreFilename, IndexFilename} {
		if err := removeIfExists(filepath.Join(m.dir, name)); err != nil {
			return err
		}
	}
	if m.lexicon != nil {
		if err := m.lexicon.Rebuild(nil); err != nil {
			slog.Warn("Lexical reset failed", "error", err)
		}
	}
	return m.manifest.Save(filepath.Join(m.dir, ManifestFilename))
}
