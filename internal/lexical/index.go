// Package lexical maintains a full-text index over corpus chunks, serving
// keyword search beside the vector-based similarity path.
package lexical

import (
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/fieldscope/specmatch/internal/domain"
)

// MaxBatchSize is the maximum number of chunk documents per index batch.
const MaxBatchSize = 100

// chunkDocument is the indexed form of a SpecChunk.
type chunkDocument struct {
	Text           string `json:"text"`
	Source         string `json:"source"`
	Page           int    `json:"page"`
	SectionType    string `json:"section_type"`
	DocumentNumber string `json:"document_number"`
}

// TextHit is one full-text search result.
type TextHit struct {
	// ChunkIndex is the chunk's position in the corpus chunk store.
	ChunkIndex int

	// Score is the relevance score assigned by the index.
	Score float64

	// Source and Page locate the chunk in its document.
	Source string
	Page   int

	// Fragments are highlighted text snippets around the matched terms.
	Fragments []string
}

// Index wraps a Bleve index over corpus chunks.
type Index struct {
	path  string
	index bleve.Index
}

// createMapping builds the Bleve index mapping for chunk documents.
func createMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	// Chunk text - analyzed for full-text search with highlight support
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = true
	textField.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldText, textField)

	// Source - keyword (not analyzed), stored for retrieval
	sourceField := bleve.NewTextFieldMapping()
	sourceField.Analyzer = keyword.Name
	sourceField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldSource, sourceField)

	// Section type - keyword, stored
	sectionField := bleve.NewTextFieldMapping()
	sectionField.Analyzer = keyword.Name
	sectionField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldSectionType, sectionField)

	// Document number - keyword, stored
	docNumField := bleve.NewTextFieldMapping()
	docNumField.Analyzer = keyword.Name
	docNumField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldDocumentNumber, docNumField)

	// Page - numeric, stored
	pageField := bleve.NewNumericFieldMapping()
	pageField.Store = true
	docMapping.AddFieldMappingsAt(domain.ChunkFieldPage, pageField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Open opens the index at path, creating it if absent.
func Open(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err == nil {
		return &Index{path: path, index: index}, nil
	}

	index, err = bleve.New(path, createMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create lexical index: %w", err)
	}
	return &Index{path: path, index: index}, nil
}

// IndexChunks indexes chunks whose corpus positions start at baseID,
// batching to bound memory.
func (ix *Index) IndexChunks(baseID int, chunks []domain.SpecChunk) error {
	batch := ix.index.NewBatch()
	batchSize := 0

	for i, chunk := range chunks {
		doc := chunkDocument{
			Text:           chunk.Text,
			Source:         chunk.Source,
			Page:           chunk.Page,
			SectionType:    string(chunk.SectionType),
			DocumentNumber: chunk.DocumentNumber,
		}
		if err := batch.Index(strconv.Itoa(baseID+i), doc); err != nil {
			return fmt.Errorf("failed to batch chunk %d: %w", baseID+i, err)
		}
		batchSize++

		if batchSize >= MaxBatchSize {
			if err := ix.index.Batch(batch); err != nil {
				return fmt.Errorf("batch index failed: %w", err)
			}
			batch = ix.index.NewBatch()
			batchSize = 0
		}
	}

	if batchSize > 0 {
		if err := ix.index.Batch(batch); err != nil {
			return fmt.Errorf("final batch index failed: %w", err)
		}
	}
	return nil
}

// Rebuild replaces the index content with the given chunks. The old index
// is discarded wholesale rather than deleted document by document.
func (ix *Index) Rebuild(chunks []domain.SpecChunk) error {
	if err := ix.index.Close(); err != nil {
		return fmt.Errorf("failed to close lexical index: %w", err)
	}
	if err := os.RemoveAll(ix.path); err != nil {
		return fmt.Errorf("failed to remove lexical index: %w", err)
	}

	index, err := bleve.New(ix.path, createMapping())
	if err != nil {
		return fmt.Errorf("failed to recreate lexical index: %w", err)
	}
	ix.index = index

	return ix.IndexChunks(0, chunks)
}

// Search runs a full-text query, optionally filtered to one source
// document, and returns hits with highlighted fragments.
func (ix *Index) Search(queryStr, source string, limit int) ([]TextHit, error) {
	textQuery := bleve.NewMatchQuery(queryStr)
	textQuery.SetField(domain.ChunkFieldText)

	var searchQuery query.Query = textQuery
	if source != "" {
		sourceQuery := bleve.NewTermQuery(source)
		sourceQuery.SetField(domain.ChunkFieldSource)
		searchQuery = bleve.NewConjunctionQuery(textQuery, sourceQuery)
	}

	req := bleve.NewSearchRequest(searchQuery)
	req.Size = limit
	req.Fields = []string{domain.ChunkFieldSource, domain.ChunkFieldPage}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(domain.ChunkFieldText)

	results, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	hits := make([]TextHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		chunkIndex, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}

		out := TextHit{ChunkIndex: chunkIndex, Score: hit.Score}
		if val, ok := hit.Fields[domain.ChunkFieldSource].(string); ok {
			out.Source = val
		}
		if val, ok := hit.Fields[domain.ChunkFieldPage].(float64); ok {
			out.Page = int(val)
		}
		if fragments, ok := hit.Fragments[domain.ChunkFieldText]; ok {
			out.Fragments = fragments
		}
		hits = append(hits, out)
	}
	return hits, nil
}

// DocCount returns the number of indexed chunk documents.
func (ix *Index) DocCount() (uint64, error) {
	return ix.index.DocCount()
}

// Close releases the underlying index.
func (ix *Index) Close() error {
	return ix.index.Close()
}
