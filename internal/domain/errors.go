package domain

import "errors"

var (
	// ErrEmptyDocument indicates there was no text to process. No state is
	// mutated when this is returned.
	ErrEmptyDocument = errors.New("document contains no processable text")

	// ErrIndexNotReady indicates a search or analysis was attempted before
	// any document was ingested.
	ErrIndexNotReady = errors.New("corpus index is empty")

	// ErrIntegrity indicates the chunk store, vector store and NN index
	// disagree on counts. Recoverable by rebuilding from the chunk store.
	ErrIntegrity = errors.New("corpus store count mismatch")

	// ErrEmbeddingProvider indicates the embedding provider failed. The
	// enclosing operation performs no partial mutation and may be retried.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrIngestionBusy indicates another writer holds the corpus lock.
	ErrIngestionBusy = errors.New("corpus ingestion already in progress")
)

// IsRetryable reports whether the error represents a transient failure that
// callers may retry without operator intervention.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrEmbeddingProvider) || errors.Is(err, ErrIngestionBusy)
}
