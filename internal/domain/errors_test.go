package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"embedding provider", ErrEmbeddingProvider, true},
		{"wrapped embedding provider", fmt.Errorf("ingest: %w", ErrEmbeddingProvider), true},
		{"ingestion busy", ErrIngestionBusy, true},
		{"empty document", ErrEmptyDocument, false},
		{"index not ready", ErrIndexNotReady, false},
		{"integrity", ErrIntegrity, false},
		{"unrelated", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
