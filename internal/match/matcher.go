// Package match embeds infractions and ranks corpus chunks against them.
package match

import (
	"context"
	"fmt"

	"github.com/fieldscope/specmatch/internal/corpus"
	"github.com/fieldscope/specmatch/internal/domain"
	"github.com/fieldscope/specmatch/internal/embedding"
)

// Options controls matching behavior. All scores are canonical cosine
// similarity in [-1, 1]; the corpus manager performs any metric conversion
// before scores reach this package.
type Options struct {
	// TopK is the number of neighbors retrieved per infraction.
	TopK int

	// EquipmentTopK is the deeper retrieval used for equipment-flagged
	// infractions, where ambiguity is higher.
	EquipmentTopK int

	// MinScore discards matches below this similarity.
	MinScore float64
}

// DefaultOptions returns the matching defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		EquipmentTopK: 8,
		MinScore:      0.30,
	}
}

// Validate checks option sanity.
func (o Options) Validate() error {
	if o.TopK <= 0 {
		return fmt.Errorf("TopK must be positive, got %d", o.TopK)
	}
	if o.EquipmentTopK < o.TopK {
		return fmt.Errorf("EquipmentTopK (%d) must not be below TopK (%d)", o.EquipmentTopK, o.TopK)
	}
	if o.MinScore < -1 || o.MinScore > 1 {
		return fmt.Errorf("MinScore must be within [-1, 1], got %v", o.MinScore)
	}
	return nil
}

// Searcher is the corpus read surface the matcher depends on.
type Searcher interface {
	Search(queryVector []float32, k int) ([]corpus.SearchHit, error)
}

// Matcher finds specification support for extracted infractions.
type Matcher struct {
	provider embedding.Provider
	searcher Searcher
	opts     Options
}

// NewMatcher creates a Matcher, validating the options.
func NewMatcher(provider embedding.Provider, searcher Searcher, opts Options) (*Matcher, error) {
	if opts.TopK == 0 {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{provider: provider, searcher: searcher, opts: opts}, nil
}

// Match returns one ranked match list per infraction, parallel to the
// input. All infraction texts are embedded in a single provider call.
// Matches below MinScore are discarded; an infraction may end up with an
// empty list, which the calibrator treats as no specification support.
func (m *Matcher) Match(ctx context.Context, infractions []domain.Infraction) ([][]domain.MatchResult, error) {
	if len(infractions) == 0 {
		return nil, nil
	}

	texts := make([]string, len(infractions))
	for i, inf := range infractions {
		texts[i] = inf.RawText
	}

	vectors, err := m.provider.Encode(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(infractions) {
		return nil, fmt.Errorf("%w: got %d vectors for %d infractions",
			domain.ErrEmbeddingProvider, len(vectors), len(infractions))
	}

	results := make([][]domain.MatchResult, len(infractions))
	for i, inf := range infractions {
		k := m.opts.TopK
		if inf.EquipmentRelated {
			k = m.opts.EquipmentTopK
		}

		hits, err := m.searcher.Search(vectors[i], k)
		if err != nil {
			return nil, err
		}

		matches := make([]domain.MatchResult, 0, len(hits))
		for _, hit := range hits {
			if hit.Score < m.opts.MinScore {
				continue
			}
			matches = append(matches, domain.MatchResult{
				Infraction: inf,
				Chunk:      hit.Chunk,
				Score:      hit.Score,
			})
		}
		results[i] = matches
	}
	return results, nil
}
