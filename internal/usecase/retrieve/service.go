// Package retrieve turns query text into ranked supporting passages.
package retrieve

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/retrieval"
	"github.com/finbrief/finbrief/internal/metrics"
)

// Service performs semantic retrieval: embed, search, threshold, truncate.
type Service struct {
	index Searcher
	embed Embedder
}

// New creates a retriever.
func New(index Searcher, embed Embedder) *Service {
	return &Service{index: index, embed: embed}
}

// Retrieve returns up to k passages with score >= minScore, descending by
// score. An empty index yields an empty result, not an error. An embedding
// failure propagates as domain.ErrEmbeddingUnavailable; the orchestrator
// treats it as a soft failure.
func (s *Service) Retrieve(ctx context.Context, queryText string, k int, minScore float64) ([]retrieval.Result, error) {
	embResult, err := s.embed.Embed(ctx, queryText)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%v: %w", err, domain.ErrEmbeddingUnavailable)
		}
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	hits := s.index.Search(embResult.Embedding, k)

	results := hits[:0:0]
	for _, hit := range hits {
		if hit.Score() < minScore {
			continue
		}
		metrics.RetrievalScore.Observe(hit.Score())
		results = append(results, hit)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
