package retrieve

import (
	"context"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/retrieval"
)

// Searcher is the nearest-neighbor search the retriever runs against.
type Searcher interface {
	Search(vector []float32, k int) []retrieval.Result
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
