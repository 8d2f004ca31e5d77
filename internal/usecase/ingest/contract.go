package ingest

import (
	"context"

	"github.com/finbrief/finbrief/internal/domain"
)

// Embedder produces document vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Indexer receives embedded documents and exposes the full set for
// checkpointing.
type Indexer interface {
	Add(doc domain.Document) error
	Remove(id string)
	Documents() []domain.Document
	Len() int
}

// Checkpointer persists the index contents.
type Checkpointer interface {
	Save(ctx context.Context, docs []domain.Document) error
}
