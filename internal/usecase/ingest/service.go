// Package ingest embeds documents and loads them into the search index,
// checkpointing the index to durable storage after each accepted batch.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/logger"
	"github.com/finbrief/finbrief/internal/metrics"
)

const embedConcurrency = 4

// Service ingests documents into the index.
type Service struct {
	embedder     Embedder
	index        Indexer
	checkpointer Checkpointer // nil disables checkpointing
}

func New(embedder Embedder, index Indexer, checkpointer Checkpointer) *Service {
	return &Service{
		embedder:     embedder,
		index:        index,
		checkpointer: checkpointer,
	}
}

// IngestBatch embeds and indexes every document in the batch, then
// checkpoints the index. Documents with empty text are rejected up front;
// a failed embedding fails the whole batch so a checkpoint never captures a
// partially embedded batch alongside silently dropped documents.
func (s *Service) IngestBatch(ctx context.Context, docs []domain.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	prepared := make([]domain.Document, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			return nil, fmt.Errorf("document %d: empty text", i)
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		prepared[i] = doc
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range prepared {
		i := i
		g.Go(func() error {
			res, err := s.embedder.Embed(gctx, prepared[i].Text)
			if err != nil {
				return fmt.Errorf("embed document %s: %w", prepared[i].ID, err)
			}
			prepared[i].Embedding = res.Embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(prepared))
	for _, doc := range prepared {
		if err := s.index.Add(doc); err != nil {
			// roll back this batch's additions so index and checkpoint agree
			for _, id := range ids {
				s.index.Remove(id)
			}
			return nil, fmt.Errorf("index document %s: %w", doc.ID, err)
		}
		ids = append(ids, doc.ID)
	}

	metrics.IndexedDocuments.Set(float64(s.index.Len()))

	if err := s.checkpoint(ctx); err != nil {
		logger.FromContext(ctx).Warn("index checkpoint failed", zap.Error(err))
	}

	logger.FromContext(ctx).Info("batch ingested",
		zap.Int("documents", len(ids)),
		zap.Int("index_size", s.index.Len()),
	)
	return ids, nil
}

// Remove drops a document from the index and re-checkpoints.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.index.Remove(id)
	metrics.IndexedDocuments.Set(float64(s.index.Len()))
	return s.checkpoint(ctx)
}

func (s *Service) checkpoint(ctx context.Context) error {
	if s.checkpointer == nil {
		return nil
	}
	return s.checkpointer.Save(ctx, s.index.Documents())
}
