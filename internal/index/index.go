// Package index implements the in-memory vector index: cosine nearest
// neighbor search over (vector, document) entries with unique ids.
package index

import (
	"container/heap"
	"fmt"
	"math"
	"sync"

	"github.com/finbrief/finbrief/internal/domain"
	"github.com/finbrief/finbrief/internal/domain/retrieval"
)

// Index is the long-lived shared vector index. Reads and writes are safe to
// interleave; a search observes either the pre- or post-mutation state of an
// entry, never a partially written vector. Vectors are copied on Add and
// referenced read-only afterwards, so the lock is the only synchronization
// needed.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]domain.Document
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim, entries: make(map[string]domain.Document)}
}

// Dimension returns the fixed vector dimension D.
func (ix *Index) Dimension() int { return ix.dim }

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Add stores a document and its vector. An existing id is overwritten.
// Returns ErrDimensionMismatch when the vector does not have dimension D;
// the failure is local to this call and leaves the index unchanged.
func (ix *Index) Add(doc domain.Document) error {
	if len(doc.Embedding) != ix.dim {
		return fmt.Errorf("%w: got %d, index dimension is %d",
			domain.ErrDimensionMismatch, len(doc.Embedding), ix.dim)
	}

	vec := make([]float32, len(doc.Embedding))
	copy(vec, doc.Embedding)
	doc.Embedding = vec

	ix.mu.Lock()
	ix.entries[doc.ID] = doc
	ix.mu.Unlock()
	return nil
}

// Remove deletes a document by id. Removing a missing id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	delete(ix.entries, id)
	ix.mu.Unlock()
}

// Search returns up to k nearest neighbors by cosine similarity, descending
// by score. Scores are clamped to [0,1]: anti-correlated vectors score 0.
// An empty index yields an empty result.
func (ix *Index) Search(vector []float32, k int) []retrieval.Result {
	if k <= 0 {
		return nil
	}

	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	h := &hitHeap{}
	heap.Init(h)
	for _, doc := range ix.entries {
		score := cosine(vector, doc.Embedding, queryNorm)
		if h.Len() < k {
			heap.Push(h, hit{doc: doc, score: score})
		} else if score > (*h)[0].score {
			(*h)[0] = hit{doc: doc, score: score}
			heap.Fix(h, 0)
		}
	}

	results := make([]retrieval.Result, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		top := heap.Pop(h).(hit)
		results[i] = retrieval.New(top.doc, top.score)
	}
	return results
}

// Documents returns a point-in-time copy of all indexed documents, for
// checkpointing. Vectors are shared read-only with the index.
func (ix *Index) Documents() []domain.Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docs := make([]domain.Document, 0, len(ix.entries))
	for _, doc := range ix.entries {
		docs = append(docs, doc)
	}
	return docs
}

// Restore replaces the index contents with the given documents. Entries with
// a wrong dimension are rejected, reported as a single error after the rest
// have been loaded.
func (ix *Index) Restore(docs []domain.Document) error {
	entries := make(map[string]domain.Document, len(docs))
	var rejected int
	for _, doc := range docs {
		if len(doc.Embedding) != ix.dim {
			rejected++
			continue
		}
		entries[doc.ID] = doc
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()

	if rejected > 0 {
		return fmt.Errorf("%w: %d of %d restored entries rejected",
			domain.ErrDimensionMismatch, rejected, len(docs))
	}
	return nil
}

// cosine computes the normalized dot product of a and b, clamped to [0,1].
// queryNorm is the precomputed norm of a.
func cosine(a, b []float32, queryNorm float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	bNorm := norm(b)
	if bNorm == 0 {
		return 0
	}
	score := dot / (queryNorm * bNorm)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// hit pairs a document with its score inside the selection heap.
type hit struct {
	doc   domain.Document
	score float64
}

// hitHeap is a min-heap by score: the root is the weakest candidate and is
// evicted first.
type hitHeap []hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)         { *h = append(*h, x.(hit)) }
func (h *hitHeap) Pop() any           { old := *h; n := len(old); x := old[n-1]; *h = old[:n-1]; return x }
