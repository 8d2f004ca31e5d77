// Package retrieval holds ranked retrieval hits.
package retrieval

import "github.com/finbrief/finbrief/internal/domain"

// Result is a single retrieval hit: a document and its similarity score.
// Results are always ordered descending by score.
type Result struct {
	doc   domain.Document
	score float64
}

// New creates a retrieval result.
func New(doc domain.Document, score float64) Result {
	return Result{doc: doc, score: score}
}

// Document returns the retrieved document.
func (r Result) Document() domain.Document { return r.doc }

// Score returns the normalized similarity score in [0,1].
func (r Result) Score() float64 { return r.score }

// MeanScore returns the average score across results, 0 for an empty slice.
func MeanScore(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.score
	}
	return sum / float64(len(results))
}
