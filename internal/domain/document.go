package domain

import "time"

// Document is a retrievable text passage with its precomputed embedding.
// Read-only to the query path; created during ingestion.
type Document struct {
	ID          string
	Text        string
	Source      string
	PublishedAt time.Time // zero when unknown
	Embedding   []float32
}
