package domain

import "errors"

var (
	// ErrDimensionMismatch signals a vector whose dimension differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingUnavailable signals that the embedding provider failed.
	// Retrieval is skipped and the query proceeds in degraded mode.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrGenerationFailed signals that the language provider failed.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrQueryFailed signals that no usable context could be assembled for a query.
	ErrQueryFailed = errors.New("query failed")
	// ErrTranscriptionFailed signals that voice input could not be converted to text.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrUnauthorized signals a missing or invalid API key.
	ErrUnauthorized = errors.New("unauthorized")
)
