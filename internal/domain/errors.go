package domain

import "errors"

var (
	// ErrEmptyQuery signals a blank search query.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrInvalidK signals a result count outside the accepted range.
	ErrInvalidK = errors.New("invalid result count")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrCollaboratorUnavailable signals that the embedding provider or vector index cannot serve the request.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrIndexNotBuilt signals that the vector index has not been created yet.
	ErrIndexNotBuilt = errors.New("vector index not built")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a text-generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrEmptyCompletion signals a completion without any text.
	ErrEmptyCompletion = errors.New("empty completion")
)
