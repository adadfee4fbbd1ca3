package provider

import "errors"

var (
	// ErrEmbeddingUnsupported is returned by embedding operations on
	// providers that do not serve an embedding API.
	ErrEmbeddingUnsupported = errors.New("provider does not support embeddings")

	// ErrUnknownProvider is returned when a model identifier carries a
	// prefix no registered provider answers to.
	ErrUnknownProvider = errors.New("unknown provider")
)
