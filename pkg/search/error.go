package search

import "errors"

// ErrQueryEmbedding is returned when the query text cannot be resolved to an
// embedding vector. Hybrid search never degrades to keyword-only results.
var ErrQueryEmbedding = errors.New("query embedding failed")
