package embeddings

import "errors"

// ErrEmbedding is returned when embedding generation fails. A search that
// cannot embed its query aborts with this error rather than degrading.
var ErrEmbedding = errors.New("embedding failed")
