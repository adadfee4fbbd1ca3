// Package docs provides document-excerpt retrieval for context assembly.
// Excerpts are chunks of user-provided documents attached to a conversation;
// retrieval returns the most relevant chunks packed under a token budget.
package docs

import "context"

// Source identifies where one retrieved excerpt came from.
type Source struct {
	// Index is the 1-based position of the excerpt in the returned context.
	Index int `json:"index"`

	// Filename is the document the excerpt belongs to.
	Filename string `json:"filename"`

	// Section is the heading or chunk label within the document.
	Section string `json:"section"`

	// Content is the excerpt text.
	Content string `json:"content"`
}

// Retriever finds document excerpts relevant to a query.
type Retriever interface {
	// RetrieveWithSources returns relevant excerpt text for the query,
	// concatenated and trimmed to tokenBudget, along with the source list.
	// No attached documents or no relevant excerpts yields empty results,
	// not an error.
	RetrieveWithSources(ctx context.Context, conversationID, query string, tokenBudget int) (string, []Source, error)
}
