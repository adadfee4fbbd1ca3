// Package api provides the HTTP surface for chat, hybrid search and model
// listing.
package api

import (
	"github.com/inkwellco/spool/pkg/contextbuilder"
	"github.com/inkwellco/spool/pkg/docs"
	"github.com/inkwellco/spool/pkg/provider"
	"github.com/inkwellco/spool/pkg/search"
	"github.com/inkwellco/spool/pkg/storage"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Router dispatches chat, embedding and model-listing calls.
	Router *provider.Router

	// Assembler builds the token-budgeted prompt for the chat endpoint.
	Assembler *contextbuilder.Assembler

	// Searcher serves the hybrid search endpoint. Optional; when nil the
	// endpoint reports search as unconfigured.
	Searcher *search.Searcher

	// Storer persists conversation messages.
	Storer storage.Driver

	// Documents receives document excerpts attached via the documents
	// endpoint. Optional; when nil the endpoint reports documents as
	// unconfigured.
	Documents *docs.MemoryRetriever
}
