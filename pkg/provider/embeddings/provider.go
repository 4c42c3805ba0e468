// Package embeddings defines the Provider interface for vector embedding backends.
//
// An embeddings provider wraps a service that maps text strings to dense float32
// vectors (e.g., OpenAI text-embedding-ada-002 or a local Ollama model). These
// vectors power the book index: catalog records are embedded at ingest time and
// user queries at chat time, and recommendations come from comparing the two in
// the same vector space.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// DefaultMaxInputTokens is the input budget callers truncate to before
// embedding when no explicit budget is configured. 8191 is the input cap
// shared by OpenAI's embedding models; inputs over the provider's real limit
// fail the whole request, so callers cut rather than reject.
const DefaultMaxInputTokens = 8191

// Provider is the abstraction over any text-embedding backend.
//
// All embedding vectors returned by a single Provider instance must share the same
// dimensionality (returned by Dimensions). Query vectors and book-document vectors
// must come from the same Provider instance (or at least the same model); mixing
// spaces silently produces meaningless similarity scores, so the index records the
// model it was built with and rejects mismatches.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns a
	// float32 slice of length Dimensions() or an error if the request fails or ctx
	// is cancelled.
	//
	// The input text is passed through verbatim. Callers render book records into
	// embedding documents (title, author, genre, description) before calling Embed;
	// the Provider does no formatting of its own.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of text strings in a single
	// provider call, which is typically far more efficient than calling Embed in a
	// loop. The returned slice has the same length as texts and the i-th element
	// corresponds to texts[i]. Catalog ingestion uses this to embed books in
	// configurable batches.
	//
	// Returns an error if any single embedding fails or if ctx is cancelled. Partial
	// results are not returned — on error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every embedding vector produced by this
	// provider. The value is determined by the underlying model and is constant for
	// the lifetime of the Provider instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier used for embeddings
	// (e.g., "text-embedding-ada-002"). The index stores this alongside vectors so
	// that a model change forces a rebuild instead of cross-space comparisons.
	ModelID() string
}
