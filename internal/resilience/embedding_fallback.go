package resilience

import (
	"context"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/embeddings"
)

// EmbeddingFallback implements [embeddings.Provider] with automatic failover
// across multiple embedding backends. Each backend has its own circuit breaker.
//
// All registered backends must produce vectors of the same dimensionality;
// failing over between incompatible vector spaces would corrupt similarity
// scores against the index.
type EmbeddingFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*EmbeddingFallback)(nil)

// NewEmbeddingFallback creates an [EmbeddingFallback] with primary as the
// preferred backend.
func NewEmbeddingFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingFallback {
	return &EmbeddingFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional embedding provider as a fallback.
func (f *EmbeddingFallback) AddFallback(name string, provider embeddings.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed computes the embedding against the first healthy provider. If the
// primary fails, subsequent fallbacks are tried.
func (f *EmbeddingFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch computes the batch of embeddings against the first healthy
// provider. A batch is never split across providers.
func (f *EmbeddingFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the dimensionality of the primary provider. All entries
// must agree on this value.
func (f *EmbeddingFallback) Dimensions() int {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Dimensions()
	}
	return 0
}

// ModelID returns the model identifier of the primary provider.
func (f *EmbeddingFallback) ModelID() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.ModelID()
	}
	return ""
}
