package resilience

import (
	"context"
	"errors"
	"testing"

	embmock "github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/embeddings/mock"
)

func TestEmbeddingFallback_Embed_PrimarySuccess(t *testing.T) {
	primary := &embmock.Provider{EmbedResult: []float32{1, 0, 0}}
	secondary := &embmock.Provider{EmbedResult: []float32{0, 1, 0}}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "epic science fiction")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 1 {
		t.Fatalf("vec = %v, want primary's vector", vec)
	}
	if len(secondary.EmbedCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.EmbedCalls))
	}
}

func TestEmbeddingFallback_Embed_Failover(t *testing.T) {
	primary := &embmock.Provider{EmbedErr: errors.New("quota exceeded")}
	secondary := &embmock.Provider{EmbedResult: []float32{0, 1, 0}}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "epic science fiction")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[1] != 1 {
		t.Fatalf("vec = %v, want secondary's vector", vec)
	}
}

func TestEmbeddingFallback_Embed_AllFail(t *testing.T) {
	primary := &embmock.Provider{EmbedErr: errors.New("primary down")}
	secondary := &embmock.Provider{EmbedErr: errors.New("secondary down")}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Embed(context.Background(), "anything")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestEmbeddingFallback_EmbedBatch_Failover(t *testing.T) {
	primary := &embmock.Provider{EmbedBatchErr: errors.New("timeout")}
	secondary := &embmock.Provider{
		EmbedBatchResult: [][]float32{{1, 0}, {0, 1}},
	}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vecs, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
}

func TestEmbeddingFallback_Metadata(t *testing.T) {
	primary := &embmock.Provider{DimensionsValue: 1536, ModelIDValue: "text-embedding-ada-002"}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})

	if got := fb.Dimensions(); got != 1536 {
		t.Fatalf("Dimensions = %d, want 1536", got)
	}
	if got := fb.ModelID(); got != "text-embedding-ada-002" {
		t.Fatalf("ModelID = %q, want text-embedding-ada-002", got)
	}
}

func TestEmbeddingFallback_CircuitOpenSkipsPrimary(t *testing.T) {
	primary := &embmock.Provider{EmbedErr: errors.New("always failing")}
	secondary := &embmock.Provider{EmbedResult: []float32{0.5}}

	fb := NewEmbeddingFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})
	fb.AddFallback("secondary", secondary)

	ctx := context.Background()
	// First call trips the primary's breaker.
	if _, err := fb.Embed(ctx, "q1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	primaryCalls := len(primary.EmbedCalls)

	// Second call should skip the open breaker entirely.
	if _, err := fb.Embed(ctx, "q2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(primary.EmbedCalls) != primaryCalls {
		t.Fatalf("primary called while circuit open: %d calls, want %d",
			len(primary.EmbedCalls), primaryCalls)
	}
}
