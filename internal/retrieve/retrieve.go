// Package retrieve turns a free-text query into a ranked list of candidate
// book records.
//
// The retriever embeds the query, searches the vector index with an optional
// heuristic genre/mood filter, and joins the hits back to full catalog records.
// All ranking is deterministic for a fixed corpus and embedding provider; the
// LLM never participates in ranking.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/observe"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/tokens"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/embeddings"
)

// ErrEmbeddingUnavailable is returned when the embedding provider keeps failing
// after bounded retries. The orchestrator degrades to an ungrounded response.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// ErrIndexUnavailable is returned when the vector index or corpus store fails on
// read. The orchestrator treats it like an empty retrieval rather than aborting
// the chat turn.
var ErrIndexUnavailable = errors.New("vector index unavailable")

const (
	// DefaultTopK is the number of candidates returned when the caller does not
	// override it.
	DefaultTopK = 10

	// DefaultThreshold is the minimum normalized similarity score a hit must
	// reach to be returned.
	DefaultThreshold = 0.75

	embedAttempts = 2
	embedBaseWait = 200 * time.Millisecond
)

// Result is one ranked retrieval candidate: the full catalog record plus its
// normalized similarity score in [0, 1].
type Result struct {
	Record books.Record
	Score  float64
}

// Retriever embeds queries and searches the vector index. Safe for concurrent
// use.
type Retriever struct {
	embedder    embeddings.Provider
	idx         index.Index
	store       corpus.Store
	hinter      Hinter
	topK        int
	threshold   float64
	counter     *tokens.Counter
	embedBudget int
	metrics     *observe.Metrics
}

// Option configures a [Retriever].
type Option func(*Retriever)

// WithTopK overrides the default number of candidates per retrieval.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithThreshold overrides the default similarity threshold. The value is in the
// normalized [0, 1] score space.
func WithThreshold(threshold float64) Option {
	return func(r *Retriever) {
		if threshold >= 0 && threshold <= 1 {
			r.threshold = threshold
		}
	}
}

// WithHinter replaces the default keyword-based hint extraction stage.
func WithHinter(h Hinter) Option {
	return func(r *Retriever) {
		if h != nil {
			r.hinter = h
		}
	}
}

// WithEmbedBudget overrides the token budget an input is truncated to before
// it reaches the embedding provider.
func WithEmbedBudget(maxTokens int) Option {
	return func(r *Retriever) {
		if maxTokens > 0 {
			r.embedBudget = maxTokens
		}
	}
}

// New creates a Retriever over the given embedding provider, vector index and
// corpus store.
func New(embedder embeddings.Provider, idx index.Index, store corpus.Store, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:    embedder,
		idx:         idx,
		store:       store,
		hinter:      KeywordHinter{},
		topK:        DefaultTopK,
		threshold:   DefaultThreshold,
		counter:     tokens.NewCounter(embedder.ModelID()),
		embedBudget: embeddings.DefaultMaxInputTokens,
		metrics:     observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK records whose similarity to query clears the
// configured threshold, ordered by descending score. topK <= 0 uses the
// retriever's default. An empty result is not an error: it means no grounding
// is available for this query.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("retrieve: empty query")
	}
	if topK <= 0 {
		topK = r.topK
	}

	ctx, span := observe.StartSpan(ctx, "retrieve.query")
	defer span.End()

	hint := r.hinter.Extract(query)

	vector, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	searchStart := time.Now()
	hits, err := r.idx.Search(ctx, vector, topK, r.threshold, hint.Filter())
	r.metrics.SearchDuration.Record(ctx, time.Since(searchStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrIndexUnavailable, err)
	}
	if len(hits) == 0 {
		slog.Debug("retrieval came back empty",
			"query_len", len(query), "hint", hint.Kind)
		return nil, nil
	}

	results, err := r.join(ctx, hits)
	if err != nil {
		return nil, err
	}
	slog.Debug("retrieval complete",
		"hits", len(hits), "results", len(results), "hint", hint.Kind)
	return results, nil
}

// Similar returns up to k records semantically close to the book with the given
// id, excluding the book itself. No similarity threshold is applied: "closest
// neighbours" is meaningful even when all scores are mediocre.
func (r *Retriever) Similar(ctx context.Context, id string, k int) ([]Result, error) {
	if k <= 0 {
		k = r.topK
	}
	record, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get: %v", ErrIndexUnavailable, err)
	}

	vector, err := r.embedQuery(ctx, record.EmbeddingDocument())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	// k+1 because the book itself is expected to be the closest hit.
	hits, err := r.idx.Search(ctx, vector, k+1, 0, index.Filter{})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrIndexUnavailable, err)
	}
	filtered := hits[:0]
	for _, h := range hits {
		if h.ID != id {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) > k {
		filtered = filtered[:k]
	}
	return r.join(ctx, filtered)
}

// embedQuery calls the embedding provider with bounded exponential backoff.
// Over-budget inputs are truncated, not rejected: a huge but valid query still
// gets an answer from whatever fits in the provider's input window.
func (r *Retriever) embedQuery(ctx context.Context, text string) ([]float32, error) {
	text = r.counter.Truncate(text, r.embedBudget)
	start := time.Now()
	vector, err := retry.DoWithData(
		func() ([]float32, error) {
			return r.embedder.Embed(ctx, text)
		},
		retry.Context(ctx),
		retry.Attempts(embedAttempts),
		retry.Delay(embedBaseWait),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	r.metrics.EmbedDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordProviderError(ctx, r.embedder.ModelID(), "embeddings")
	}
	return vector, err
}

// join resolves index hits to full catalog records, preserving hit order.
// Hits whose record has been removed from the corpus (stale index entries
// between syncs) are silently dropped.
func (r *Retriever) join(ctx context.Context, hits []index.Result) ([]Result, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	records, err := r.store.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: get batch: %v", ErrIndexUnavailable, err)
	}
	byID := make(map[string]books.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, ok := byID[h.ID]
		if !ok {
			continue
		}
		results = append(results, Result{Record: rec, Score: h.Score})
	}
	return results, nil
}
