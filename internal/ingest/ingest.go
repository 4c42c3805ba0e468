// Package ingest applies the external catalog sync to the corpus and index.
//
// The sync job lives outside this core and speaks a simple stream of upsert
// and remove events. This package consumes that stream: it embeds the rendered
// book documents in batches, writes the canonical records to the corpus store,
// projects them into the vector index, and invalidates the answer cache so
// stale recommendations disappear with the catalog change that obsoleted them.
//
// The index keeps copy-on-write snapshots internally, so searches running
// during a sync always see a consistent view.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/cache"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/observe"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/tokens"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/embeddings"
)

// DefaultBatchSize is how many documents are embedded per provider call.
const DefaultBatchSize = 64

// maxConcurrentBatches bounds parallel embedding calls so a large sync does
// not exhaust provider rate limits.
const maxConcurrentBatches = 4

// Syncer consumes catalog events and keeps corpus, index and cache aligned.
type Syncer struct {
	embedder    embeddings.Provider
	store       corpus.Store
	idx         index.Index
	cache       cache.Store
	log         *slog.Logger
	batchSize   int
	counter     *tokens.Counter
	embedBudget int
	metrics     *observe.Metrics
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithBatchSize sets how many documents are embedded per provider call.
func WithBatchSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithCache attaches an answer cache flushed after every catalog change.
func WithCache(c cache.Store) Option {
	return func(s *Syncer) {
		s.cache = c
	}
}

// WithEmbedBudget overrides the token budget a rendered document is truncated
// to before embedding.
func WithEmbedBudget(maxTokens int) Option {
	return func(s *Syncer) {
		if maxTokens > 0 {
			s.embedBudget = maxTokens
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Syncer writing through to the given store and index.
func New(embedder embeddings.Provider, store corpus.Store, idx index.Index, opts ...Option) *Syncer {
	s := &Syncer{
		embedder:    embedder,
		store:       store,
		idx:         idx,
		log:         slog.Default(),
		batchSize:   DefaultBatchSize,
		counter:     tokens.NewCounter(embedder.ModelID()),
		embedBudget: embeddings.DefaultMaxInputTokens,
		metrics:     observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert embeds and stores the given records. The corpus is written before
// the index so a search hit can always resolve its record; on a partial
// failure the retriever drops index entries with no corpus backing.
func (s *Syncer) Upsert(ctx context.Context, records []books.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
	}

	entries, err := s.embedAll(ctx, records)
	if err != nil {
		s.metrics.RecordCatalogEvent(ctx, "upsert", "error")
		return err
	}

	before := s.indexLen(ctx)
	if err := s.store.Upsert(ctx, records); err != nil {
		s.metrics.RecordCatalogEvent(ctx, "upsert", "error")
		return fmt.Errorf("ingest: corpus upsert: %w", err)
	}
	if err := s.idx.Upsert(ctx, entries); err != nil {
		s.metrics.RecordCatalogEvent(ctx, "upsert", "error")
		return fmt.Errorf("ingest: index upsert: %w", err)
	}
	s.metrics.IndexedBooks.Add(ctx, int64(s.indexLen(ctx)-before))
	s.metrics.RecordCatalogEvent(ctx, "upsert", "ok")

	s.invalidate(ctx)
	s.log.Info("catalog upsert applied", slog.Int("records", len(records)))
	return nil
}

// Remove deletes the given ids. The index entry goes first so a half-applied
// remove can never surface a hit whose record is already gone.
func (s *Syncer) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	before := s.indexLen(ctx)
	if err := s.idx.Remove(ctx, ids); err != nil {
		s.metrics.RecordCatalogEvent(ctx, "remove", "error")
		return fmt.Errorf("ingest: index remove: %w", err)
	}
	if err := s.store.Remove(ctx, ids); err != nil {
		s.metrics.RecordCatalogEvent(ctx, "remove", "error")
		return fmt.Errorf("ingest: corpus remove: %w", err)
	}
	s.metrics.IndexedBooks.Add(ctx, int64(s.indexLen(ctx)-before))
	s.metrics.RecordCatalogEvent(ctx, "remove", "ok")
	s.invalidate(ctx)
	s.log.Info("catalog remove applied", slog.Int("records", len(ids)))
	return nil
}

// Rebuild re-embeds every corpus record and republishes the index projection.
// Used after an embedding model change, when stored vectors no longer match
// what queries will be embedded with.
func (s *Syncer) Rebuild(ctx context.Context) error {
	records, err := s.store.All(ctx)
	if err != nil {
		return fmt.Errorf("ingest: read corpus: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	entries, err := s.embedAll(ctx, records)
	if err != nil {
		return err
	}
	if err := s.idx.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("ingest: index upsert: %w", err)
	}
	s.invalidate(ctx)
	s.log.Info("index rebuilt", slog.Int("records", len(records)))
	return nil
}

// embedAll renders each record into its embedding document and embeds the
// documents in batches, up to maxConcurrentBatches provider calls in flight.
// Results keep the input ordering.
func (s *Syncer) embedAll(ctx context.Context, records []books.Record) ([]index.Entry, error) {
	entries := make([]index.Entry, len(records))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(records); start += s.batchSize {
		end := min(start+s.batchSize, len(records))
		batch := records[start:end]
		offset := start

		eg.Go(func() error {
			docs := make([]string, len(batch))
			for i, rec := range batch {
				// Over-budget documents are truncated, not rejected, so one
				// oversized description cannot fail a whole sync batch.
				docs[i] = s.counter.Truncate(rec.EmbeddingDocument(), s.embedBudget)
			}
			vectors, err := s.embedder.EmbedBatch(egCtx, docs)
			if err != nil {
				return fmt.Errorf("ingest: embed batch at %d: %w", offset, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("ingest: embed batch at %d: got %d vectors for %d documents",
					offset, len(vectors), len(batch))
			}
			for i, rec := range batch {
				entries[offset+i] = index.Entry{
					ID:       rec.ID,
					Vector:   vectors[i],
					Genre:    rec.Genre,
					Language: rec.Language,
					Rating:   rec.Rating,
					Year:     rec.Year,
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// indexLen reads the current index size for the indexed-books gauge. A read
// failure counts as zero on both sides of a delta, so the gauge drifts rather
// than poisons the sync.
func (s *Syncer) indexLen(ctx context.Context) int {
	n, err := s.idx.Len(ctx)
	if err != nil {
		return 0
	}
	return n
}

// invalidate flushes the answer cache. Best effort: a failed flush only means
// some answers reference the previous catalog until their TTL runs out.
func (s *Syncer) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		s.log.Warn("cache flush after catalog change failed", slog.String("error", err.Error()))
	}
}
