// Package postgres provides the PostgreSQL-backed storage layer: the corpus
// of book records and the pgvector index over their embeddings.
//
// Both layers share a single [pgxpool.Pool]. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Corpus().Upsert(ctx, records)
//	_ = store.Index().Upsert(ctx, entries)
//	hits, _ := store.Index().Search(ctx, queryVec, 10, 0.75, index.Filter{})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
)

// Compile-time interface checks.
var (
	_ corpus.Store = (*CorpusStore)(nil)
	_ index.Index  = (*VectorIndex)(nil)
)

// Store is the central PostgreSQL-backed storage for the book catalog. It
// holds a single [pgxpool.Pool] and exposes the two layers:
//
//   - [Store.Corpus] returns a [CorpusStore] implementing [corpus.Store]
//   - [Store.Index] returns a [VectorIndex] implementing [index.Index]
//
// All operations are safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	corpus *CorpusStore
	index  *VectorIndex
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to embed book documents (e.g., 1536 for text-embedding-ada-002).
// Changing this value after the first migration requires a manual schema
// change and a full re-embed of the catalog.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:   pool,
		corpus: &CorpusStore{pool: pool},
		index:  &VectorIndex{pool: pool, dims: embeddingDimensions},
	}, nil
}

// Corpus returns the book record store which satisfies [corpus.Store].
func (s *Store) Corpus() *CorpusStore { return s.corpus }

// Index returns the vector index which satisfies [index.Index].
func (s *Store) Index() *VectorIndex { return s.index }

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}
