package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Corpus DDL — canonical book records
// ─────────────────────────────────────────────────────────────────────────────

const ddlBooks = `
CREATE TABLE IF NOT EXISTS books (
    id          TEXT              PRIMARY KEY,
    title       TEXT              NOT NULL,
    author      TEXT              NOT NULL DEFAULT '',
    genre       TEXT              NOT NULL DEFAULT 'general',
    description TEXT              NOT NULL DEFAULT '',
    rating      DOUBLE PRECISION  NOT NULL DEFAULT 0,
    year        INTEGER           NOT NULL DEFAULT 0,
    language    TEXT              NOT NULL DEFAULT 'tr',
    synced_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_books_genre
    ON books (genre);

CREATE INDEX IF NOT EXISTS idx_books_rating
    ON books (rating DESC);

CREATE INDEX IF NOT EXISTS idx_books_genre_rating
    ON books (genre, rating DESC);
`

// ddlVectors returns the vector index DDL with the embedding dimension
// substituted. The dimension is baked into the column type at schema creation
// time.
//
// book_vectors deliberately carries no foreign key to books: the catalog sync
// writes embeddings and records through separate paths, and a vector row with
// no corpus record is harmless (hits without a backing record are dropped at
// retrieval time).
func ddlVectors(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS book_vectors (
    id        TEXT              PRIMARY KEY,
    embedding vector(%d),
    genre     TEXT              NOT NULL DEFAULT 'general',
    language  TEXT              NOT NULL DEFAULT 'tr',
    rating    DOUBLE PRECISION  NOT NULL DEFAULT 0,
    year      INTEGER           NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_book_vectors_embedding
    ON book_vectors USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_book_vectors_genre
    ON book_vectors (genre);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions
// exist. It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT
// EXISTS) and safe to call on every application start.
//
// embeddingDimensions must match the embedding model configured for your
// deployment (e.g., 1536 for text-embedding-ada-002, 768 for
// nomic-embed-text). Changing this value after the first migration requires a
// manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlBooks,
		ddlVectors(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
