// Package corpus defines the canonical store of book records.
//
// The corpus is the source of truth for book metadata. The vector index holds
// only a derived projection (embedding plus filter fields); whenever a search
// hit needs rendering into chat context, the full record is fetched from here
// by ID. Two implementations exist: an in-memory store for tests and the
// bootstrap path, and a PostgreSQL store for deployments where the catalog
// sync persists between restarts.
//
// Every implementation must be safe for concurrent use.
package corpus

import (
	"context"
	"errors"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

// ErrNotFound is returned by Get when no record with the requested ID exists.
var ErrNotFound = errors.New("corpus: book not found")

// ListFilter narrows a List call. Zero-value fields are not applied.
type ListFilter struct {
	// Genre restricts results to a single genre.
	Genre books.Genre

	// Language restricts results to records in this language.
	Language books.Language

	// MinRating excludes records rated below this value.
	MinRating float64

	// Limit caps the number of results. Zero means the implementation default.
	Limit int
}

// Store is the canonical book store.
//
// Upsert must replace existing records with the same ID. Remove of a
// non-existent ID is not an error. Results from List are ordered by descending
// Rating, ties broken by ascending ID so listings are stable.
type Store interface {
	// Upsert inserts or replaces the given records.
	Upsert(ctx context.Context, records []books.Record) error

	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (books.Record, error)

	// GetBatch returns the records for the given IDs, preserving input order.
	// IDs with no matching record are skipped, not errors; retrieval results
	// may reference records the sync has since removed.
	GetBatch(ctx context.Context, ids []string) ([]books.Record, error)

	// List returns records matching filter, ordered by descending rating.
	List(ctx context.Context, filter ListFilter) ([]books.Record, error)

	// All returns every record in the store. Used to rebuild the vector index
	// from scratch, so ordering is unspecified.
	All(ctx context.Context) ([]books.Record, error)

	// Remove deletes the records with the given IDs.
	Remove(ctx context.Context, ids []string) error

	// Count returns the number of records in the store.
	Count(ctx context.Context) (int, error)
}
