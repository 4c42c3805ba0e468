// Package index defines the vector index used for semantic book retrieval.
//
// The index holds one embedding per book plus the small metadata subset needed
// for filter pushdown (genre, language, rating, year). Searches rank by cosine
// similarity, normalized so that callers reason about scores in [0, 1]:
// 1.0 is an identical direction, 0.5 is orthogonal, 0.0 is opposite. The
// configured similarity threshold is expressed in this normalized space.
//
// Two implementations exist: a copy-on-write in-memory index ([Mem]) and a
// pgvector-backed index (internal/postgres). Both must be safe for concurrent
// use, and searches must never observe a half-applied batch of mutations.
package index

import (
	"context"
	"errors"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// dimensionality the index was created with.
var ErrDimensionMismatch = errors.New("index: embedding dimension mismatch")

// Entry is one indexed book: its embedding plus the metadata needed for
// filtering without a corpus round-trip.
type Entry struct {
	// ID is the corpus record ID this entry projects.
	ID string

	// Vector is the embedding of the book's rendered document. Its length must
	// equal the index dimensionality.
	Vector []float32

	// Genre, Language, Rating and Year mirror the corpus record fields used by
	// Filter pushdown and tie-breaking.
	Genre    books.Genre
	Language books.Language
	Rating   float64
	Year     int
}

// Filter restricts a search to entries matching every set field.
// The zero value matches everything.
type Filter struct {
	// Genres restricts hits to entries whose genre is in the list.
	// Empty matches all genres.
	Genres []books.Genre

	// Language restricts hits to entries in this language. Empty matches all.
	Language books.Language

	// MinRating excludes entries rated below this value.
	MinRating float64
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if len(f.Genres) > 0 {
		found := false
		for _, g := range f.Genres {
			if e.Genre == g {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Language != "" && e.Language != f.Language {
		return false
	}
	if e.Rating < f.MinRating {
		return false
	}
	return true
}

// Result is a single search hit.
type Result struct {
	// ID is the corpus record ID of the hit.
	ID string

	// Score is the normalized cosine similarity in [0, 1]: (cos+1)/2.
	// Results are ordered by descending Score; ties break on newer Year, then
	// ascending ID, so identical inputs always produce identical output order.
	Score float64
}

// Index is the vector search abstraction.
//
// Mutations are batch-atomic: a concurrent Search observes either none or all
// of an Upsert/Remove batch. minScore is applied before topK, so a fully
// filtered query returns an empty slice rather than low-quality hits.
type Index interface {
	// Upsert inserts or replaces the given entries.
	Upsert(ctx context.Context, entries []Entry) error

	// Remove deletes the entries with the given IDs. Unknown IDs are ignored.
	Remove(ctx context.Context, ids []string) error

	// Search returns up to topK entries most similar to vector, each with
	// Score >= minScore, matching filter, ordered by descending Score.
	// Returns an empty (non-nil) slice when nothing qualifies.
	Search(ctx context.Context, vector []float32, topK int, minScore float64, filter Filter) ([]Result, error)

	// Len returns the number of indexed entries.
	Len(ctx context.Context) (int, error)
}
