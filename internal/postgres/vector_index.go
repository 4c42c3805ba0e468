package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
)

// VectorIndex is the vector index backed by the book_vectors table with a
// pgvector HNSW index for fast approximate nearest-neighbour search.
//
// Obtain one via [Store.Index] rather than constructing directly.
// All methods are safe for concurrent use.
type VectorIndex struct {
	pool *pgxpool.Pool
	dims int
}

// Dimensions returns the vector length the index accepts.
func (v *VectorIndex) Dimensions() int { return v.dims }

// Upsert implements [index.Index]. Entries are written in a single
// transaction so concurrent searches observe the batch atomically.
func (v *VectorIndex) Upsert(ctx context.Context, entries []index.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != v.dims {
			return fmt.Errorf("%w: entry %s has %d dimensions, index expects %d",
				index.ErrDimensionMismatch, e.ID, len(e.Vector), v.dims)
		}
	}

	const q = `
		INSERT INTO book_vectors
		    (id, embedding, genre, language, rating, year)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
		    embedding = EXCLUDED.embedding,
		    genre     = EXCLUDED.genre,
		    language  = EXCLUDED.language,
		    rating    = EXCLUDED.rating,
		    year      = EXCLUDED.year`

	tx, err := v.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("vector index: begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		vec := pgvector.NewVector(e.Vector)
		if _, err := tx.Exec(ctx, q,
			e.ID, vec, string(e.Genre), string(e.Language), e.Rating, e.Year,
		); err != nil {
			return fmt.Errorf("vector index: upsert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("vector index: commit upsert: %w", err)
	}
	return nil
}

// Remove implements [index.Index].
func (v *VectorIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := v.pool.Exec(ctx, `DELETE FROM book_vectors WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("vector index: remove: %w", err)
	}
	return nil
}

// Search implements [index.Index]. It finds the topK vectors closest to the
// query by cosine distance, filtered by filter, and converts distances to the
// normalized [0, 1] score convention: score = (2 - distance) / 2.
func (v *VectorIndex) Search(ctx context.Context, vector []float32, topK int, minScore float64, filter index.Filter) ([]index.Result, error) {
	if len(vector) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			index.ErrDimensionMismatch, len(vector), v.dims)
	}
	if topK <= 0 {
		return []index.Result{}, nil
	}

	queryVec := pgvector.NewVector(vector)

	args := []any{queryVec} // $1 = query vector
	next := func(val any) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if len(filter.Genres) > 0 {
		genres := make([]string, len(filter.Genres))
		for i, g := range filter.Genres {
			genres[i] = string(g)
		}
		conditions = append(conditions, "genre = ANY("+next(genres)+")")
	}
	if filter.Language != "" {
		conditions = append(conditions, "language = "+next(string(filter.Language)))
	}
	if filter.MinRating > 0 {
		conditions = append(conditions, "rating >= "+next(filter.MinRating))
	}
	if minScore > 0 {
		// score = (2 - distance) / 2  ⇒  score >= minScore iff
		// distance <= 2 - 2*minScore. Pushing the bound down lets the planner
		// combine it with the HNSW scan.
		conditions = append(conditions, "embedding <=> $1 <= "+next(2-2*minScore))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, (2 - (embedding <=> $1)) / 2 AS score
		FROM   book_vectors
		%s
		ORDER  BY embedding <=> $1, year DESC, id ASC
		LIMIT  %s`, whereClause, limitArg)

	rows, err := v.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (index.Result, error) {
		var r index.Result
		if err := row.Scan(&r.ID, &r.Score); err != nil {
			return index.Result{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vector index: scan rows: %w", err)
	}
	if results == nil {
		results = []index.Result{}
	}
	return results, nil
}

// Len implements [index.Index].
func (v *VectorIndex) Len(ctx context.Context) (int, error) {
	var n int
	if err := v.pool.QueryRow(ctx, `SELECT count(*) FROM book_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vector index: len: %w", err)
	}
	return n, nil
}
