package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

// CorpusStore is the canonical book store backed by the books table.
//
// Obtain one via [Store.Corpus] rather than constructing directly.
// All methods are safe for concurrent use.
type CorpusStore struct {
	pool *pgxpool.Pool
}

// Upsert implements [corpus.Store]. Records are written in a single
// transaction so a failed batch leaves the table untouched.
func (s *CorpusStore) Upsert(ctx context.Context, records []books.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("corpus store: upsert: %w", err)
		}
	}

	const q = `
		INSERT INTO books
		    (id, title, author, genre, description, rating, year, language, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		    title       = EXCLUDED.title,
		    author      = EXCLUDED.author,
		    genre       = EXCLUDED.genre,
		    description = EXCLUDED.description,
		    rating      = EXCLUDED.rating,
		    year        = EXCLUDED.year,
		    language    = EXCLUDED.language,
		    synced_at   = EXCLUDED.synced_at`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("corpus store: begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		var syncedAt *time.Time
		if !r.SyncedAt.IsZero() {
			syncedAt = &r.SyncedAt
		}
		if _, err := tx.Exec(ctx, q,
			r.ID, r.Title, r.Author, string(r.Genre), r.Description,
			r.Rating, r.Year, string(r.Language), syncedAt,
		); err != nil {
			return fmt.Errorf("corpus store: upsert %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("corpus store: commit upsert: %w", err)
	}
	return nil
}

const selectColumns = `id, title, author, genre, description, rating, year, language, synced_at`

// Get implements [corpus.Store].
func (s *CorpusStore) Get(ctx context.Context, id string) (books.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM books WHERE id = $1`, selectColumns)
	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return books.Record{}, fmt.Errorf("corpus store: get: %w", err)
	}
	record, err := pgx.CollectOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return books.Record{}, corpus.ErrNotFound
	}
	if err != nil {
		return books.Record{}, fmt.Errorf("corpus store: get %s: %w", id, err)
	}
	return record, nil
}

// GetBatch implements [corpus.Store]. Missing IDs are skipped; input order is
// preserved for the IDs that resolve.
func (s *CorpusStore) GetBatch(ctx context.Context, ids []string) ([]books.Record, error) {
	if len(ids) == 0 {
		return []books.Record{}, nil
	}

	q := fmt.Sprintf(`SELECT %s FROM books WHERE id = ANY($1)`, selectColumns)
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("corpus store: get batch: %w", err)
	}
	found, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("corpus store: get batch scan: %w", err)
	}

	byID := make(map[string]books.Record, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	result := make([]books.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			result = append(result, r)
		}
	}
	return result, nil
}

// List implements [corpus.Store].
func (s *CorpusStore) List(ctx context.Context, filter corpus.ListFilter) ([]books.Record, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.Genre != "" {
		conditions = append(conditions, "genre = "+next(string(filter.Genre)))
	}
	if filter.Language != "" {
		conditions = append(conditions, "language = "+next(string(filter.Language)))
	}
	if filter.MinRating > 0 {
		conditions = append(conditions, "rating >= "+next(filter.MinRating))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	limitClause := ""
	if filter.Limit > 0 {
		limitClause = "LIMIT " + next(filter.Limit)
	}

	q := fmt.Sprintf(`
		SELECT %s
		FROM   books
		%s
		ORDER  BY rating DESC, id ASC
		%s`, selectColumns, whereClause, limitClause)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("corpus store: list: %w", err)
	}
	result, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("corpus store: list scan: %w", err)
	}
	if result == nil {
		result = []books.Record{}
	}
	return result, nil
}

// All implements [corpus.Store].
func (s *CorpusStore) All(ctx context.Context) ([]books.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM books`, selectColumns)
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("corpus store: all: %w", err)
	}
	result, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("corpus store: all scan: %w", err)
	}
	if result == nil {
		result = []books.Record{}
	}
	return result, nil
}

// Remove implements [corpus.Store]. Removing unknown IDs is not an error.
func (s *CorpusStore) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("corpus store: remove: %w", err)
	}
	return nil
}

// Count implements [corpus.Store].
func (s *CorpusStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("corpus store: count: %w", err)
	}
	return n, nil
}

// scanRecord scans one books row into a books.Record.
func scanRecord(row pgx.CollectableRow) (books.Record, error) {
	var (
		r        books.Record
		genre    string
		language string
		syncedAt sql.NullTime
	)
	if err := row.Scan(
		&r.ID, &r.Title, &r.Author, &genre, &r.Description,
		&r.Rating, &r.Year, &language, &syncedAt,
	); err != nil {
		return books.Record{}, err
	}
	r.Genre = books.Genre(genre)
	r.Language = books.Language(language)
	if syncedAt.Valid {
		r.SyncedAt = syncedAt.Time
	}
	return r, nil
}
