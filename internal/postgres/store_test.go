package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/postgres"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if LUMINIS_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("LUMINIS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LUMINIS_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	// Use a bare pool to drop and recreate the schema.
	cleanPool := mustPool(t, ctx, dsn)
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	store, err := postgres.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// mustPool opens a pgxpool with pgvector types registered.
func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// best-effort: pgvector may not be installed yet on a fresh DB
		_ = pgxvec.RegisterTypes(ctx, conn)
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

// dropSchema removes all tables created by Migrate.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS book_vectors CASCADE",
		"DROP TABLE IF EXISTS books CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

func sampleRecords() []books.Record {
	return []books.Record{
		{
			ID: "dune", Title: "Dune", Author: "Frank Herbert",
			Genre: books.GenreScienceFiction, Description: "Desert planet epic.",
			Rating: 4.6, Year: 1965, Language: books.LanguageEnglish,
		},
		{
			ID: "foundation", Title: "Foundation", Author: "Isaac Asimov",
			Genre: books.GenreScienceFiction, Description: "Galactic empire in decline.",
			Rating: 4.4, Year: 1951, Language: books.LanguageEnglish,
		},
		{
			ID: "tutunamayanlar", Title: "Tutunamayanlar", Author: "Oğuz Atay",
			Genre: books.GenreNovel, Description: "Modern Türk edebiyatının köşe taşı.",
			Rating: 4.8, Year: 1972, Language: books.LanguageTurkish,
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Corpus store
// ─────────────────────────────────────────────────────────────────────────────

func TestCorpus_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Corpus().Upsert(ctx, sampleRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Corpus().Get(ctx, "dune")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Dune" || got.Genre != books.GenreScienceFiction {
		t.Errorf("Get returned wrong record: %+v", got)
	}

	_, err = store.Corpus().Get(ctx, "missing")
	if !errors.Is(err, corpus.ErrNotFound) {
		t.Errorf("Get missing: want ErrNotFound, got %v", err)
	}
}

func TestCorpus_UpsertReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := sampleRecords()
	if err := store.Corpus().Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	records[0].Rating = 4.9
	if err := store.Corpus().Upsert(ctx, records[:1]); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := store.Corpus().Get(ctx, "dune")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rating != 4.9 {
		t.Errorf("rating after replace = %v, want 4.9", got.Rating)
	}

	n, err := store.Corpus().Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestCorpus_GetBatchPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Corpus().Upsert(ctx, sampleRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Corpus().GetBatch(ctx, []string{"foundation", "missing", "dune"})
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetBatch: want 2 records, got %d", len(got))
	}
	if got[0].ID != "foundation" || got[1].ID != "dune" {
		t.Errorf("GetBatch order: got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestCorpus_ListFiltersAndOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Corpus().Upsert(ctx, sampleRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	scifi, err := store.Corpus().List(ctx, corpus.ListFilter{Genre: books.GenreScienceFiction})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(scifi) != 2 {
		t.Fatalf("List sci-fi: want 2, got %d", len(scifi))
	}
	if scifi[0].ID != "dune" {
		t.Errorf("List should order by rating desc, first = %s", scifi[0].ID)
	}

	topRated, err := store.Corpus().List(ctx, corpus.ListFilter{MinRating: 4.5, Limit: 1})
	if err != nil {
		t.Fatalf("List top rated: %v", err)
	}
	if len(topRated) != 1 || topRated[0].ID != "tutunamayanlar" {
		t.Errorf("List top rated: got %v", topRated)
	}
}

func TestCorpus_Remove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Corpus().Upsert(ctx, sampleRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Corpus().Remove(ctx, []string{"dune", "never-existed"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	n, err := store.Corpus().Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count after remove = %d, want 2", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Vector index
// ─────────────────────────────────────────────────────────────────────────────

func TestIndex_UpsertAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []index.Entry{
		{ID: "dune", Vector: []float32{1, 0, 0, 0}, Genre: books.GenreScienceFiction, Language: books.LanguageEnglish, Rating: 4.6, Year: 1965},
		{ID: "foundation", Vector: []float32{0.9, 0.1, 0, 0}, Genre: books.GenreScienceFiction, Language: books.LanguageEnglish, Rating: 4.4, Year: 1951},
		{ID: "cookbook", Vector: []float32{0, 0, 1, 0}, Genre: books.GenreCooking, Language: books.LanguageEnglish, Rating: 3.9, Year: 2010},
	}
	if err := store.Index().Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Index().Search(ctx, []float32{1, 0, 0, 0}, 2, 0.75, index.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search: want 2 hits, got %d: %v", len(results), results)
	}
	if results[0].ID != "dune" || results[1].ID != "foundation" {
		t.Errorf("Search order: got %s, %s", results[0].ID, results[1].ID)
	}
	for _, r := range results {
		if r.Score < 0.75 || r.Score > 1 {
			t.Errorf("score %v for %s outside [0.75, 1]", r.Score, r.ID)
		}
	}
}

func TestIndex_FilterPushdown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []index.Entry{
		{ID: "scifi", Vector: []float32{1, 0, 0, 0}, Genre: books.GenreScienceFiction, Language: books.LanguageEnglish, Rating: 4.5},
		{ID: "romance", Vector: []float32{1, 0, 0, 0}, Genre: books.GenreRomance, Language: books.LanguageEnglish, Rating: 3.2},
	}
	if err := store.Index().Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := store.Index().Search(ctx, []float32{1, 0, 0, 0}, 10, 0,
		index.Filter{Genres: []books.Genre{books.GenreScienceFiction}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "scifi" {
		t.Errorf("genre filter: got %v", results)
	}

	results, err = store.Index().Search(ctx, []float32{1, 0, 0, 0}, 10, 0, index.Filter{MinRating: 4})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "scifi" {
		t.Errorf("rating filter: got %v", results)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Index().Upsert(ctx, []index.Entry{{ID: "bad", Vector: []float32{1, 0}}})
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Errorf("Upsert: want ErrDimensionMismatch, got %v", err)
	}

	_, err = store.Index().Search(ctx, []float32{1, 0}, 5, 0, index.Filter{})
	if !errors.Is(err, index.ErrDimensionMismatch) {
		t.Errorf("Search: want ErrDimensionMismatch, got %v", err)
	}
}

func TestIndex_RemoveAndLen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []index.Entry{
		{ID: "a", Vector: []float32{1, 0, 0, 0}},
		{ID: "b", Vector: []float32{0, 1, 0, 0}},
	}
	if err := store.Index().Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Index().Remove(ctx, []string{"a"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	n, err := store.Index().Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Running the migration again against an existing schema must not fail.
	dsn := testDSN(t)
	pool := mustPool(t, ctx, dsn)
	t.Cleanup(pool.Close)
	if err := postgres.Migrate(ctx, pool, testEmbeddingDim); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	_ = store
}
