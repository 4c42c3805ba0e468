package ingest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/cache"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/tokens"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
	embmock "github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/embeddings/mock"
)

const testDims = 4

// hashVector derives a deterministic unit-ish vector from text so distinct
// documents get distinct embeddings.
func hashVector(text string) ([]float32, error) {
	v := make([]float32, testDims)
	for i, r := range text {
		v[i%testDims] += float32(r%13) / 13
	}
	v[0] += 1 // keep vectors away from the zero vector
	return v, nil
}

func newTestSyncer(t *testing.T, opts ...Option) (*Syncer, *corpus.MemStore, *index.Mem, *embmock.Provider) {
	t.Helper()
	embed := &embmock.Provider{
		DimensionsValue: testDims,
		ModelIDValue:    "mock-embed",
		EmbedFunc:       hashVector,
	}
	store := corpus.NewMemStore()
	idx, err := index.NewMem(testDims)
	if err != nil {
		t.Fatalf("NewMem: %v", err)
	}
	return New(embed, store, idx, opts...), store, idx, embed
}

func TestUpsert_WritesCorpusAndIndex(t *testing.T) {
	ctx := context.Background()
	s, store, idx, _ := newTestSyncer(t)

	if err := s.Upsert(ctx, SeedCatalog()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if want := len(SeedCatalog()); n != want {
		t.Errorf("corpus count = %d, want %d", n, want)
	}
	indexed, err := idx.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if want := len(SeedCatalog()); indexed != want {
		t.Errorf("index count = %d, want %d", indexed, want)
	}

	// Indexed vector must match an embed of the rendered document, so query
	// vectors and stored vectors live in the same space.
	rec, err := store.Get(ctx, "dune")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	wantVec, _ := hashVector(rec.EmbeddingDocument())
	hits, err := idx.Search(ctx, wantVec, 1, 0, index.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "dune" {
		t.Errorf("searching dune's own document returned %v", hits)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("self-similarity score = %v, want ~1", hits[0].Score)
	}
}

func TestUpsert_RejectsInvalidRecordBeforeWriting(t *testing.T) {
	ctx := context.Background()
	s, store, idx, embed := newTestSyncer(t)

	bad := []books.Record{
		{ID: "ok", Title: "Fine", Author: "A", Genre: books.GenreNovel, Rating: 4, Language: books.LanguageEnglish},
		{ID: "", Title: "Broken"},
	}
	if err := s.Upsert(ctx, bad); err == nil {
		t.Fatal("Upsert accepted a record without an id")
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("corpus count = %d after rejected batch, want 0", n)
	}
	if n, _ := idx.Len(ctx); n != 0 {
		t.Errorf("index count = %d after rejected batch, want 0", n)
	}
	if len(embed.EmbedBatchCalls) != 0 {
		t.Errorf("embedded %d batches for a rejected upsert, want 0", len(embed.EmbedBatchCalls))
	}
}

func TestUpsert_BatchesEmbeddingCalls(t *testing.T) {
	ctx := context.Background()
	s, _, _, embed := newTestSyncer(t, WithBatchSize(5))

	records := make([]books.Record, 12)
	for i := range records {
		records[i] = books.Record{
			ID: "b" + strconv.Itoa(i), Title: "Book " + strconv.Itoa(i), Author: "A",
			Genre: books.GenreNovel, Rating: 3.5, Language: books.LanguageEnglish,
		}
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if got := len(embed.EmbedBatchCalls); got != 3 {
		t.Fatalf("EmbedBatch called %d times for 12 records at batch size 5, want 3", got)
	}
	total := 0
	for _, call := range embed.EmbedBatchCalls {
		if len(call.Texts) > 5 {
			t.Errorf("batch of %d documents exceeds batch size 5", len(call.Texts))
		}
		total += len(call.Texts)
	}
	if total != 12 {
		t.Errorf("embedded %d documents in total, want 12", total)
	}
}

func TestUpsert_EmbeddingFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s, store, idx, embed := newTestSyncer(t)
	embed.EmbedFunc = nil
	embed.EmbedBatchErr = errors.New("quota exceeded")

	err := s.Upsert(ctx, SeedCatalog())
	if err == nil {
		t.Fatal("Upsert succeeded with a failing embedder")
	}
	if !strings.Contains(err.Error(), "embed batch") {
		t.Errorf("error = %v, want embed batch failure", err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("corpus count = %d, want 0", n)
	}
	if n, _ := idx.Len(ctx); n != 0 {
		t.Errorf("index count = %d, want 0", n)
	}
}

func TestRemove_DropsIndexAndCorpus(t *testing.T) {
	ctx := context.Background()
	s, store, idx, _ := newTestSyncer(t)
	if err := s.Upsert(ctx, SeedCatalog()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.Remove(ctx, []string{"dune", "simyaci"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Get(ctx, "dune"); !errors.Is(err, corpus.ErrNotFound) {
		t.Errorf("Get(dune) = %v, want ErrNotFound", err)
	}
	if n, _ := idx.Len(ctx); n != len(SeedCatalog())-2 {
		t.Errorf("index count = %d, want %d", n, len(SeedCatalog())-2)
	}

	// Removing an unknown id is not an error.
	if err := s.Remove(ctx, []string{"no-such-book"}); err != nil {
		t.Errorf("Remove(unknown) = %v, want nil", err)
	}
}

func TestCatalogChangeFlushesCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	defer mem.Close()
	s, _, _, _ := newTestSyncer(t)
	s.cache = mem

	mem.Set(ctx, "chat:cache:stale", cache.Entry{Response: "old answer"}, time.Minute)
	if err := s.Upsert(ctx, SeedCatalog()[:2]); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if mem.Len() != 0 {
		t.Error("cache survived a catalog upsert")
	}

	mem.Set(ctx, "chat:cache:stale", cache.Entry{Response: "old answer"}, time.Minute)
	if err := s.Remove(ctx, []string{"dune"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if mem.Len() != 0 {
		t.Error("cache survived a catalog remove")
	}
}

func TestRebuild_ReembedsEverything(t *testing.T) {
	ctx := context.Background()
	s, _, idx, embed := newTestSyncer(t)
	if err := s.Upsert(ctx, SeedCatalog()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// Simulate an embedding model change: every document now maps elsewhere.
	embed.EmbedFunc = func(text string) ([]float32, error) {
		v, _ := hashVector(text)
		v[1] += 2
		return v, nil
	}
	if err := s.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n, _ := idx.Len(ctx); n != len(SeedCatalog()) {
		t.Errorf("index count after rebuild = %d, want %d", n, len(SeedCatalog()))
	}

	// A query embedded with the new function must find its book again.
	doc := SeedCatalog()[0].EmbeddingDocument()
	vec, _ := embed.EmbedFunc(doc)
	hits, err := idx.Search(ctx, vec, 1, 0, index.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != SeedCatalog()[0].ID {
		t.Errorf("post-rebuild search returned %v", hits)
	}
}

func TestBootstrap_SeedsOnlyEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSyncer(t)

	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	n, _ := store.Count(ctx)
	if n != len(SeedCatalog()) {
		t.Fatalf("corpus count = %d, want %d", n, len(SeedCatalog()))
	}

	// Second bootstrap is a no-op.
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap #2: %v", err)
	}
	if n2, _ := store.Count(ctx); n2 != n {
		t.Errorf("corpus count changed on repeated bootstrap: %d -> %d", n, n2)
	}
}

func TestRun_AppliesEventsInOrder(t *testing.T) {
	ctx := context.Background()
	s, store, idx, _ := newTestSyncer(t)

	events := make(chan Event, 3)
	events <- Event{Kind: EventUpsert, Records: SeedCatalog()[:3]}
	events <- Event{Kind: EventRemove, IDs: []string{"dune"}}
	events <- Event{Kind: EventUpsert, Records: SeedCatalog()[3:5]}
	close(events)

	if err := s.Run(ctx, events); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := store.Get(ctx, "dune"); !errors.Is(err, corpus.ErrNotFound) {
		t.Error("remove did not win over the earlier upsert")
	}
	n, _ := store.Count(ctx)
	if n != 4 {
		t.Errorf("corpus count = %d, want 4", n)
	}
	if indexed, _ := idx.Len(ctx); indexed != 4 {
		t.Errorf("index count = %d, want 4", indexed)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s, _, _, _ := newTestSyncer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event)
	if err := s.Run(ctx, events); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestUpsert_TruncatesOversizedDocument(t *testing.T) {
	ctx := context.Background()
	s, _, _, embed := newTestSyncer(t, WithEmbedBudget(16))

	rec := books.Record{
		ID: "tome", Title: "The Endless Tome", Author: "N. N.",
		Genre:       books.GenreFantasy,
		Description: strings.Repeat("an ever-expanding saga of impossible length ", 2000),
		Rating:      4.1, Year: 2020, Language: books.LanguageEnglish,
	}
	if err := s.Upsert(ctx, []books.Record{rec}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(embed.EmbedBatchCalls) == 0 {
		t.Fatal("embedder was never called")
	}
	counter := tokens.NewCounter(embed.ModelID())
	for _, doc := range embed.EmbedBatchCalls[0].Texts {
		if n := counter.Count(doc); n > 16 {
			t.Errorf("embedded document is %d tokens, want <= 16", n)
		}
	}
}
