package corpus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

func testRecords() []books.Record {
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
			ID: "kurk-mantolu-madonna", Title: "Kürk Mantolu Madonna", Author: "Sabahattin Ali",
			Genre: books.GenreNovel, Description: "Raif Efendi'nin hikâyesi.",
			Rating: 4.7, Year: 1943, Language: books.LanguageTurkish,
		},
	}
}

func newSeededStore(t *testing.T) *corpus.MemStore {
	t.Helper()
	store := corpus.NewMemStore()
	if err := store.Upsert(context.Background(), testRecords()); err != nil {
		t.Fatalf("seed Upsert: %v", err)
	}
	return store
}

func TestMemStore_GetAfterUpsert(t *testing.T) {
	store := newSeededStore(t)

	got, err := store.Get(context.Background(), "dune")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Dune" || got.Year != 1965 {
		t.Errorf("Get returned wrong record: %+v", got)
	}
}

func TestMemStore_GetMissing(t *testing.T) {
	store := newSeededStore(t)

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, corpus.ErrNotFound) {
		t.Errorf("Get missing: want ErrNotFound, got %v", err)
	}
}

func TestMemStore_UpsertReplaces(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	updated := testRecords()[0]
	updated.Rating = 4.9
	if err := store.Upsert(ctx, []books.Record{updated}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.Get(ctx, "dune")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rating != 4.9 {
		t.Errorf("rating after replace = %v, want 4.9", got.Rating)
	}
	if n, _ := store.Count(ctx); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
}

func TestMemStore_UpsertRejectsInvalid(t *testing.T) {
	store := corpus.NewMemStore()

	err := store.Upsert(context.Background(), []books.Record{{ID: "no-title"}})
	if err == nil {
		t.Fatal("Upsert of invalid record should fail")
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("invalid upsert must not store partial batch, Count = %d", n)
	}
}

func TestMemStore_GetBatchPreservesOrderSkipsMissing(t *testing.T) {
	store := newSeededStore(t)

	got, err := store.GetBatch(context.Background(), []string{"foundation", "missing", "dune"})
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

func TestMemStore_List(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter corpus.ListFilter
		want   []string
	}{
		{"all ordered by rating", corpus.ListFilter{}, []string{"kurk-mantolu-madonna", "dune", "foundation"}},
		{"genre filter", corpus.ListFilter{Genre: books.GenreScienceFiction}, []string{"dune", "foundation"}},
		{"language filter", corpus.ListFilter{Language: books.LanguageTurkish}, []string{"kurk-mantolu-madonna"}},
		{"min rating", corpus.ListFilter{MinRating: 4.5}, []string{"kurk-mantolu-madonna", "dune"}},
		{"limit", corpus.ListFilter{Limit: 1}, []string{"kurk-mantolu-madonna"}},
		{"no match", corpus.ListFilter{Genre: books.GenreCooking}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("List returned %d records, want %d", len(got), len(tc.want))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Errorf("List[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemStore_RemoveAndAll(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := store.Remove(ctx, []string{"dune", "never-existed"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("All after remove: want 2, got %d", len(all))
	}
	for _, r := range all {
		if r.ID == "dune" {
			t.Error("removed record still present")
		}
	}
}
