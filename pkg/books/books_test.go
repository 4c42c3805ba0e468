package books

import "testing"

func TestRecordValidate(t *testing.T) {
	valid := Record{
		ID:       "b1",
		Title:    "Dune",
		Author:   "Frank Herbert",
		Genre:    GenreScienceFiction,
		Rating:   4.5,
		Year:     1965,
		Language: LanguageEnglish,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid record: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"empty id", func(r *Record) { r.ID = "" }},
		{"empty title", func(r *Record) { r.Title = "" }},
		{"rating below range", func(r *Record) { r.Rating = -0.1 }},
		{"rating above range", func(r *Record) { r.Rating = 5.1 }},
		{"unknown genre", func(r *Record) { r.Genre = "space-opera" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestParseGenre(t *testing.T) {
	tests := []struct {
		in   string
		want Genre
	}{
		{"science-fiction", GenreScienceFiction},
		{"Science Fiction", GenreScienceFiction},
		{"sci-fi", GenreScienceFiction},
		{"FANTASY", GenreFantasy},
		{"fiction", GenreNovel},
		{"Children's Literature", GenreChildrens},
		{"YA", GenreYoungAdult},
		{"self-help", GenreSelfHelp},
		{"Self Help", GenreSelfHelp},
		{"underwater basket weaving", GenreGeneral},
		{"", GenreGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseGenre(tt.in); got != tt.want {
				t.Errorf("ParseGenre(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAllGenresComplete(t *testing.T) {
	if len(AllGenres) != 28 {
		t.Fatalf("len(AllGenres) = %d, want 28", len(AllGenres))
	}
	seen := make(map[Genre]bool, len(AllGenres))
	for _, g := range AllGenres {
		if seen[g] {
			t.Errorf("duplicate genre %q", g)
		}
		seen[g] = true
		if g.DisplayName() == "" {
			t.Errorf("genre %q has empty display name", g)
		}
	}
}

func TestLanguageIsValid(t *testing.T) {
	if !LanguageTurkish.IsValid() || !LanguageEnglish.IsValid() {
		t.Error("built-in languages must be valid")
	}
	if Language("de").IsValid() {
		t.Error(`Language("de").IsValid() = true, want false`)
	}
}
