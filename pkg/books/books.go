// Package books defines the shared book-domain types used across all Luminis
// packages.
//
// These types form the lingua franca between the corpus store, the vector
// index, the retriever, and the generation layer. They are intentionally
// minimal — each package defines its own working types, but cross-cutting data
// structures live here to avoid circular imports.
package books

import (
	"fmt"
	"strings"
	"time"
)

// Record is the canonical representation of one book in the corpus.
//
// A Record is owned by the corpus store. The vector index holds a derived,
// read-only projection of it (embedding plus a metadata subset) keyed by ID.
// Once indexed, a Record is immutable except for Rating and Description, which
// the external catalog sync may refresh.
type Record struct {
	// ID is the unique, stable identifier for this book (e.g., a UUID or an
	// OpenLibrary work key).
	ID string `json:"id"`

	// Title is the book's display title.
	Title string `json:"title"`

	// Author is the primary author's name.
	Author string `json:"author"`

	// Genre classifies the book into one of the 28 catalog genres.
	Genre Genre `json:"genre"`

	// Description is a short free-text synopsis. The catalog sync caps it at
	// roughly 500 characters; longer values are accepted, and the rendered
	// embedding document is truncated to the embedding token budget before it
	// reaches the provider.
	Description string `json:"description"`

	// Rating is the average reader rating in [0, 5].
	Rating float64 `json:"rating"`

	// Year is the first publication year. Zero means unknown.
	Year int `json:"year"`

	// Language is the language the catalog record is written in.
	Language Language `json:"language"`

	// SyncedAt is when the catalog sync last touched this record.
	// Zero for records that were seeded locally rather than synced.
	SyncedAt time.Time `json:"synced_at,omitzero"`
}

// Validate reports whether the record carries the minimum fields the pipeline
// requires. It returns a descriptive error for the first problem found.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("book record: id must not be empty")
	}
	if r.Title == "" {
		return fmt.Errorf("book record %s: title must not be empty", r.ID)
	}
	if r.Rating < 0 || r.Rating > 5 {
		return fmt.Errorf("book record %s: rating %.2f is out of range [0, 5]", r.ID, r.Rating)
	}
	if r.Genre != "" && !r.Genre.IsValid() {
		return fmt.Errorf("book record %s: unknown genre %q", r.ID, r.Genre)
	}
	return nil
}

// Language identifies the natural language of a catalog record or a chat
// response.
type Language string

const (
	// LanguageTurkish is the catalog's original language.
	LanguageTurkish Language = "tr"

	// LanguageEnglish selects English-language responses.
	LanguageEnglish Language = "en"
)

// IsValid reports whether l is a recognised language code.
func (l Language) IsValid() bool {
	return l == LanguageTurkish || l == LanguageEnglish
}

// Genre is one of the 28 catalog genre categories. The taxonomy mirrors the
// subject mapping used when syncing from the external catalog: 27 mapped
// genres plus GenreGeneral for anything that maps to no known subject.
type Genre string

const (
	GenreNovel             Genre = "novel"
	GenreScienceFiction    Genre = "science-fiction"
	GenreFantasy           Genre = "fantasy"
	GenreMystery           Genre = "mystery"
	GenreThriller          Genre = "thriller"
	GenreRomance           Genre = "romance"
	GenreHistoricalFiction Genre = "historical-fiction"
	GenreBiography         Genre = "biography"
	GenreAutobiography     Genre = "autobiography"
	GenrePhilosophy        Genre = "philosophy"
	GenrePsychology        Genre = "psychology"
	GenreScience           Genre = "science"
	GenreTechnology        Genre = "technology"
	GenreHistory           Genre = "history"
	GenrePolitics          Genre = "politics"
	GenreEconomics         Genre = "economics"
	GenrePoetry            Genre = "poetry"
	GenreDrama             Genre = "drama"
	GenreChildrens         Genre = "childrens-literature"
	GenreYoungAdult        Genre = "young-adult"
	GenreCooking           Genre = "cooking"
	GenreTravel            Genre = "travel"
	GenreSports            Genre = "sports"
	GenreMusic             Genre = "music"
	GenreArt               Genre = "art"
	GenreReligion          Genre = "religion"
	GenreSelfHelp          Genre = "self-help"
	GenreGeneral           Genre = "general"
)

// AllGenres lists every recognised genre in a stable order.
// The slice must not be mutated by callers.
var AllGenres = []Genre{
	GenreNovel, GenreScienceFiction, GenreFantasy, GenreMystery,
	GenreThriller, GenreRomance, GenreHistoricalFiction, GenreBiography,
	GenreAutobiography, GenrePhilosophy, GenrePsychology, GenreScience,
	GenreTechnology, GenreHistory, GenrePolitics, GenreEconomics,
	GenrePoetry, GenreDrama, GenreChildrens, GenreYoungAdult,
	GenreCooking, GenreTravel, GenreSports, GenreMusic,
	GenreArt, GenreReligion, GenreSelfHelp, GenreGeneral,
}

// IsValid reports whether g is one of the 28 recognised genres.
func (g Genre) IsValid() bool {
	for _, known := range AllGenres {
		if g == known {
			return true
		}
	}
	return false
}

// DisplayName returns the human-readable English label for the genre
// (e.g., "Science Fiction" for GenreScienceFiction).
func (g Genre) DisplayName() string {
	switch g {
	case GenreScienceFiction:
		return "Science Fiction"
	case GenreHistoricalFiction:
		return "Historical Fiction"
	case GenreChildrens:
		return "Children's Literature"
	case GenreYoungAdult:
		return "Young Adult"
	case GenreSelfHelp:
		return "Self-Help"
	default:
		// Single-word genres title-case trivially.
		s := string(g)
		if s == "" {
			return ""
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

// ParseGenre maps a free-form catalog subject or user-supplied genre string to
// a Genre. Matching is case-insensitive and tolerant of spaces vs. hyphens.
// Unrecognised values map to GenreGeneral, mirroring the catalog-sync
// behaviour of bucketing unknown subjects.
func ParseGenre(s string) Genre {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "-")
	norm = strings.ReplaceAll(norm, "'", "")
	switch norm {
	case "fiction":
		return GenreNovel
	case "sci-fi", "scifi":
		return GenreScienceFiction
	case "children", "childrens", "childrens-lit":
		return GenreChildrens
	case "ya":
		return GenreYoungAdult
	case "cookbooks":
		return GenreCooking
	}
	g := Genre(norm)
	if g.IsValid() {
		return g
	}
	return GenreGeneral
}
