package books

import (
	"fmt"
	"strings"
)

// genreContext provides one extra line of thematic context per genre so that
// embeddings of short catalog descriptions still land near genre-flavoured
// queries ("magic", "future technology", ...).
var genreContext = map[Genre]string{
	GenreNovel:             "Long-form, character-driven storytelling",
	GenreScienceFiction:    "Technology, space and future-themed fiction",
	GenreFantasy:           "Imaginary worlds and magical elements",
	GenreMystery:           "Crime, detectives and puzzles to solve",
	GenreThriller:          "Suspense and high-stakes tension",
	GenreRomance:           "Love stories and relationships",
	GenreHistoricalFiction: "Fiction set in past eras and events",
	GenreHistory:           "Past events, periods and wars",
	GenrePhilosophy:        "Questions of thought and existence",
	GenrePsychology:        "Human behaviour and the mind",
	GenreScience:           "Scientific discoveries and research",
	GenreChildrens:         "Educational and entertaining reading for children",
	GenrePoetry:            "Verse, rhythm and condensed language",
}

// EmbeddingDocument renders the record into the multi-line text that gets
// embedded and indexed. Queries are embedded raw, so the labels here double as
// anchors that pull genre and author mentions in a query towards the right
// records.
func (r Record) EmbeddingDocument() string {
	description := r.Description
	if description == "" {
		description = "No description available"
	}

	lines := []string{
		"Title: " + r.Title,
		"Author: " + r.Author,
		"Genre: " + r.Genre.DisplayName(),
		"Description: " + description,
		fmt.Sprintf("Year: %d", r.Year),
		fmt.Sprintf("Rating: %.1f", r.Rating),
	}
	if ctx, ok := genreContext[r.Genre]; ok {
		lines = append(lines, "Genre context: "+ctx)
	} else {
		lines = append(lines, "Genre context: General literature")
	}
	return strings.Join(lines, "\n")
}
